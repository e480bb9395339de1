package storage

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("product not found")

type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Repository is the product store. The in-memory implementation backs it so
// a durable backend can be swapped in without touching handlers.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Insert(ctx context.Context, name string, price float64) (Product, error)
}

type MemoryRepository struct {
	mu       sync.RWMutex
	products []Product
	nextID   int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products: []Product{
			{ID: 1, Name: "Laptop Pro", Price: 1200},
			{ID: 2, Name: "Wireless Mouse", Price: 35},
			{ID: 3, Name: "Mechanical Keyboard", Price: 89},
		},
		nextID: 4,
	}
}

func (r *MemoryRepository) List(_ context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (r *MemoryRepository) Insert(_ context.Context, name string, price float64) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := Product{ID: r.nextID, Name: name, Price: price}
	r.nextID++
	r.products = append(r.products, p)
	return p, nil
}
