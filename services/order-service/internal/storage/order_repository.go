package storage

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("order not found")

// Order references a user by id only; the user details live in the replica
// cache, never behind a shared store.
type Order struct {
	ID       int64   `json:"id"`
	UserID   int64   `json:"userId"`
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Repository is the order store. The in-memory implementation backs it so a
// durable backend can be swapped in without touching handlers.
type Repository interface {
	List(ctx context.Context) ([]Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	Insert(ctx context.Context, o Order) (Order, error)
}

type MemoryRepository struct {
	mu     sync.RWMutex
	orders []Order
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: []Order{
			{ID: 101, UserID: 1, Product: "Laptop", Quantity: 1, Price: 1200},
			{ID: 102, UserID: 2, Product: "Phone", Quantity: 2, Price: 599},
			{ID: 103, UserID: 1, Product: "Mechanical Keyboard", Quantity: 1, Price: 89},
		},
		nextID: 104,
	}
}

func (r *MemoryRepository) List(_ context.Context) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Order, len(r.orders))
	copy(out, r.orders)
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *MemoryRepository) Insert(_ context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o.ID = r.nextID
	r.nextID++
	r.orders = append(r.orders, o)
	return o, nil
}
