package storage

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("user not found")

// User is the authoritative record. Records are immutable once created;
// there are no update or delete paths.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Repository is the authoritative user store. The in-memory implementation
// backs it so a durable backend can be swapped in without touching handlers.
type Repository interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Insert(ctx context.Context, name, email string) (User, error)
}

type MemoryRepository struct {
	mu     sync.RWMutex
	users  []User
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: []User{
			{ID: 1, Name: "Alice Dupont", Email: "alice@mail.com"},
			{ID: 2, Name: "Bob Martin", Email: "bob@mail.com"},
		},
		nextID: 3,
	}
}

func (r *MemoryRepository) List(_ context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]User, len(r.users))
	copy(out, r.users)
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepository) Insert(_ context.Context, name, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := User{ID: r.nextID, Name: name, Email: email}
	r.nextID++
	r.users = append(r.users, u)
	return u, nil
}
