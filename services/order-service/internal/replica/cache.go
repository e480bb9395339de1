package replica

import (
	"sync"
	"sync/atomic"
)

// User is the locally replicated projection of a user-service record.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Cache is the order service's eventually-consistent view of users. It is
// fed exclusively by the consumer loop and read concurrently by request
// handlers; reads never touch the network.
//
// Source records are immutable, so the first write for a key wins and every
// later write for that key is a no-op. That makes duplicate delivery and
// cross-key reordering harmless without any global ordering assumption.
type Cache struct {
	mu    sync.RWMutex
	users map[int64]User

	applied    atomic.Int64
	duplicates atomic.Int64
}

func NewCache() *Cache {
	return &Cache{users: map[int64]User{}}
}

// UpsertIfAbsent inserts the record if its id is unseen and reports whether
// it was inserted.
func (c *Cache) UpsertIfAbsent(u User) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.users[u.ID]; ok {
		c.duplicates.Add(1)
		return false
	}
	c.users[u.ID] = u
	c.applied.Add(1)
	return true
}

// Get returns the cached record for id. It never blocks on the consumer.
func (c *Cache) Get(id int64) (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	u, ok := c.users[id]
	return u, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}

// Applied and Duplicates expose replication counters for logs.
func (c *Cache) Applied() int64    { return c.applied.Load() }
func (c *Cache) Duplicates() int64 { return c.duplicates.Load() }
