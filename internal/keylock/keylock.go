// Package keylock provides striped per-key mutual exclusion.
package keylock

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 64

// Striped serializes work per key using a fixed pool of mutexes. Two keys may share a
// stripe, so callers must never hold one key while acquiring another.
type Striped struct {
	stripes []sync.Mutex
}

// New returns a Striped lock with n stripes. n <= 0 uses the default.
func New(n int) *Striped {
	if n <= 0 {
		n = defaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe for key.
func (s *Striped) Lock(key string) {
	s.stripe(key).Lock()
}

// Unlock releases the stripe for key.
func (s *Striped) Unlock(key string) {
	s.stripe(key).Unlock()
}

// With runs fn while holding the lock for key.
func (s *Striped) With(key string, fn func() error) error {
	m := s.stripe(key)
	m.Lock()
	defer m.Unlock()
	return fn()
}

func (s *Striped) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.stripes[h.Sum32()%uint32(len(s.stripes))]
}
