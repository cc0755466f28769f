package objecturl

import (
	"context"
	"sync"
	"time"

	"github.com/matzehuels/receiptify/pkg/observability"
)

// MemoryStore keeps objects in process memory. Use it when a single process
// serves both the export and the object URL.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	obj       Object
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, obj Object, ttl time.Duration) (string, error) {
	id := NewID()
	s.mu.Lock()
	s.sweepLocked()
	s.entries[id] = memoryEntry{obj: obj, expiresAt: s.now().Add(ttlOrDefault(ttl))}
	s.mu.Unlock()

	observability.ObjectURL().OnCreate(ctx, "memory", len(obj.Data))
	return id, nil
}

// Resolve implements Store.
func (s *MemoryStore) Resolve(ctx context.Context, id string) (*Object, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && s.now().After(e.expiresAt) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()

	observability.ObjectURL().OnResolve(ctx, "memory", ok)
	if !ok {
		return nil, ErrNotFound
	}
	obj := e.obj
	return &obj, nil
}

// Revoke implements Store.
func (s *MemoryStore) Revoke(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()

	observability.ObjectURL().OnRevoke(ctx, "memory")
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

// Close drops every entry.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) sweepLocked() {
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
