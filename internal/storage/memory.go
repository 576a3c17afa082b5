package storage

import (
	"context"
	"sync"

	"github.com/MarcoPoloResearchLab/notebook/internal/pubsub"
)

// MemoryHub is an in-process durable store shared by several contexts. Each
// context opens its own MemoryStore handle; a write through one handle is
// announced to every other open handle.
type MemoryHub struct {
	mu     sync.Mutex
	values map[string]string
	stores map[int64]*MemoryStore
	nextID int64
}

// NewMemoryHub returns an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		values: make(map[string]string),
		stores: make(map[int64]*MemoryStore),
	}
}

// Open returns a new context handle onto the hub.
func (h *MemoryHub) Open() *MemoryStore {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	store := &MemoryStore{
		hub:        h,
		id:         h.nextID,
		dispatcher: newChangeDispatcher(),
	}
	h.stores[store.id] = store
	return store
}

// Values returns a copy of everything currently stored.
func (h *MemoryHub) Values() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]string, len(h.values))
	for key, value := range h.values {
		out[key] = value
	}
	return out
}

func (h *MemoryHub) write(origin int64, change Change) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.stores[origin]; !ok {
		return ErrClosed
	}
	if change.Removed {
		if _, ok := h.values[change.Key]; !ok {
			return nil
		}
		delete(h.values, change.Key)
	} else {
		h.values[change.Key] = change.Value
	}
	for id, store := range h.stores {
		if id == origin {
			continue
		}
		store.dispatcher.Publish(change)
	}
	return nil
}

// MemoryStore is one context's handle onto a MemoryHub.
type MemoryStore struct {
	hub        *MemoryHub
	id         int64
	dispatcher *pubsub.Dispatcher[Change]
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.stores[s.id]; !ok {
		return "", false, ErrClosed
	}
	value, ok := s.hub.values[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.hub.write(s.id, Change{Key: key, Value: value})
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.hub.write(s.id, Change{Key: key, Removed: true})
}

func (s *MemoryStore) Subscribe(ctx context.Context, keys ...string) (<-chan Change, func()) {
	return s.dispatcher.Subscribe(ctx, keyFilter(keys))
}

// Close detaches the handle from its hub.
func (s *MemoryStore) Close() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	delete(s.hub.stores, s.id)
	return nil
}
