package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	domain "github.com/wighaven/storefront/domain/cart"
)

// ErrConflict is returned by Save when the cart changed since it was loaded.
var ErrConflict = errors.New("cart was modified concurrently")

// Store persists carts with optimistic concurrency.
type Store interface {
	// Create stores a new cart. It fails if the ID is taken.
	Create(ctx context.Context, c *domain.Cart) error
	// Load returns the cart and its revision.
	Load(ctx context.Context, id string) (*domain.Cart, uint64, error)
	// Save overwrites the cart if it is still at revision.
	Save(ctx context.Context, c *domain.Cart, revision uint64) error
	// Delete removes the cart. Missing carts are not an error.
	Delete(ctx context.Context, id string) error
}

// KVStore keeps carts in a JetStream key-value bucket. Expiry is governed by
// the bucket TTL, so an idle cart disappears after the configured period.
type KVStore struct {
	bucket kvjetstream.KVStoragePort
}

// NewKVStore creates a store over bucket.
func NewKVStore(bucket kvjetstream.KVStoragePort) *KVStore {
	return &KVStore{bucket: bucket}
}

func cartKey(id string) string {
	return "cart." + id
}

func (s *KVStore) Create(_ context.Context, c *domain.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	if _, err := s.bucket.Create(cartKey(c.ID), data, 0); err != nil {
		if errors.Is(err, kvjetstream.ErrKeyExists) {
			return ErrConflict
		}
		return fmt.Errorf("failed to store cart: %w", err)
	}
	return nil
}

func (s *KVStore) Load(_ context.Context, id string) (*domain.Cart, uint64, error) {
	entry, err := s.bucket.GetEntry(cartKey(id))
	if err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to get cart: %w", err)
	}
	var c domain.Cart
	if err := json.Unmarshal(entry.Value, &c); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return &c, entry.Revision, nil
}

func (s *KVStore) Save(_ context.Context, c *domain.Cart, revision uint64) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	if _, err := s.bucket.Update(cartKey(c.ID), data, 0, revision); err != nil {
		if errors.Is(err, kvjetstream.ErrRevisionMismatch) {
			return ErrConflict
		}
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update cart: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(_ context.Context, id string) error {
	if err := s.bucket.Delete(cartKey(id)); err != nil && !errors.Is(err, kvjetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// Count returns the number of stored carts.
func (s *KVStore) Count() (int, error) {
	keys, err := s.bucket.Keys()
	if err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return len(keys), nil
}

// MemoryStore is an in-process Store used when no KV bucket is available.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]memoryEntry
}

type memoryEntry struct {
	data     []byte
	revision uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Create(_ context.Context, c *domain.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[c.ID]; ok {
		return ErrConflict
	}
	s.carts[c.ID] = memoryEntry{data: data, revision: 1}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*domain.Cart, uint64, error) {
	s.mu.Lock()
	e, ok := s.carts[id]
	s.mu.Unlock()
	if !ok {
		return nil, 0, domain.ErrNotFound
	}
	var c domain.Cart
	if err := json.Unmarshal(e.data, &c); err != nil {
		return nil, 0, err
	}
	return &c, e.revision, nil
}

func (s *MemoryStore) Save(_ context.Context, c *domain.Cart, revision uint64) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.carts[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if e.revision != revision {
		return ErrConflict
	}
	s.carts[c.ID] = memoryEntry{data: data, revision: revision + 1}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	return nil
}
