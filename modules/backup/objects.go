package backup

import (
	"context"
	"fmt"
	"sync"

	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
)

// BucketName is the fs-jetstream bucket holding snapshots.
const BucketName = "backups"

// ObjectInfo describes a stored snapshot.
type ObjectInfo struct {
	Name   string `json:"name"`
	Size   uint64 `json:"size"`
	Digest string `json:"digest,omitempty"`
}

// ObjectStore is where snapshots are uploaded.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte, headers map[string]string) (ObjectInfo, error)
	Get(name string) ([]byte, error)
	List(prefix string) ([]ObjectInfo, error)
	Delete(name string) error
}

// BucketStore adapts an fs-jetstream bucket to ObjectStore.
type BucketStore struct {
	bucket fsjetstream.FileStoragePort
}

// NewBucketStore creates a store over bucket.
func NewBucketStore(bucket fsjetstream.FileStoragePort) *BucketStore {
	return &BucketStore{bucket: bucket}
}

func (s *BucketStore) Put(ctx context.Context, name string, data []byte, headers map[string]string) (ObjectInfo, error) {
	info, err := s.bucket.Put(ctx, name, data, fsjetstream.WithHeaders(headers))
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return ObjectInfo{Name: name, Size: uint64(info.Size), Digest: info.Digest}, nil
}

func (s *BucketStore) Get(name string) ([]byte, error) {
	return s.bucket.Get(name)
}

func (s *BucketStore) List(prefix string) ([]ObjectInfo, error) {
	files, err := s.bucket.List(fsjetstream.WithPrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	out := make([]ObjectInfo, 0, len(files))
	for _, f := range files {
		out = append(out, ObjectInfo{Name: f.Name, Size: uint64(f.Size), Digest: f.Digest})
	}
	return out, nil
}

func (s *BucketStore) Delete(name string) error {
	return s.bucket.Delete(name)
}

// MemoryStore is an in-process ObjectStore.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, name string, data []byte, _ map[string]string) (ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = append([]byte(nil), data...)
	return ObjectInfo{Name: name, Size: uint64(len(data))}, nil
}

func (s *MemoryStore) Get(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("object %s not found", name)
	}
	return data, nil
}

func (s *MemoryStore) List(prefix string) ([]ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ObjectInfo, 0, len(s.objects))
	for name, data := range s.objects {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			out = append(out, ObjectInfo{Name: name, Size: uint64(len(data))})
		}
	}
	return out, nil
}

func (s *MemoryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
	return nil
}
