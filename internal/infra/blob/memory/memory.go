// Package memory provides the map-backed blob store used by tests.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"pramcore/internal/infra/blob/core"
)

var _ core.Store = (*Store)(nil)

type object struct {
	info core.Info
	data []byte
}

// Store keeps blobs in a map guarded by a mutex.
type Store struct {
	mu      sync.Mutex
	objects map[string]object
}

// New constructs an empty in-memory blob store.
func New() *Store {
	return &Store{objects: make(map[string]object)}
}

// Driver identifies the backend.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put stores a new blob; writing an existing key fails.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	sum := sha256.Sum256(data)
	info := core.Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     opts.Metadata,
		LastModified: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return core.Info{}, fmt.Errorf("blob %s already exists", key)
	}
	s.objects[key] = object{info: info, data: data}
	return info, nil
}

// Get returns the blob's metadata and a reader over its content.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	s.mu.Lock()
	obj, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return core.Info{}, nil, core.ErrNotFound
	}
	return obj.info, io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Head returns the blob's metadata.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return core.Info{}, core.ErrNotFound
	}
	return obj.info, nil
}

// Delete removes the blob, reporting whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	delete(s.objects, key)
	return ok, nil
}

// List returns metadata for all blobs under the prefix, sorted by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var infos []core.Info
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, obj.info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
