// Package memory implements an in-memory blob Store for tests and the
// memory storage driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BKHilton/Ember/internal/blob/core"
)

type blobEntry struct {
	obj  core.Object
	data []byte
}

// Store implements core.Store backed by process memory.
type Store struct {
	mu   sync.RWMutex
	objs map[string]blobEntry
	now  func() time.Time
}

// New returns an empty in-memory blob store.
func New() *Store {
	return &Store{objs: make(map[string]blobEntry), now: func() time.Time { return time.Now().UTC() }}
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Write(_ context.Context, key string, data []byte, contentType string) (core.Object, error) {
	if err := core.ValidateKey(key); err != nil {
		return core.Object{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := core.Object{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		Modified:    s.now(),
		Location:    "memory://" + key,
	}
	s.objs[key] = blobEntry{obj: obj, data: append([]byte(nil), data...)}
	return obj, nil
}

func (s *Store) Read(_ context.Context, key string) ([]byte, core.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.objs[key]
	if !ok {
		return nil, core.Object{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return append([]byte(nil), entry.data...), entry.obj, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[key]; !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	delete(s.objs, key)
	return nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Object, 0, len(s.objs))
	for key, entry := range s.objs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, entry.obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
