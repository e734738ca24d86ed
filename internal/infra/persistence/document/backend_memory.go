package document

import (
	"context"
	"sync"
)

// MemoryBackend keeps the document in process memory. Nothing survives a
// restart; it backs the memory storage driver and tests.
type MemoryBackend struct {
	mu      sync.Mutex
	payload []byte
	saveErr error
	saves   int
}

// NewMemoryBackend returns a backend optionally primed with a document.
func NewMemoryBackend(initial []byte) *MemoryBackend {
	return &MemoryBackend{payload: append([]byte(nil), initial...)}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Load(context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.payload) == 0 {
		return nil, nil
	}
	return append([]byte(nil), b.payload...), nil
}

func (b *MemoryBackend) Save(_ context.Context, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.payload = append([]byte(nil), payload...)
	b.saves++
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

// Payload returns the last saved document.
func (b *MemoryBackend) Payload() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.payload...)
}

// SaveCount reports successful saves.
func (b *MemoryBackend) SaveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// FailSaves makes subsequent saves return err; nil restores success.
func (b *MemoryBackend) FailSaves(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveErr = err
}
