// Package document makes the in-memory mirror durable. A Store hydrates the
// mirror from a Backend at open and flushes the whole document back after
// every transaction that committed at least one change.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BKHilton/Ember/internal/infra/persistence/memory"
	"github.com/BKHilton/Ember/pkg/domain"
	"go.uber.org/zap"
)

var _ domain.PersistentStore = (*Store)(nil)

// Backend holds the serialized document. Load returns nil bytes when nothing
// has been stored yet.
type Backend interface {
	Name() string
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, payload []byte) error
	Close() error
}

// ErrNotDurable wraps save failures. The mirror is reverted to the last
// durable document before it is returned.
var ErrNotDurable = errors.New("document not persisted")

// Options tune the write path. Timeout and SaveAttempts matter for remote
// backends; local backends use the defaults.
type Options struct {
	Timeout      time.Duration
	SaveAttempts int
	RetryDelay   time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.SaveAttempts <= 0 {
		o.SaveAttempts = 1
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 100 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Store is the memory mirror plus its durable backend.
type Store struct {
	*memory.Store
	backend Backend
	opts    Options

	mu       sync.Mutex // serializes transactions with their flush
	lastSave []byte
	saved    uint64
}

// Open loads the backend's document, migrates it to the current version and
// writes it straight back when the migration repaired anything.
func Open(ctx context.Context, backend Backend, engine *domain.RulesEngine, opts Options) (*Store, error) {
	if backend == nil {
		return nil, errors.New("document backend is required")
	}
	opts = opts.withDefaults()
	log := opts.Logger.With(zap.String("backend", backend.Name()))

	raw, err := withTimeout(ctx, opts.Timeout, backend.Load)
	if err != nil {
		return nil, fmt.Errorf("load %s document: %w", backend.Name(), err)
	}
	doc, repaired, err := memory.Migrate(raw, opts.Now())
	if err != nil {
		return nil, fmt.Errorf("hydrate %s document: %w", backend.Name(), err)
	}

	mem := memory.NewStore(engine)
	mem.SetNowFunc(opts.Now)
	mem.ImportDocument(doc)
	s := &Store{Store: mem, backend: backend, opts: opts, lastSave: raw}
	s.opts.Logger = log

	if repaired {
		log.Info("document hydrated", zap.Int("version", doc.Version))
		if err := s.Flush(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RunInTransaction commits fn against the mirror and flushes the document.
// A transaction that records no change performs no write.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.Store.Revision()
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if s.Store.Revision() == before {
		return res, nil
	}
	if err := s.flushLocked(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// Flush writes the current document regardless of pending changes.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	payload, err := json.MarshalIndent(s.Store.ExportDocument(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	var saveErr error
retry:
	for attempt := 1; attempt <= s.opts.SaveAttempts; attempt++ {
		_, saveErr = withTimeout(ctx, s.opts.Timeout, func(ctx context.Context) ([]byte, error) {
			return nil, s.backend.Save(ctx, payload)
		})
		if saveErr == nil {
			s.lastSave = payload
			s.saved++
			return nil
		}
		s.opts.Logger.Warn("document save failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.opts.SaveAttempts),
			zap.Error(saveErr))
		if attempt < s.opts.SaveAttempts {
			select {
			case <-ctx.Done():
				saveErr = ctx.Err()
				break retry
			case <-time.After(s.opts.RetryDelay):
			}
		}
	}

	s.revert()
	return fmt.Errorf("%w: %s: %w", ErrNotDurable, s.backend.Name(), saveErr)
}

// revert restores the mirror to the last document the backend accepted.
func (s *Store) revert() {
	doc, _, err := memory.Migrate(s.lastSave, s.opts.Now())
	if err != nil {
		s.opts.Logger.Error("revert to last durable document failed", zap.Error(err))
		return
	}
	s.Store.ImportDocument(doc)
}

// Saves reports how many times the document was written.
func (s *Store) Saves() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// Backend returns the durable backend.
func (s *Store) Backend() Backend { return s.backend }

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
