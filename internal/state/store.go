package state

import (
	"context"
	"errors"
	"sync"

	"github.com/nholik/case-sentinel/internal/record"
	"github.com/nholik/case-sentinel/internal/source"
	"github.com/rs/zerolog"
)

var errNotLoaded = errors.New("state store used before load")

// Store holds the latest record per source and mirrors every commit to its
// Persister. A single lock covers the map update and the full snapshot write,
// so readers never observe a half-applied commit and concurrent commits for
// different sources cannot interleave their file writes.
type Store struct {
	logger    zerolog.Logger
	persister Persister

	mu      sync.RWMutex
	records Snapshot
	loaded  bool
}

// NewStore returns an empty, not yet loaded store.
func NewStore(persister Persister, logger zerolog.Logger) *Store {
	return &Store{
		logger:    logger,
		persister: persister,
		records:   Snapshot{},
	}
}

// Load reads the persisted snapshot. It must complete before any commit.
func (s *Store) Load(ctx context.Context) error {
	snapshot, err := s.persister.Load(ctx)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return err
		}
		return &LoadError{Err: err}
	}

	s.mu.Lock()
	s.records = snapshot.Clone()
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info().Int("sources", len(snapshot)).Msg("loaded state")
	return nil
}

// Get returns the current record for id.
func (s *Store) Get(id source.ID) (record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// All returns a consistent copy of every stored record.
func (s *Store) All() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Clone()
}

// Commit replaces the record for id and rewrites the whole snapshot.
// If the write fails the in-memory record stays replaced and a *PersistError
// is returned; callers treat it as fatal.
func (s *Store) Commit(ctx context.Context, id source.ID, rec record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return &PersistError{Source: id, Err: errNotLoaded}
	}

	s.records[id] = rec
	if err := s.persister.Save(ctx, s.records.Clone()); err != nil {
		return &PersistError{Source: id, Err: err}
	}

	s.logger.Debug().
		Str("source", string(id)).
		Bool("updated_data", rec.Updated()).
		Msg("committed record")
	return nil
}

// Close flushes the current map one last time.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil
	}
	return s.persister.Save(ctx, s.records.Clone())
}
