package state

import (
	"context"
	"fmt"

	"github.com/nholik/case-sentinel/internal/record"
	"github.com/nholik/case-sentinel/internal/source"
)

// Snapshot is the whole persisted state: the latest record per source.
type Snapshot map[source.ID]record.Record

// Clone returns a shallow copy; records are immutable values.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, rec := range s {
		out[id] = rec
	}
	return out
}

// Persister reads and writes snapshots.
type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// LoadError reports an unreadable or corrupt snapshot at startup.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load state %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PersistError reports a failed snapshot write during a commit.
type PersistError struct {
	Source source.ID
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist state after %s commit: %v", e.Source, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
