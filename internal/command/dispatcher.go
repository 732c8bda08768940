package command

import (
	"strings"

	"github.com/nholik/case-sentinel/internal/record"
	"github.com/nholik/case-sentinel/internal/report"
	"github.com/nholik/case-sentinel/internal/source"
)

// Prefix marks a chat message as a command.
const Prefix = "!"

// Reader is the read side of the state store.
type Reader interface {
	Get(id source.ID) (record.Record, bool)
}

// Dispatcher turns chat commands into replies built from the current state.
type Dispatcher struct {
	registry *source.Registry
	store    Reader
}

// NewDispatcher returns a Dispatcher over the given sources and store.
func NewDispatcher(registry *source.Registry, store Reader) *Dispatcher {
	return &Dispatcher{registry: registry, store: store}
}

// Handle returns the reply for content and whether content was a known command.
// Commands are the source IDs prefixed with "!" and must match exactly.
func (d *Dispatcher) Handle(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, Prefix) {
		return "", false
	}

	src, ok := d.registry.Get(source.ID(strings.TrimPrefix(content, Prefix)))
	if !ok {
		return "", false
	}

	rec, ok := d.store.Get(src.ID)
	if !ok {
		return report.Missing(src), true
	}
	return report.Current(src, rec), true
}
