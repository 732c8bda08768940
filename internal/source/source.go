package source

import (
	"fmt"
	"strings"
	"time"
)

// ID identifies one polled jurisdiction or feed.
type ID string

const (
	Minnesota   ID = "mn"
	Federal     ID = "fed"
	NewYork     ID = "ny"
	RhodeIsland ID = "ri"
	Oregon      ID = "or"
)

// Line pairs a human-readable label with a record field.
type Line struct {
	Label string
	Field string
}

// Source is the immutable fetch configuration and extractor for one ID.
// Lines label the on-demand summary. UpdateTitle and UpdateLines, when set,
// replace the title and labels of the push notification sent on change.
type Source struct {
	ID          ID
	Name        string
	URL         string
	Timeout     time.Duration
	Extractor   Extractor
	Lines       []Line
	UpdateTitle string
	UpdateLines []Line
}

// PushTitle is the heading of the notification sent when the data changed.
func (s Source) PushTitle() string {
	if s.UpdateTitle != "" {
		return s.UpdateTitle
	}
	return "New " + s.Name + " Coronavirus Data"
}

// PushLines are the labeled fields of the notification sent when the data changed.
func (s Source) PushLines() []Line {
	if len(s.UpdateLines) > 0 {
		return s.UpdateLines
	}
	return s.Lines
}

// Override replaces the endpoint or fetch timeout of a built-in source.
type Override struct {
	URL     string
	Timeout time.Duration
}

// Registry maps IDs to their sources. It is built once and never mutated.
type Registry struct {
	order   []ID
	sources map[ID]Source
}

// NewRegistry builds the registry from the built-in definitions, applying overrides.
// Every source must end up with an endpoint.
func NewRegistry(overrides map[ID]Override) (*Registry, error) {
	defs := builtin()
	r := &Registry{
		order:   make([]ID, 0, len(defs)),
		sources: make(map[ID]Source, len(defs)),
	}

	for id := range overrides {
		if !knownID(defs, id) {
			return nil, fmt.Errorf("unknown source %q", id)
		}
	}

	for _, def := range defs {
		if override, ok := overrides[def.ID]; ok {
			if override.URL != "" {
				def.URL = override.URL
			}
			if override.Timeout > 0 {
				def.Timeout = override.Timeout
			}
		}
		if def.URL == "" {
			return nil, fmt.Errorf("source %q: url is required", def.ID)
		}
		r.order = append(r.order, def.ID)
		r.sources[def.ID] = def
	}
	return r, nil
}

// Get returns the source for id.
func (r *Registry) Get(id ID) (Source, bool) {
	src, ok := r.sources[id]
	return src, ok
}

// Lookup resolves a user-supplied identifier, case-insensitively.
func (r *Registry) Lookup(name string) (Source, bool) {
	return r.Get(ID(strings.ToLower(strings.TrimSpace(name))))
}

// All returns every source in registration order.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sources[id])
	}
	return out
}

// IDs returns every registered ID in registration order.
func (r *Registry) IDs() []ID {
	return append([]ID(nil), r.order...)
}

func knownID(defs []Source, id ID) bool {
	for _, def := range defs {
		if def.ID == id {
			return true
		}
	}
	return false
}
