package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nholik/case-sentinel/internal/record"
	"github.com/nholik/case-sentinel/internal/source"
	"github.com/nholik/case-sentinel/internal/state"
	"github.com/rs/zerolog"
)

// Reader is the read side of the state store.
type Reader interface {
	Get(id source.ID) (record.Record, bool)
	All() state.Snapshot
}

// Handler serves the current records over HTTP.
type Handler struct {
	logger   zerolog.Logger
	registry *source.Registry
	store    Reader
}

// New returns a Handler backed by store.
func New(logger zerolog.Logger, registry *source.Registry, store Reader) *Handler {
	return &Handler{logger: logger, registry: registry, store: store}
}

// RegisterHTTP mounts the read routes on r.
func (h *Handler) RegisterHTTP(r chi.Router) {
	r.Get("/", h.handleHello)
	r.Get("/cases/all", h.handleAll)
	r.Get("/cases/{source}", h.handleSource)
}

// Router returns a standalone router with the read routes mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	h.RegisterHTTP(r)
	return r
}

func (h *Handler) handleHello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello World!"))
}

func (h *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.All())
}

func (h *Handler) handleSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	src, ok := h.registry.Lookup(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	rec, ok := h.store.Get(src.ID)
	if !ok {
		h.writeError(w, http.StatusNotFound, "no data yet")
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn().Err(err).Msg("write response failed")
	}
}
