package healthcheck

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// Response is the body of the health endpoints.
type Response struct {
	Status  string   `json:"status"`
	Failing []string `json:"failing,omitempty"`
	Snapshot
}

// HealthHandler serves /healthz responses. The process is healthy while some
// source completed a cycle within two poll intervals.
func HealthHandler(tracker *Tracker, pollInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker.Healthy(time.Now().UTC(), pollInterval) {
			writeJSON(w, http.StatusOK, respond("ok", tracker))
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, respond("stale", tracker))
	}
}

// ReadyHandler serves /readyz responses.
func ReadyHandler(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker.Ready() {
			writeJSON(w, http.StatusOK, respond("ready", tracker))
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, respond("starting", tracker))
	}
}

func respond(status string, tracker *Tracker) Response {
	snapshot := tracker.Snapshot()
	var failing []string
	for name, source := range snapshot.Sources {
		if source.LastError != "" {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	return Response{Status: status, Failing: failing, Snapshot: snapshot}
}

func writeJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
