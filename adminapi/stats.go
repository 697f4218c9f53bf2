// Package adminapi exposes the operational HTTP control surface
// SPEC_FULL.md §5.1 adds to spec.md's in-process Control surface
// (spec.md §6): session listing/status/stats, cooperative stop, and
// arming a sequence-number reset, over github.com/gorilla/mux, grounded
// on the teacher's server/server.go + server/handlers.go.
package adminapi

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"fixengine/session"
)

// StatsRecorder persists a periodic snapshot of every registered
// session's counters to a JSON file, grounded on sol/analytics.go's
// mutex-guarded map of per-target counters serialized to disk —
// adapted from IPMI boot/network analytics to FIX session counters
// (messages in/out, resends, gaps, heartbeats, rejects, reconnects) per
// SPEC_FULL.md §5.2.
type StatsRecorder struct {
	mu       sync.Mutex
	path     string
	sessions map[string]*session.Session
}

// NewStatsRecorder creates a recorder that will persist to path (empty
// disables persistence; snapshots remain available in-memory via
// Snapshot).
func NewStatsRecorder(path string) *StatsRecorder {
	return &StatsRecorder{path: path, sessions: make(map[string]*session.Session)}
}

// Register adds a session under id to the set this recorder tracks.
func (r *StatsRecorder) Register(id string, s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
}

// Snapshot returns every registered session's current StatusSnapshot,
// keyed by the id it was registered under.
func (r *StatsRecorder) Snapshot() map[string]session.StatusSnapshot {
	r.mu.Lock()
	ids := make(map[string]*session.Session, len(r.sessions))
	for id, s := range r.sessions {
		ids[id] = s
	}
	r.mu.Unlock()

	out := make(map[string]session.StatusSnapshot, len(ids))
	for id, s := range ids {
		out[id] = s.Status()
	}
	return out
}

// Persist writes the current snapshot to r.path via temp-file + rename,
// matching store.SaveSnapshot's atomicity. A no-op when path is empty.
func (r *StatsRecorder) Persist() error {
	if r.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".stats-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, r.path)
}

// Run persists on a fixed interval until done is closed, then persists
// once more and returns, mirroring the
// teacher's background-ticker persistence loops (e.g. main.go's log
// cleanup ticker).
func (r *StatsRecorder) Run(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			_ = r.Persist()
			return
		case <-ticker.C:
			if err := r.Persist(); err != nil {
				log.WithError(err).Warn("adminapi: stats persist failed")
			}
		}
	}
}
