package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"fixengine/session"
)

// SessionInfo is the JSON shape returned by /api/sessions and
// /api/sessions/{id}/status, mirroring server/handlers.go's ServerInfo.
type SessionInfo struct {
	ID       string `json:"id"`
	Identity string `json:"identity"`
	State    string `json:"state"`
	LastErr  string `json:"lastError,omitempty"`
}

func toSessionInfo(id string, snap session.StatusSnapshot) SessionInfo {
	return SessionInfo{
		ID:       id,
		Identity: snap.Identity.String(),
		State:    snap.State.String(),
		LastErr:  snap.LastErr,
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	out := make([]SessionInfo, 0, len(s.sessions))
	for id, sess := range s.sessions {
		out = append(out, toSessionInfo(id, sess.Status()))
	}
	writeJSON(w, out)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, ok := s.lookup(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, toSessionInfo(id, sess.Status()))
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, ok := s.lookup(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, sess.Status().Stats)
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, ok := s.lookup(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	sess.RequestStop()
	writeJSON(w, map[string]string{"status": "stopping"})
}

func (s *Server) handleSessionResetSeqNo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, ok := s.lookup(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	sess.RequestResetOnNextLogon()
	writeJSON(w, map[string]string{"status": "armed"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
