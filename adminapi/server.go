package adminapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"fixengine/session"
)

// Server is the admin HTTP surface, grounded on server/server.go's
// mux.Router + http.Server + ctx-driven shutdown shape.
type Server struct {
	addr       string
	sessions   map[string]*session.Session
	stats      *StatsRecorder
	router     *mux.Router
	httpServer *http.Server
}

// New builds a Server listening on addr, exposing the given sessions
// (keyed by the id they're addressed by in the API: /api/sessions/{id}).
func New(addr string, sessions map[string]*session.Session, stats *StatsRecorder) *Server {
	s := &Server{
		addr:     addr,
		sessions: sessions,
		stats:    stats,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}/status", s.handleSessionStatus).Methods("GET")
	api.HandleFunc("/sessions/{id}/stats", s.handleSessionStats).Methods("GET")
	api.HandleFunc("/sessions/{id}/stop", s.handleSessionStop).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset-seqno", s.handleSessionResetSeqNo).Methods("POST")
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("adminapi: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails, mirroring server/server.go's Run contract.
func (s *Server) Run(ctx context.Context) error {
	s.router.Use(loggingMiddleware)
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		log.Info("adminapi: context done, shutting down")
		s.httpServer.Shutdown(context.Background())
	}()

	log.Infof("adminapi: listening on %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	if err != nil {
		return fmt.Errorf("adminapi: %w", err)
	}
	return nil
}

func (s *Server) lookup(id string) (*session.Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}
