package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"fetchgate/internal/eventlog"
	"fetchgate/internal/logger"
)

// Server exposes liveness, readiness and the recent event log over HTTP.
type Server struct {
	server *http.Server
	ready  func() bool
	events *eventlog.MemorySink
}

// New builds the health server. ready reports whether the gateway is
// accepting connections; events may be nil.
func New(addr string, ready func() bool, events *eventlog.MemorySink) *Server {
	mux := http.NewServeMux()
	hs := &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ready:  ready,
		events: events,
	}

	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/ready", hs.handleReady)
	mux.HandleFunc("/events", hs.handleEvents)

	return hs
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() {
	go func() {
		logger.Info("Health server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server error", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && s.ready() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, e := range s.events.Entries() {
		fmt.Fprintf(w, "%s> %s\n", e.At.Format(eventlog.TimeLayout), e.Text)
	}
}
