// Package server provides the tracker's optional HTTP monitor.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the server configuration.
type Config struct {
	// Store enables the sessions API. Optional.
	Store  *store.Store
	Logger zerolog.Logger
}

// Server serves health, the annotated preview stream, live control
// messages and recorded sessions.
type Server struct {
	config   Config
	mux      *http.ServeMux
	start    time.Time
	frames   *FrameBuffer
	controls *ControlHub
	log      zerolog.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config:   config,
		mux:      http.NewServeMux(),
		start:    time.Now(),
		frames:   NewFrameBuffer(),
		controls: NewControlHub(config.Logger),
		log:      config.Logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/stream", NewStreamHandler(s.frames))
	s.mux.Handle("/api/controls", s.controls)

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}
}

// Frames is the sink for annotated preview frames.
func (s *Server) Frames() *FrameBuffer {
	return s.frames
}

// Controls is the sink for published control messages.
func (s *Server) Controls() *ControlHub {
	return s.controls
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":          "ok",
		"uptime":          time.Since(s.start).Round(time.Second).String(),
		"control_clients": s.controls.Clients(),
		"stream_viewers":  s.frames.Viewers(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.controls.CloseAll()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", addr).Msg("monitor listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
