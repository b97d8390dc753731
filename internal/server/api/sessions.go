// Package api provides HTTP API handlers for recorded tracker sessions.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/store"
)

// SessionHandler serves read-only session resources.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and
// /api/sessions/{id}/samples.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		h.list(w)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	switch rest {
	case "":
		h.get(w, id)
	case "samples":
		h.samples(w, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type sessionResponse struct {
	ID        string  `json:"id"`
	Device    int     `json:"device"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at,omitempty"`
	Samples   int     `json:"samples"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type sampleResponse struct {
	Seq      int     `json:"seq"`
	OffsetMs int64   `json:"offset_ms"`
	XAngle   float64 `json:"xangle"`
	YAngle   float64 `json:"yangle"`
	Scale    float64 `json:"scale"`
}

type listSamplesResponse struct {
	SessionID string           `json:"session_id"`
	Samples   []sampleResponse `json:"samples"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func toResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		Device:    s.Device,
		StartedAt: s.StartedAt.Format(timeLayout),
		Samples:   s.Samples,
	}
	if s.EndedAt != nil {
		ended := s.EndedAt.Format(timeLayout)
		resp.EndedAt = &ended
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (h *SessionHandler) list(w http.ResponseWriter) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(s))
}

func (h *SessionHandler) samples(w http.ResponseWriter, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	samples, err := h.store.Sessions().Samples(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list samples")
		return
	}

	resp := listSamplesResponse{SessionID: id, Samples: make([]sampleResponse, 0, len(samples))}
	for _, s := range samples {
		resp.Samples = append(resp.Samples, sampleResponse{
			Seq:      s.Seq,
			OffsetMs: s.Offset.Milliseconds(),
			XAngle:   s.Message.XAngle,
			YAngle:   s.Message.YAngle,
			Scale:    s.Message.Scale,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
