package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/finsight/finsight/internal/session"
)

type sessionResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Route     string    `json:"route,omitempty"`
	Sequence  int       `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

func toSessionResponse(s *session.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID.String(),
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sess, err := s.sessions.CreateSession(r.Context(), req.Title)
	if err != nil {
		s.logger.Error("creating session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	s.writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	sessions, err := s.sessions.ListSessions(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("listing sessions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	if _, err := s.sessions.GetSession(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("getting session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	msgs, err := s.sessions.Messages(r.Context(), id)
	if err != nil {
		s.logger.Error("listing messages", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			Role:      m.Role,
			Content:   m.Content,
			Route:     m.Route,
			Sequence:  m.Sequence,
			CreatedAt: m.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	if err := s.sessions.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("deleting session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
