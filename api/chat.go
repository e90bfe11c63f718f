package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// maxQuestionLength caps request bodies at something generous for a
// question but hostile to abuse.
const maxQuestionLength = 8192

type chatRequest struct {
	// SessionID is optional; empty means a one-off question that is not
	// recorded.
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
}

type chatResponse struct {
	Answer string `json:"answer"`
	Route  string `json:"route"`

	// SessionID echoes the session the exchange was recorded under, when
	// one was supplied.
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxQuestionLength*2)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if len(question) > maxQuestionLength {
		s.writeError(w, http.StatusBadRequest, "question too long")
		return
	}

	sessionID := uuid.Nil
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid session ID")
			return
		}
		sessionID = id
	}

	answer, err := s.assistant.Ask(r.Context(), sessionID, question)
	if err != nil {
		s.logger.Error("answering question", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	resp := chatResponse{
		Answer: answer.Text,
		Route:  string(answer.Route),
	}
	if sessionID != uuid.Nil {
		resp.SessionID = sessionID.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}
