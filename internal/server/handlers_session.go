package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/apollo-chat/apollo/internal/session"
	"github.com/apollo-chat/apollo/pkg/types"
)

// SessionInfo is the wire representation of a session.
type SessionInfo struct {
	ID           string    `json:"id"`
	Created      time.Time `json:"created"`
	MessageCount int       `json:"messageCount"`
}

func sessionInfo(sess *session.Session) SessionInfo {
	return SessionInfo{
		ID:           sess.ID(),
		Created:      sess.Created(),
		MessageCount: len(sess.History()),
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, sessionInfo(sess))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	list := s.sessions.List()
	out := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		out = append(out, sessionInfo(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionInfo(sess))
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.End(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ended": true})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	history := sess.History()
	if history == nil {
		history = []types.Message{}
	}
	writeJSON(w, http.StatusOK, history)
}

// sendMessageRequest is the body of POST /session/{sessionID}/message.
type sendMessageRequest struct {
	Content string `json:"content"`
}

// turnResponse is the final result of a completed turn. Incremental output
// is delivered over /event.
type turnResponse struct {
	SessionID string `json:"sessionID"`
	Content   string `json:"content"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "content required")
		return
	}

	content, err := s.sessions.ProcessTurn(r.Context(), sessionID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		case errors.Is(err, session.ErrTurnInProgress):
			writeError(w, http.StatusConflict, ErrCodeConflict, "turn already in progress")
		default:
			writeError(w, http.StatusBadGateway, ErrCodeProviderError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, turnResponse{SessionID: sessionID, Content: content})
}
