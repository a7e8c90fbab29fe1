// Package session owns conversational state and turn orchestration.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/apollo-chat/apollo/pkg/types"
)

// Session is one conversation. Its history is append-only: the system prompt
// is seeded at creation, each completed turn appends a user and an assistant
// message, and no entry is ever mutated or removed.
type Session struct {
	id      string
	created time.Time

	mu      sync.Mutex
	history []types.Message
	cancel  context.CancelFunc

	// turnMu serializes turns; a session processes one turn at a time.
	turnMu sync.Mutex
}

func newSession(systemPrompt string) *Session {
	return &Session{
		id:      ulid.Make().String(),
		created: time.Now(),
		history: []types.Message{{Role: types.RoleSystem, Content: systemPrompt}},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Created returns the session creation time.
func (s *Session) Created() time.Time { return s.created }

// History returns a copy of the message history in append order.
func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Message(nil), s.history...)
}

func (s *Session) appendUser(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, types.Message{Role: types.RoleUser, Content: content})
}

func (s *Session) appendAssistant(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, types.Message{Role: types.RoleAssistant, Content: content})
}

func (s *Session) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

func (s *Session) interrupt() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
