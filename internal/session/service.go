package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/apollo-chat/apollo/internal/agent"
	"github.com/apollo-chat/apollo/internal/event"
	"github.com/apollo-chat/apollo/internal/logging"
	"github.com/apollo-chat/apollo/internal/stream"
	"github.com/apollo-chat/apollo/internal/toolcache"
	"github.com/apollo-chat/apollo/pkg/types"
)

var (
	// ErrSessionNotFound reports an unknown or ended session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTurnInProgress reports a turn submitted while another is running
	// on the same session.
	ErrTurnInProgress = errors.New("turn already in progress")
)

// TurnRunner executes one streamed turn. *agent.Runner implements it.
type TurnRunner interface {
	Run(ctx context.Context, history []types.Message, tools map[string][]toolcache.ToolDescriptor) (*agent.EventStream, error)
}

// Service manages sessions and drives their turns. Sessions are isolated:
// each holds its own history, and a turn on one never observes another.
type Service struct {
	runner TurnRunner
	cache  *toolcache.Cache
	bus    *event.Bus
	prompt string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a session service. cache supplies the tool snapshot
// taken at each turn start; bus receives turn lifecycle notifications.
func NewService(runner TurnRunner, cache *toolcache.Cache, bus *event.Bus, systemPrompt string) *Service {
	return &Service{
		runner:   runner,
		cache:    cache,
		bus:      bus,
		prompt:   systemPrompt,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session seeded with the system prompt.
func (svc *Service) Create() *Session {
	sess := newSession(svc.prompt)

	svc.mu.Lock()
	svc.sessions[sess.id] = sess
	svc.mu.Unlock()

	logging.Debug().Str("session", sess.id).Msg("session created")
	return sess
}

// Get returns the session with the given id.
func (svc *Service) Get(id string) (*Session, bool) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	sess, ok := svc.sessions[id]
	return sess, ok
}

// List returns all live sessions ordered by creation time.
func (svc *Service) List() []*Session {
	svc.mu.RLock()
	out := make([]*Session, 0, len(svc.sessions))
	for _, sess := range svc.sessions {
		out = append(out, sess)
	}
	svc.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].created.Equal(out[j].created) {
			return out[i].id < out[j].id
		}
		return out[i].created.Before(out[j].created)
	})
	return out
}

// End removes a session, interrupting any in-flight turn. Ending an unknown
// session is a no-op.
func (svc *Service) End(id string) bool {
	svc.mu.Lock()
	sess, ok := svc.sessions[id]
	delete(svc.sessions, id)
	svc.mu.Unlock()

	if !ok {
		return false
	}
	sess.interrupt()
	logging.Debug().Str("session", id).Msg("session ended")
	return true
}

// CurrentTools returns the tool snapshot a turn started now would see.
func (svc *Service) CurrentTools() map[string][]toolcache.ToolDescriptor {
	return svc.cache.Snapshot()
}

// ProcessTurn runs one turn: it appends the user message, invokes the model
// over the full history with the tool snapshot taken at turn start, fans the
// event stream out to the given sinks (plus the bus), and appends the
// assistant message only when the turn completes cleanly. The accumulated
// assistant text is returned even on failure, alongside the error.
func (svc *Service) ProcessTurn(ctx context.Context, id string, prompt string, sinks ...stream.Sink) (string, error) {
	sess, ok := svc.Get(id)
	if !ok {
		return "", ErrSessionNotFound
	}

	if !sess.turnMu.TryLock() {
		return "", ErrTurnInProgress
	}
	defer sess.turnMu.Unlock()

	// Snapshot before the turn starts; mid-turn cache changes do not
	// affect a running turn.
	tools := svc.cache.Snapshot()

	sess.appendUser(prompt)

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess.setCancel(cancel)
	defer sess.setCancel(nil)

	es, err := svc.runner.Run(turnCtx, sess.History(), tools)
	if err != nil {
		svc.publishError(id, err, 0)
		return "", err
	}

	mux := stream.NewMultiplexer(append(sinks, stream.NewBusSink(svc.bus, id))...)
	text, err := mux.Drain(turnCtx, es)
	if err != nil {
		svc.publishError(id, err, len(text))
		return text, err
	}

	sess.appendAssistant(text)
	svc.bus.Publish(event.Event{
		Type: event.TurnDone,
		Data: event.TurnDoneData{SessionID: id, Content: text},
	})
	return text, nil
}

func (svc *Service) publishError(id string, err error, partialLen int) {
	logging.Warn().Str("session", id).Err(err).Msg("turn failed")
	svc.bus.Publish(event.Event{
		Type: event.TurnError,
		Data: event.TurnErrorData{SessionID: id, Error: err.Error(), PartialLen: partialLen},
	})
}
