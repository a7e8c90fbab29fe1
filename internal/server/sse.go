// SSE implementation note: this is a hand-rolled Server-Sent Events writer
// rather than a third-party package. The writer integrates directly with the
// internal notification bus and supports per-session filtering, which the
// general-purpose SSE frameworks do not model.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/apollo-chat/apollo/internal/event"
	"github.com/apollo-chat/apollo/internal/logging"
)

// SSEHeartbeatInterval is the interval between keep-alive comments.
const SSEHeartbeatInterval = 30 * time.Second

// wireEvent is the JSON payload of one SSE message.
type wireEvent struct {
	Type event.Type `json:"type"`
	Data any        `json:"data"`
}

// sseWriter wraps http.ResponseWriter for SSE output.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeEvent(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: message\ndata: %s\n\n", payload); err != nil {
		return err
	}
	// ResponseController flushes through middleware wrappers; fall back to
	// the plain flusher if it cannot.
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// events streams bus notifications to the client. An optional sessionID
// query parameter restricts turn events to one session; connection
// lifecycle events always pass the filter.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Flush headers before the first event so the client sees the stream
	// open immediately.
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	if err := sse.writeEvent(wireEvent{Type: "server.connected", Data: map[string]any{}}); err != nil {
		return
	}

	events := make(chan event.Event, 16)
	unsub := s.bus.SubscribeAll(func(e event.Event) {
		if sessionID != "" && !eventBelongsToSession(e, sessionID) {
			return
		}
		select {
		case events <- e:
		default:
			logging.Warn().Str("eventType", string(e.Type)).Msg("sse event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.writeEvent(wireEvent{Type: e.Type, Data: e.Data}); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}

func eventBelongsToSession(e event.Event, sessionID string) bool {
	switch data := e.Data.(type) {
	case event.TurnDeltaData:
		return data.SessionID == sessionID
	case event.TurnToolCallData:
		return data.SessionID == sessionID
	case event.TurnToolResultData:
		return data.SessionID == sessionID
	case event.TurnDoneData:
		return data.SessionID == sessionID
	case event.TurnErrorData:
		return data.SessionID == sessionID
	}
	// Connection lifecycle events are not session-scoped.
	return true
}
