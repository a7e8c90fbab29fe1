// Package stream fans one turn's event stream out to rendering sinks while
// accumulating the assistant text.
package stream

import (
	"context"
	"io"
	"strings"

	"github.com/apollo-chat/apollo/internal/agent"
	"github.com/apollo-chat/apollo/internal/logging"
)

// Sink receives the rendered form of turn events. Implementations must be
// safe to call from the draining goroutine only; the multiplexer never calls
// a sink concurrently with itself.
type Sink interface {
	WriteDelta(text string) error
	WriteToolCall(calls []agent.CallDescriptor) error
	WriteToolResult(result string) error
}

// Multiplexer drains one event stream into any number of sinks, preserving
// event order across all of them.
type Multiplexer struct {
	sinks []Sink
}

// NewMultiplexer creates a multiplexer over the given sinks. Zero sinks is
// valid; the multiplexer still accumulates the assistant text.
func NewMultiplexer(sinks ...Sink) *Multiplexer {
	return &Multiplexer{sinks: sinks}
}

// Drain consumes the stream to completion and returns the concatenation of
// all token deltas. On clean completion the error is nil. When ctx is
// cancelled the stream is closed, the partial text is returned alongside the
// context error, and no further sink writes happen. A sink write failure
// never aborts the turn; the event is still delivered to the remaining
// sinks.
func (m *Multiplexer) Drain(ctx context.Context, es *agent.EventStream) (string, error) {
	stop := context.AfterFunc(ctx, es.Close)
	defer stop()

	var text strings.Builder
	for {
		ev, err := es.Recv()
		if err == io.EOF {
			return text.String(), nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return text.String(), ctx.Err()
			}
			return text.String(), err
		}
		if ctx.Err() != nil {
			return text.String(), ctx.Err()
		}

		switch ev := ev.(type) {
		case agent.TokenDelta:
			text.WriteString(ev.Text)
			m.fanOut("delta", func(s Sink) error { return s.WriteDelta(ev.Text) })
		case agent.ToolCall:
			m.fanOut("tool_call", func(s Sink) error { return s.WriteToolCall(ev.Calls) })
		case agent.ToolResult:
			m.fanOut("tool_result", func(s Sink) error { return s.WriteToolResult(ev.Result) })
		}
	}
}

func (m *Multiplexer) fanOut(kind string, write func(Sink) error) {
	for _, s := range m.sinks {
		if err := write(s); err != nil {
			logging.Warn().Str("event", kind).Err(err).Msg("sink write failed")
		}
	}
}
