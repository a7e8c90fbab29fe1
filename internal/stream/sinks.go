package stream

import (
	"fmt"
	"io"

	"github.com/apollo-chat/apollo/internal/agent"
	"github.com/apollo-chat/apollo/internal/event"
)

// resultPreviewLen caps how much of a tool result the writer sink renders.
const resultPreviewLen = 200

// WriterSink renders turn events as plain text, suitable for a terminal.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) WriteDelta(text string) error {
	_, err := io.WriteString(s.w, text)
	return err
}

func (s *WriterSink) WriteToolCall(calls []agent.CallDescriptor) error {
	for _, c := range calls {
		if _, err := fmt.Fprintf(s.w, "\n[tool] %s %s\n", c.Name, string(c.Arguments)); err != nil {
			return err
		}
	}
	return nil
}

func (s *WriterSink) WriteToolResult(result string) error {
	preview := result
	if len(preview) > resultPreviewLen {
		preview = preview[:resultPreviewLen] + "..."
	}
	_, err := fmt.Fprintf(s.w, "[tool result] %s\n", preview)
	return err
}

// BusSink republishes turn events on the notification bus, tagged with the
// owning session, so out-of-band consumers such as the SSE endpoint can
// observe a turn they did not start.
type BusSink struct {
	bus       *event.Bus
	sessionID string
}

// NewBusSink creates a sink publishing to bus on behalf of sessionID.
func NewBusSink(bus *event.Bus, sessionID string) *BusSink {
	return &BusSink{bus: bus, sessionID: sessionID}
}

// Deltas are published synchronously so the relative order of a turn's
// events survives the bus.
func (s *BusSink) WriteDelta(text string) error {
	s.bus.PublishSync(event.Event{
		Type: event.TurnDelta,
		Data: event.TurnDeltaData{SessionID: s.sessionID, Delta: text},
	})
	return nil
}

func (s *BusSink) WriteToolCall(calls []agent.CallDescriptor) error {
	data := make([]event.ToolCallData, 0, len(calls))
	for _, c := range calls {
		data = append(data, event.ToolCallData{ID: c.ID, Name: c.Name, Arguments: string(c.Arguments)})
	}
	s.bus.PublishSync(event.Event{
		Type: event.TurnToolCall,
		Data: event.TurnToolCallData{SessionID: s.sessionID, Calls: data},
	})
	return nil
}

func (s *BusSink) WriteToolResult(result string) error {
	s.bus.PublishSync(event.Event{
		Type: event.TurnToolResult,
		Data: event.TurnToolResultData{SessionID: s.sessionID, Result: result},
	})
	return nil
}
