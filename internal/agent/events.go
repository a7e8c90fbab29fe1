package agent

import "encoding/json"

// Event is one element of a turn's live output stream. It is a closed
// variant: the only implementations are TokenDelta, ToolCall and ToolResult,
// so consumers can switch exhaustively without a default arm for unknown
// shapes.
type Event interface {
	isEvent()
}

// TokenDelta carries an incremental fragment of assistant text.
type TokenDelta struct {
	Text string
}

func (TokenDelta) isEvent() {}

// CallDescriptor identifies one announced tool invocation.
type CallDescriptor struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCall announces the model's tool invocations for the current step, in
// the order the model issued them.
type ToolCall struct {
	Calls []CallDescriptor
}

func (ToolCall) isEvent() {}

// ToolResult carries the textual outcome of one tool invocation.
type ToolResult struct {
	Result string
}

func (ToolResult) isEvent() {}
