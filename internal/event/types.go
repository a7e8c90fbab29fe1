package event

// MCPConnectedData accompanies mcp.connected events.
type MCPConnectedData struct {
	Name      string `json:"name"`
	ToolCount int    `json:"toolCount"`
}

// MCPConnectErrorData accompanies mcp.connect_error events.
type MCPConnectErrorData struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// MCPDisconnectedData accompanies mcp.disconnected events.
type MCPDisconnectedData struct {
	Name string `json:"name"`
}

// TurnDeltaData accompanies turn.delta events.
type TurnDeltaData struct {
	SessionID string `json:"sessionID"`
	Delta     string `json:"delta"`
}

// ToolCallData describes one announced tool call.
type ToolCallData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// TurnToolCallData accompanies turn.tool_call events.
type TurnToolCallData struct {
	SessionID string         `json:"sessionID"`
	Calls     []ToolCallData `json:"calls"`
}

// TurnToolResultData accompanies turn.tool_result events.
type TurnToolResultData struct {
	SessionID string `json:"sessionID"`
	Result    string `json:"result"`
}

// TurnDoneData accompanies turn.done events.
type TurnDoneData struct {
	SessionID string `json:"sessionID"`
	Content   string `json:"content"`
}

// TurnErrorData accompanies turn.error events. PartialLen reports how much
// token text had already been rendered when the turn failed.
type TurnErrorData struct {
	SessionID  string `json:"sessionID"`
	Error      string `json:"error"`
	PartialLen int    `json:"partialLen"`
}
