// Package mcp manages Model Context Protocol tool-provider connections.
package mcp

// TransportType selects how a provider connection is dialed.
type TransportType string

const (
	TransportRemote TransportType = "remote"
	TransportStdio  TransportType = "stdio"
)

// Config describes one tool-provider connection.
type Config struct {
	Type        TransportType     `json:"type"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	TimeoutMS   int               `json:"timeout,omitempty"`
}

// Status is the connection state. A name cycles
// Disconnected -> Connecting -> Connected -> Disconnected indefinitely;
// Failed records an unsuccessful connect attempt and is equivalent to
// Disconnected for cache purposes.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusFailed       Status = "failed"
)

// ConnectionStatus is a point-in-time view of one named connection.
type ConnectionStatus struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	ToolCount int    `json:"toolCount"`
	Error     string `json:"error,omitempty"`
}
