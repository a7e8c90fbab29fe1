// Package types defines the shared conversational data model.
package types

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's conversational history. Messages are
// immutable once appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
