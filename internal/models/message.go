package models

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
// Error is a local annotation for replies that failed; it is never sent
// by the server.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Error   bool   `json:"error,omitempty"`
}

// IsUser reports whether the message was written by the user
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsAssistant reports whether the message was written by the assistant
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}
