package model

// Role identifies the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry of a conversation history.
// Display and Retain are independent: a message may be sent to the model
// without being shown to the user, and vice versa.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Display bool   `json:"display"` // Shown to the end user
	Retain  bool   `json:"retain"`  // Included in the next model call
}
