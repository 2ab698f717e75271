package history

import "fmt"

// Role is the author of a message. Only the three chat roles are valid.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the chat roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message represents a single conversational turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the ordered message history, oldest first. The order is
// the order sent to the completion API.
type Conversation []Message

// Validate returns an error wrapping ErrCorruptData for the first message
// with an unknown role.
func (c Conversation) Validate() error {
	for i, m := range c {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has role %q", ErrCorruptData, i, m.Role)
		}
	}
	return nil
}

// Clone returns a copy that shares no backing array with c.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}
