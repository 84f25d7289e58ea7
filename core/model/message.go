package model

// Role identifies the author of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the accepted roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is one (role, content) pair of a prompt.
type Message struct {
	Role    Role   `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// Split returns the roles and contents of the prompt as parallel slices,
// which is the shape responders expect on the wire.
func Split(prompt []Message) ([]string, []string) {
	roles := make([]string, len(prompt))
	contents := make([]string, len(prompt))
	for i, m := range prompt {
		roles[i] = string(m.Role)
		contents[i] = m.Content
	}
	return roles, contents
}
