// Package llm provides the chat-completions client shared by the
// reasoning agents and the policy judge.
package llm

// Message roles follow the chat-completions convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// User builds a user turn.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant turn.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
