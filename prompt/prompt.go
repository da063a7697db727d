// Package prompt implements the ordered message sequence shared by a run
// (spec component C2) and the read/write sessions used to observe and
// mutate it. Prompt mutation happens only inside a write session, which is
// serialized per run; readers observe either the pre- or post-mutation
// prompt, never a partial state.
package prompt

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolCall   Role = "tool_call"
	RoleToolResult Role = "tool_result"
)

// ResponseMetadata carries provider-reported bookkeeping for a message
// produced by an LLM call: timestamps, token accounting, and provider info.
type ResponseMetadata struct {
	Timestamp    time.Time
	PromptTokens int
	OutputTokens int
	TotalTokens  int
	Provider     string
	Model        string
}

// Message is a single entry in a Prompt.
type Message struct {
	Role     Role
	Content  string
	ToolName string // set for RoleToolCall/RoleToolResult
	ToolCall string // tool call id correlating a result to its call
	Metadata ResponseMetadata
}

// Prompt is the ordered sequence of messages that make up a conversation.
// Once set, the first message is always the system message; Prompt itself
// is an immutable value — mutation happens through Controller sessions.
type Prompt struct {
	Messages []Message
}

// SystemMessage returns the prompt's system message, if any has been set.
func (p Prompt) SystemMessage() (Message, bool) {
	if len(p.Messages) == 0 || p.Messages[0].Role != RoleSystem {
		return Message{}, false
	}
	return p.Messages[0], true
}

// Clone returns a deep copy of the prompt's message slice.
func (p Prompt) Clone() Prompt {
	out := make([]Message, len(p.Messages))
	copy(out, p.Messages)
	return Prompt{Messages: out}
}
