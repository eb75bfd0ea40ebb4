package contract

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn entry in a conversation. Messages are immutable once
// appended to memory; assistant content may be filled progressively while a
// response is still streaming, but never after the turn commits.
type Message struct {
	ID         string            `json:"id"`
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ToolCallRequest is produced by the model inside an assistant message.
type ToolCallRequest struct {
	CallID    string         `json:"call_id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolCallResult is produced by the dispatcher. CallID must match a pending
// request; every request receives exactly one result before the next step.
type ToolCallResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// SessionContext carries the per-thread immutable inputs: the thread id and
// the resume text the coach was opened with. It parameterizes the system
// prompt and the resume-aware tools.
type SessionContext struct {
	ThreadID string `json:"thread_id"`
	Resume   string `json:"resume"`
}

// Document is a retrieved or searched content unit.
type Document struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content"`
}

// ToolDescriptor is the model-facing half of a tool: name, natural-language
// description, and a JSON-Schema parameter object.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func NewSystemMessage(content string) Message {
	return newMessage(RoleSystem, content)
}

func NewUserMessage(content string) Message {
	return newMessage(RoleUser, content)
}

func NewAssistantMessage(content string, calls []ToolCallRequest) Message {
	msg := newMessage(RoleAssistant, content)
	msg.ToolCalls = calls
	return msg
}

// NewToolMessage wraps a ToolCallResult as a tool-role message linked back to
// its request by call id.
func NewToolMessage(res ToolCallResult) Message {
	msg := newMessage(RoleTool, res.Content)
	msg.ToolCallID = res.CallID
	return msg
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
