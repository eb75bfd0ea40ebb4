package memory

import (
	"errors"
	"fmt"
	"time"

	contractx "github.com/dhrits/job-hopper/agent/contract"
)

var (
	ErrDuplicateMessageID = errors.New("duplicate message id")
	ErrEmptyMessageID     = errors.New("message id is empty")
	ErrUnbalancedLedger   = errors.New("tool-call ledger is unbalanced")
)

// ConversationMemory is the mutable state of one thread: an ordered message
// sequence plus an optional rolling summary. Appends preserve order; bulk
// removal happens only through Prune during summarization.
type ConversationMemory struct {
	threadID  string
	messages  []contractx.Message
	summary   string
	updatedAt time.Time
}

func NewConversationMemory(threadID string) *ConversationMemory {
	return &ConversationMemory{
		threadID:  threadID,
		updatedAt: time.Now().UTC(),
	}
}

func (m *ConversationMemory) ThreadID() string {
	return m.threadID
}

// Append adds msg to the end of the sequence. Message ids must be unique
// within a memory instance.
func (m *ConversationMemory) Append(msg contractx.Message) error {
	if msg.ID == "" {
		return ErrEmptyMessageID
	}
	for _, existing := range m.messages {
		if existing.ID == msg.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateMessageID, msg.ID)
		}
	}
	m.messages = append(m.messages, msg)
	m.updatedAt = time.Now().UTC()
	return nil
}

// Messages returns the history in append order. The slice is a copy; the
// caller cannot mutate memory through it.
func (m *ConversationMemory) Messages() []contractx.Message {
	out := make([]contractx.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *ConversationMemory) Len() int {
	return len(m.messages)
}

func (m *ConversationMemory) Summary() string {
	return m.summary
}

func (m *ConversationMemory) ReplaceSummary(text string) {
	m.summary = text
	m.updatedAt = time.Now().UTC()
}

// Prune removes all but the last keepLastN messages and returns the removed
// set in their original order. keepLastN <= 0 clears the history.
func (m *ConversationMemory) Prune(keepLastN int) []contractx.Message {
	if keepLastN < 0 {
		keepLastN = 0
	}
	if keepLastN >= len(m.messages) {
		return nil
	}

	cut := len(m.messages) - keepLastN
	removed := make([]contractx.Message, cut)
	copy(removed, m.messages[:cut])

	kept := make([]contractx.Message, keepLastN)
	copy(kept, m.messages[cut:])
	m.messages = kept
	m.updatedAt = time.Now().UTC()
	return removed
}

func (m *ConversationMemory) UpdatedAt() time.Time {
	return m.updatedAt
}

type memorySnapshot struct {
	messages  []contractx.Message
	summary   string
	updatedAt time.Time
}

func (m *ConversationMemory) snapshot() memorySnapshot {
	msgs := make([]contractx.Message, len(m.messages))
	copy(msgs, m.messages)
	return memorySnapshot{
		messages:  msgs,
		summary:   m.summary,
		updatedAt: m.updatedAt,
	}
}

func (m *ConversationMemory) restore(snap memorySnapshot) {
	m.messages = snap.messages
	m.summary = snap.summary
	m.updatedAt = snap.updatedAt
}

// Validate checks the tool-call ledger: every tool-call request in an
// assistant message must be answered by exactly one tool-role message,
// matched by call id, before the next non-tool message.
func (m *ConversationMemory) Validate() error {
	pending := map[string]bool{}
	for _, msg := range m.messages {
		switch msg.Role {
		case contractx.RoleTool:
			if msg.ToolCallID == "" {
				return fmt.Errorf("%w: tool message %s has no call id", ErrUnbalancedLedger, msg.ID)
			}
			if !pending[msg.ToolCallID] {
				return fmt.Errorf("%w: result for unknown call id %s", ErrUnbalancedLedger, msg.ToolCallID)
			}
			delete(pending, msg.ToolCallID)
		default:
			if len(pending) > 0 {
				return fmt.Errorf("%w: %d unanswered tool calls", ErrUnbalancedLedger, len(pending))
			}
			for _, call := range msg.ToolCalls {
				if call.CallID == "" {
					return fmt.Errorf("%w: tool call without id in message %s", ErrUnbalancedLedger, msg.ID)
				}
				if pending[call.CallID] {
					return fmt.Errorf("%w: duplicate call id %s", ErrUnbalancedLedger, call.CallID)
				}
				pending[call.CallID] = true
			}
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: %d unanswered tool calls at end of history", ErrUnbalancedLedger, len(pending))
	}
	return nil
}
