package memory

import (
	"time"

	contractx "github.com/dhrits/job-hopper/agent/contract"
)

// ThreadRecord is the persisted shape of one thread: identity, resume text,
// message history, and the rolling summary.
type ThreadRecord struct {
	ThreadID  string              `json:"thread_id"`
	Resume    string              `json:"resume"`
	Messages  []contractx.Message `json:"messages"`
	Summary   string              `json:"summary,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Snapshot converts live memory plus its session context into a record.
func Snapshot(sess contractx.SessionContext, mem *ConversationMemory) ThreadRecord {
	return ThreadRecord{
		ThreadID:  sess.ThreadID,
		Resume:    sess.Resume,
		Messages:  mem.Messages(),
		Summary:   mem.Summary(),
		UpdatedAt: mem.UpdatedAt(),
	}
}

// Restore rebuilds live memory and session context from a record.
func Restore(rec ThreadRecord) (contractx.SessionContext, *ConversationMemory, error) {
	mem := NewConversationMemory(rec.ThreadID)
	for _, msg := range rec.Messages {
		if err := mem.Append(msg); err != nil {
			return contractx.SessionContext{}, nil, err
		}
	}
	mem.ReplaceSummary(rec.Summary)
	sess := contractx.SessionContext{
		ThreadID: rec.ThreadID,
		Resume:   rec.Resume,
	}
	return sess, mem, nil
}
