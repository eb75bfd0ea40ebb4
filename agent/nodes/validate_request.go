package coachnode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	loopx "github.com/dhrits/job-hopper/agent/loop"
	memoryx "github.com/dhrits/job-hopper/agent/memory"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidThread  = errors.New("thread id is empty")
	ErrMissingEmitter = errors.New("event emitter is required")
)

type GraphInput struct {
	ThreadID string
	Text     string
	Emitter  *loopx.Emitter
}

type GraphOutput struct {
	Reply string
}

type GraphState struct {
	ThreadID string
	Text     string
	Now      time.Time
	Emitter  *loopx.Emitter

	Session contractx.SessionContext
	Memory  *memoryx.ConversationMemory

	Reply contractx.Message

	// TurnErr carries a timeout or round-trip-ceiling failure past the
	// persist node so the partial turn still lands in the store.
	TurnErr error
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	threadID := strings.TrimSpace(in.ThreadID)
	if threadID == "" {
		return nil, ErrInvalidThread
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	if in.Emitter == nil {
		return nil, ErrMissingEmitter
	}

	return &GraphState{
		ThreadID: threadID,
		Text:     text,
		Now:      nowFn().UTC(),
		Emitter:  in.Emitter,
	}, nil
}
