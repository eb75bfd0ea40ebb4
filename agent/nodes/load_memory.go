package coachnode

import (
	"context"
	"fmt"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	memoryx "github.com/dhrits/job-hopper/agent/memory"
)

// LoadOrCreateMemory hydrates the thread's session and history, then appends
// the incoming user message. The caller holds the thread lock for the whole
// turn, so the memory is ours until persist.
func LoadOrCreateMemory(
	ctx context.Context,
	in *GraphState,
	sessions *memoryx.SessionStore,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sess, mem, err := sessions.GetOrCreate(ctx, contractx.SessionContext{ThreadID: in.ThreadID})
	if err != nil {
		return nil, err
	}

	if err := mem.Append(contractx.NewUserMessage(in.Text)); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrOrchestration, err)
	}

	in.Session = sess
	in.Memory = mem
	return in, nil
}
