package coachnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	memoryx "github.com/dhrits/job-hopper/agent/memory"
)

// PersistMemory writes the thread back through the session store. It runs
// for successful turns and for turns cut short by a timeout or the
// round-trip ceiling, so every committed round survives the failure.
func PersistMemory(
	ctx context.Context,
	in *GraphState,
	sessions *memoryx.SessionStore,
) (*GraphState, error) {
	if in == nil || in.Memory == nil {
		return nil, fmt.Errorf("%w: graph memory is nil", contractx.ErrValidation)
	}

	if err := in.Memory.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrOrchestration, err)
	}

	if err := sessions.Persist(ctx, in.ThreadID); err != nil {
		return nil, err
	}

	log.Debug().
		Str("thread_id", in.ThreadID).
		Int("messages", in.Memory.Len()).
		Msg("thread persisted")
	return in, nil
}
