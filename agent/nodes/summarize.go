package coachnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	summarizerx "github.com/dhrits/job-hopper/agent/summarizer"
)

// SummarizeHistory compacts the thread before the model sees it. A failure
// aborts the turn with the memory untouched, so nothing half-compacted is
// ever persisted.
func SummarizeHistory(
	ctx context.Context,
	in *GraphState,
	summarizer *summarizerx.Summarizer,
) (*GraphState, error) {
	if in == nil || in.Memory == nil {
		return nil, fmt.Errorf("%w: graph memory is nil", contractx.ErrValidation)
	}

	compacted, err := summarizer.Compact(ctx, in.Memory)
	if err != nil {
		return nil, err
	}
	if compacted {
		log.Info().
			Str("thread_id", in.ThreadID).
			Int("retained", in.Memory.Len()).
			Msg("history compacted into summary")
	}
	return in, nil
}
