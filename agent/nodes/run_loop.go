package coachnode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	loopx "github.com/dhrits/job-hopper/agent/loop"
	promptx "github.com/dhrits/job-hopper/agent/prompt"
	toolx "github.com/dhrits/job-hopper/agent/tool"
)

// LoopDeps is everything the turn loop node needs beyond the graph state.
type LoopDeps struct {
	Completer contractx.Completer
	Catalog   toolx.CatalogDeps
	Prompts   promptx.PromptSet
	Config    loopx.Config
}

// RunTurnLoop builds the session's tool catalog and drives the model/tool
// loop until a terminal reply. Timeouts and the round-trip ceiling do not
// abort the graph; they are recorded so completed rounds still persist, and
// the final node surfaces them to the caller.
func RunTurnLoop(ctx context.Context, in *GraphState, deps LoopDeps) (*GraphState, error) {
	if in == nil || in.Memory == nil {
		return nil, fmt.Errorf("%w: graph memory is nil", contractx.ErrValidation)
	}

	registry, err := toolx.BuildCatalog(in.Session, deps.Catalog)
	if err != nil {
		return nil, err
	}

	runner, err := loopx.New(deps.Completer, registry, deps.Config)
	if err != nil {
		return nil, err
	}

	reply, err := runner.Run(ctx, systemPrompt(deps.Prompts, in.Session), in.Memory, in.Emitter)
	if err != nil {
		if errors.Is(err, contractx.ErrTurnTimeout) || errors.Is(err, contractx.ErrTurnExceeded) {
			in.TurnErr = err
			return in, nil
		}
		return nil, err
	}

	in.Reply = reply
	return in, nil
}

func systemPrompt(prompts promptx.PromptSet, sess contractx.SessionContext) string {
	resume := sess.Resume
	if resume == "" {
		resume = "(no resume on file yet)"
	}
	return promptx.Render(prompts.Coach, map[string]string{"resume": resume})
}
