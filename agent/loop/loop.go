package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	memoryx "github.com/dhrits/job-hopper/agent/memory"
	toolx "github.com/dhrits/job-hopper/agent/tool"
)

// State names the loop's position between model round trips.
type State string

const (
	StateAwaitingStep     State = "awaiting_step"
	StateDispatchingTools State = "dispatching_tools"
	StateTerminal         State = "terminal"
)

const (
	DefaultMaxRoundTrips = 10
	DefaultStepTimeout   = 90 * time.Second
	DefaultToolTimeout   = 60 * time.Second
)

type Config struct {
	MaxRoundTrips int           `envconfig:"AGENT_MAX_ROUND_TRIPS" default:"10"`
	StepTimeout   time.Duration `envconfig:"AGENT_STEP_TIMEOUT" default:"90s"`
	ToolTimeout   time.Duration `envconfig:"AGENT_TOOL_TIMEOUT" default:"60s"`
}

// Loop drives one user turn to completion: ask the model for a step, run
// whatever tool calls it requested, feed the results back, repeat until the
// model answers in plain text or the round-trip ceiling is hit.
type Loop struct {
	completer contractx.Completer
	registry  *toolx.Registry
	cfg       Config
}

func New(completer contractx.Completer, registry *toolx.Registry, cfg Config) (*Loop, error) {
	if completer == nil {
		return nil, fmt.Errorf("%w: loop requires a completer", contractx.ErrValidation)
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: loop requires a tool registry", contractx.ErrValidation)
	}
	if cfg.MaxRoundTrips <= 0 {
		cfg.MaxRoundTrips = DefaultMaxRoundTrips
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	return &Loop{completer: completer, registry: registry, cfg: cfg}, nil
}

// Run executes the turn against mem, which must already contain the user's
// message. Completed rounds are appended to mem as they finish; a failed
// round leaves mem exactly as the previous round left it. The returned
// message is the terminal assistant reply.
func (l *Loop) Run(ctx context.Context, systemPrompt string, mem *memoryx.ConversationMemory, emitter *Emitter) (contractx.Message, error) {
	descriptors := l.registry.Describe()
	state := StateAwaitingStep

	for trip := 0; ; trip++ {
		if trip >= l.cfg.MaxRoundTrips {
			return contractx.Message{}, fmt.Errorf("%w: no terminal reply after %d round trips", contractx.ErrTurnExceeded, trip)
		}
		if err := ctx.Err(); err != nil {
			return contractx.Message{}, turnCtxErr(err)
		}

		log.Debug().
			Str("thread_id", mem.ThreadID()).
			Str("state", string(state)).
			Int("round_trip", trip).
			Msg("requesting model step")

		stepCtx, cancel := context.WithTimeout(ctx, l.cfg.StepTimeout)
		reply, err := l.completer.CompleteStream(stepCtx, l.modelMessages(systemPrompt, mem), descriptors, emitter.Delta)
		cancel()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return contractx.Message{}, turnCtxErr(ctxErr)
			}
			return contractx.Message{}, err
		}

		if len(reply.ToolCalls) == 0 {
			state = StateTerminal
			if err := mem.Append(reply); err != nil {
				return contractx.Message{}, fmt.Errorf("%w: %v", contractx.ErrOrchestration, err)
			}
			emitter.Done(reply.Content)
			log.Debug().
				Str("thread_id", mem.ThreadID()).
				Str("state", string(state)).
				Int("round_trips", trip+1).
				Msg("turn complete")
			return reply, nil
		}

		state = StateDispatchingTools
		results, err := l.dispatch(ctx, reply.ToolCalls, emitter)
		if err != nil {
			return contractx.Message{}, err
		}

		// The assistant step and every result it asked for land in memory
		// together, so a failure mid-round never leaves a dangling call.
		if err := l.commitRound(mem, reply, results); err != nil {
			return contractx.Message{}, err
		}
		state = StateAwaitingStep
	}
}

// dispatch runs every requested call concurrently and returns the results
// in request order. A handler failure becomes an error-flagged result the
// model can react to on the next step; only timeouts and malformed requests
// fail the turn.
func (l *Loop) dispatch(ctx context.Context, calls []contractx.ToolCallRequest, emitter *Emitter) ([]contractx.ToolCallResult, error) {
	seen := make(map[string]struct{}, len(calls))
	for _, call := range calls {
		if call.CallID == "" {
			return nil, fmt.Errorf("%w: tool call for %q has no call id", contractx.ErrOrchestration, call.Name)
		}
		if _, dup := seen[call.CallID]; dup {
			return nil, fmt.Errorf("%w: duplicate tool call id %q", contractx.ErrOrchestration, call.CallID)
		}
		seen[call.CallID] = struct{}{}
	}

	// pending notices only go out once the whole batch has validated; a
	// malformed batch runs no tools and announces none
	for _, call := range calls {
		emitter.ToolPending(call.Name)
	}

	results := make([]contractx.ToolCallResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			toolCtx, cancel := context.WithTimeout(gctx, l.cfg.ToolTimeout)
			defer cancel()

			content, err := l.registry.Invoke(toolCtx, call.Name, call.Arguments)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(toolCtx.Err(), context.DeadlineExceeded) {
					return fmt.Errorf("%w: tool %q timed out", contractx.ErrTurnTimeout, call.Name)
				}
				if ctxErr := gctx.Err(); ctxErr != nil {
					return turnCtxErr(ctxErr)
				}
				log.Warn().
					Err(err).
					Str("tool", call.Name).
					Str("call_id", call.CallID).
					Msg("tool call failed")
				results[i] = contractx.ToolCallResult{
					CallID:  call.CallID,
					Content: fmt.Sprintf("tool call failed: %v", err),
					IsError: true,
				}
				return nil
			}
			results[i] = contractx.ToolCallResult{CallID: call.CallID, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, res := range results {
		if res.CallID != calls[i].CallID {
			return nil, fmt.Errorf("%w: result %d answers call %q, expected %q", contractx.ErrOrchestration, i, res.CallID, calls[i].CallID)
		}
	}
	return results, nil
}

func (l *Loop) commitRound(mem *memoryx.ConversationMemory, reply contractx.Message, results []contractx.ToolCallResult) error {
	if err := mem.Append(reply); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrOrchestration, err)
	}
	for _, res := range results {
		if err := mem.Append(contractx.NewToolMessage(res)); err != nil {
			return fmt.Errorf("%w: %v", contractx.ErrOrchestration, err)
		}
	}
	return nil
}

// modelMessages assembles the prompt window: the system prompt, the running
// summary when one exists, then the retained history.
func (l *Loop) modelMessages(systemPrompt string, mem *memoryx.ConversationMemory) []contractx.Message {
	history := mem.Messages()
	msgs := make([]contractx.Message, 0, len(history)+2)
	msgs = append(msgs, contractx.NewSystemMessage(systemPrompt))
	if summary := mem.Summary(); summary != "" {
		msgs = append(msgs, contractx.NewSystemMessage("Summary of the conversation so far:\n"+summary))
	}
	return append(msgs, history...)
}

func turnCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: turn deadline elapsed", contractx.ErrTurnTimeout)
	}
	return err
}
