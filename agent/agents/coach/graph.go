package coach

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/dhrits/job-hopper/agent/nodes"
)

func (c *Coach) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, c.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_or_create_memory",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateMemory(ctx, in, c.sessions)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_or_create_memory: %w", err)
	}

	if err := graph.AddLambdaNode("summarize_history",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SummarizeHistory(ctx, in, c.summarizer)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node summarize_history: %w", err)
	}

	if err := graph.AddLambdaNode("run_turn_loop",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunTurnLoop(ctx, in, c.loopDeps)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_turn_loop: %w", err)
	}

	if err := graph.AddLambdaNode("persist_memory",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PersistMemory(ctx, in, c.sessions)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node persist_memory: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_or_create_memory"},
		{"load_or_create_memory", "summarize_history"},
		{"summarize_history", "run_turn_loop"},
		{"run_turn_loop", "persist_memory"},
		{"persist_memory", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("coach.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile coach graph: %w", err)
	}
	return runner, nil
}
