package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/vollybot/vollybot/agent/nodes"
)

func (s *Service) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_inbound",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateInbound(in, s.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_inbound: %w", err)
	}

	if err := graph.AddLambdaNode("load_player",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadPlayer(ctx, in, s.gateway)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_player: %w", err)
	}

	if err := graph.AddLambdaNode("load_context",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadContext(ctx, in, s.gateway, s.compiler.HistoryLimit())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_context: %w", err)
	}

	if err := graph.AddLambdaNode("compile_context",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CompileContext(in, s.compiler)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node compile_context: %w", err)
	}

	if err := graph.AddLambdaNode("invoke_agent",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.InvokeAgent(ctx, in, s.invoker)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node invoke_agent: %w", err)
	}

	if err := graph.AddLambdaNode("persist_turns",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PersistTurns(ctx, in, s.gateway)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node persist_turns: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_inbound"},
		{"validate_inbound", "load_player"},
		{"load_player", "load_context"},
		{"load_context", "compile_context"},
		{"compile_context", "invoke_agent"},
		{"invoke_agent", "persist_turns"},
		{"persist_turns", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("pipeline.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile message graph: %w", err)
	}
	return runner, nil
}
