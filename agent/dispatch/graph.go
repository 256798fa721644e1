package dispatch

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
)

func (s *Service) compileDispatchGraph(ctx context.Context) (compose.Runnable[GraphInput, GraphOutput], error) {
	graph := compose.NewGraph[GraphInput, GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in GraphInput) (*GraphState, error) {
			return validateRequest(in, s.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("route_message",
		compose.InvokableLambda(func(ctx context.Context, in *GraphState) (*GraphState, error) {
			return routeMessage(ctx, in, s.router)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node route_message: %w", err)
	}

	if err := graph.AddLambdaNode("apply_workflow_action",
		compose.InvokableLambda(func(ctx context.Context, in *GraphState) (*GraphState, error) {
			return applyWorkflowAction(ctx, in, s.machine)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node apply_workflow_action: %w", err)
	}

	if err := graph.AddLambdaNode("acquire_thread",
		compose.InvokableLambda(func(ctx context.Context, in *GraphState) (*GraphState, error) {
			return acquireThread(ctx, in, s.sessions, s.models)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node acquire_thread: %w", err)
	}

	if err := graph.AddLambdaNode("generate_reply",
		compose.InvokableLambda(func(ctx context.Context, in *GraphState) (*GraphState, error) {
			return generateReply(ctx, in, s.producer)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node generate_reply: %w", err)
	}

	if err := graph.AddLambdaNode("persist_turn",
		compose.InvokableLambda(func(ctx context.Context, in *GraphState) (*GraphState, error) {
			return persistTurn(ctx, in, s.sessions, s.machine)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node persist_turn: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *GraphState) (GraphOutput, error) {
			return finalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "route_message"},
		{"route_message", "apply_workflow_action"},
		{"apply_workflow_action", "acquire_thread"},
		{"acquire_thread", "generate_reply"},
		{"generate_reply", "persist_turn"},
		{"persist_turn", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("dispatch.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile dispatch graph: %w", err)
	}
	return runner, nil
}
