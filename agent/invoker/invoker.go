// Package invoker runs the agent round-trip: submit the compiled context to
// the reasoning backend, dispatch any tool calls it requests, feed results
// back, and repeat until a final answer or the tool-call bound is hit.
package invoker

import (
	"context"
	"encoding/json"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/vollybot/vollybot/agent/contract"
)

// State of one invocation. Idle -> AwaitingModel -> ToolDispatch (zero or
// more times) -> Complete, or Failed.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingModel State = "awaiting_model"
	StateToolDispatch  State = "tool_dispatch"
	StateComplete      State = "complete"
	StateFailed        State = "failed"
)

// Config bounds the tool loop. Env-overridable policy, default 5.
type Config struct {
	MaxToolCalls int `envconfig:"MAX_TOOL_CALLS" split_words:"true" default:"5"`
}

type Invoker struct {
	backend      contractx.Backend
	executor     contractx.Executor
	maxToolCalls int
	fallback     string
}

// Result is the outcome of one invocation. When the tool loop exceeded its
// bound, Reply carries the scripted fallback and Failure the sentinel; the
// end user never sees a raw error.
type Result struct {
	Reply     string
	State     State
	ToolCalls int
	Failure   error
}

func New(backend contractx.Backend, executor contractx.Executor, maxToolCalls int, fallback string) (*Invoker, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", contractx.ErrValidation)
	}
	if executor == nil {
		return nil, fmt.Errorf("%w: executor is required", contractx.ErrValidation)
	}
	if maxToolCalls <= 0 {
		maxToolCalls = 5
	}
	return &Invoker{
		backend:      backend,
		executor:     executor,
		maxToolCalls: maxToolCalls,
		fallback:     fallback,
	}, nil
}

// Run drives the tool loop to completion.
func (inv *Invoker) Run(ctx context.Context, messages []*schema.Message) (Result, error) {
	result := Result{State: StateIdle}
	running := make([]*schema.Message, len(messages))
	copy(running, messages)

	for {
		result.State = StateAwaitingModel
		reply, err := inv.backend.Generate(ctx, running)
		if err != nil {
			result.State = StateFailed
			return result, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}

		if len(reply.ToolCalls) == 0 {
			result.State = StateComplete
			result.Reply = reply.Content
			return result, nil
		}

		if result.ToolCalls+len(reply.ToolCalls) > inv.maxToolCalls {
			log.Warn().Int("tool_calls", result.ToolCalls).
				Msg("agent exceeded tool call bound, replying with fallback")
			result.State = StateFailed
			result.Reply = inv.fallback
			result.Failure = contractx.ErrToolLoopExceeded
			return result, nil
		}

		result.State = StateToolDispatch
		running = append(running, reply)
		for _, call := range reply.ToolCalls {
			result.ToolCalls++
			running = append(running, inv.dispatch(ctx, call))
		}
	}
}

func (inv *Invoker) dispatch(ctx context.Context, call schema.ToolCall) *schema.Message {
	args := map[string]any{}
	if raw := call.Function.Arguments; raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return toolMessage(contractx.ToolResult{
				Tool:  call.Function.Name,
				Error: fmt.Sprintf("malformed tool arguments: %v", err),
			}, call.ID)
		}
	}

	out, err := inv.executor(ctx, call.Function.Name, args)
	if err != nil {
		// Executor failures still go back to the model as data.
		out = contractx.ToolResult{
			Tool:  call.Function.Name,
			Error: err.Error(),
		}
	}
	return toolMessage(out, call.ID)
}

func toolMessage(result contractx.ToolResult, callID string) *schema.Message {
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"tool":%q,"error":"unencodable tool result"}`, result.Tool))
	}
	return schema.ToolMessage(string(payload), callID)
}

// modelBackend adapts an eino chat model (tools already bound) to the
// Backend contract.
type modelBackend struct {
	model einomodel.ToolCallingChatModel
}

// NewModelBackend wraps a tool-bound chat model as the production Backend.
func NewModelBackend(model einomodel.ToolCallingChatModel) contractx.Backend {
	return modelBackend{model: model}
}

func (b modelBackend) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	return b.model.Generate(ctx, messages)
}
