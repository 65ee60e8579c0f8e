package pipelinenode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/vollybot/vollybot/agent/contract"
	invokerx "github.com/vollybot/vollybot/agent/invoker"
)

// InvokeAgent runs the tool loop. A tool-loop breach already produced the
// scripted fallback reply inside the invoker; only model failures propagate
// as errors.
func InvokeAgent(ctx context.Context, in *GraphState, inv *invokerx.Invoker) (*GraphState, error) {
	if in == nil || len(in.Messages) == 0 {
		return nil, fmt.Errorf("%w: context not compiled", contractx.ErrValidation)
	}

	result, err := inv.Run(ctx, in.Messages)
	if err != nil {
		return nil, err
	}
	if result.Failure != nil {
		log.Warn().Err(result.Failure).Str("phone", in.Phone).
			Int("tool_calls", result.ToolCalls).
			Msg("agent degraded to fallback reply")
	}

	in.Reply = result.Reply
	return in, nil
}
