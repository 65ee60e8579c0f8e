package pipelinenode

import (
	"fmt"
	"strings"

	contractx "github.com/vollybot/vollybot/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: agent returned empty reply", contractx.ErrValidation)
	}
	return GraphOutput{Reply: reply, Player: in.Player}, nil
}
