package pipelinenode

import (
	"fmt"

	contractx "github.com/vollybot/vollybot/agent/contract"
	convox "github.com/vollybot/vollybot/agent/convo"
)

// CompileContext turns the loaded state into the message sequence for the
// reasoning backend.
func CompileContext(in *GraphState, compiler *convox.Compiler) (*GraphState, error) {
	if in == nil || in.Player == nil {
		return nil, fmt.Errorf("%w: player not loaded", contractx.ErrValidation)
	}

	in.Messages = compiler.Compile(in.Player, in.Game, in.History, in.Text)
	return in, nil
}
