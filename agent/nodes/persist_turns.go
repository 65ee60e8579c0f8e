package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/vollybot/vollybot/agent/contract"
	storex "github.com/vollybot/vollybot/store"
)

// PersistTurns appends the inbound message and the reply to the player's
// history. The inbound turn goes first so per-player ordering stays
// monotonic. Once written, these turns are authoritative regardless of
// whether delivery later succeeds.
func PersistTurns(ctx context.Context, in *GraphState, gateway storex.Gateway) (*GraphState, error) {
	if in == nil || in.Player == nil {
		return nil, fmt.Errorf("%w: player not loaded", contractx.ErrValidation)
	}

	if err := gateway.AppendConversationTurn(ctx, in.Player.ID, storex.RoleUser, in.Text); err != nil {
		return nil, err
	}
	if in.Reply != "" {
		if err := gateway.AppendConversationTurn(ctx, in.Player.ID, storex.RoleAssistant, in.Reply); err != nil {
			return nil, err
		}
	}
	return in, nil
}
