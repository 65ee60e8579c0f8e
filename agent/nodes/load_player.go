package pipelinenode

import (
	"context"
	"fmt"

	contractx "github.com/vollybot/vollybot/agent/contract"
	storex "github.com/vollybot/vollybot/store"
)

// LoadPlayer resolves the sender to a player record, creating one on first
// contact. A provider profile name fills the placeholder name for
// just-created players.
func LoadPlayer(ctx context.Context, in *GraphState, gateway storex.Gateway) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	player, err := gateway.GetOrCreatePlayer(ctx, in.Phone)
	if err != nil {
		return nil, err
	}
	if player.Name == "" && in.ProfileName != "" {
		player.Name = in.ProfileName
	}
	in.Player = player
	return in, nil
}
