package pipelinenode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/vollybot/vollybot/agent/contract"
	storex "github.com/vollybot/vollybot/store"
)

// LoadContext fetches the nearest upcoming game (absence is not an error)
// and the player's recent history in chronological order.
func LoadContext(ctx context.Context, in *GraphState, gateway storex.Gateway, historyLimit int) (*GraphState, error) {
	if in == nil || in.Player == nil {
		return nil, fmt.Errorf("%w: player not loaded", contractx.ErrValidation)
	}

	game, err := gateway.GetActiveGame(ctx)
	switch {
	case errors.Is(err, storex.ErrNoUpcomingGame):
		in.Game = nil
	case err != nil:
		return nil, err
	default:
		in.Game = game
	}

	history, err := gateway.RecentHistory(ctx, in.Player.ID, historyLimit)
	if err != nil {
		return nil, err
	}
	in.History = history
	return in, nil
}
