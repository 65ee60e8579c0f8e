// Package store is the persistence gateway over the relational database:
// typed operations on players, games, RSVPs, and conversation history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPersistence wraps any store failure: connectivity loss or
	// constraint violation. Callers must not assume partial writes landed.
	ErrPersistence = errors.New("persistence failure")

	ErrNoUpcomingGame = errors.New("no upcoming game scheduled")
	ErrGameNotFound   = errors.New("game not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrNoResponse     = errors.New("no response recorded")
)

// Gateway is the persistence contract the rest of the system depends on.
// Each operation is atomic at the single-row level; there are no
// cross-entity transactions.
type Gateway interface {
	// GetOrCreatePlayer looks a player up by normalized phone number,
	// creating an inactive record on first contact. Equivalent phone
	// inputs always resolve to the same player.
	GetOrCreatePlayer(ctx context.Context, phone string) (*Player, error)

	// PlayerByPhone looks a player up without creating one.
	PlayerByPhone(ctx context.Context, phone string) (*Player, error)

	// GetActiveGame returns the nearest future game, or ErrNoUpcomingGame.
	GetActiveGame(ctx context.Context) (*Game, error)

	// GameOn returns the game scheduled on the given calendar date, or
	// ErrGameNotFound.
	GameOn(ctx context.Context, date time.Time) (*Game, error)

	// CreateGame schedules a new game.
	CreateGame(ctx context.Context, startTime time.Time, location string, maxPlayers int) (*Game, error)

	// RecordResponse upserts a player's RSVP for a game, overwriting any
	// prior decision.
	RecordResponse(ctx context.Context, playerID, gameID uuid.UUID, status, originalMessage string) (*GameResponse, error)

	// PlayerResponse returns the player's current RSVP for a game, or
	// ErrNoResponse.
	PlayerResponse(ctx context.Context, playerID, gameID uuid.UUID) (*GameResponse, error)

	// GameRoster lists every recorded RSVP for a game with player names.
	GameRoster(ctx context.Context, gameID uuid.UUID) ([]RosterEntry, error)

	// CountConfirmed counts confirmed RSVPs for a game.
	CountConfirmed(ctx context.Context, gameID uuid.UUID) (int, error)

	// AppendConversationTurn appends one turn to a player's history.
	AppendConversationTurn(ctx context.Context, playerID uuid.UUID, role, content string) error

	// RecentHistory returns at most limit of the player's newest turns,
	// ordered oldest first.
	RecentHistory(ctx context.Context, playerID uuid.UUID, limit int) ([]ConversationTurn, error)

	// ListActivePlayers returns every player eligible for invite broadcasts.
	ListActivePlayers(ctx context.Context) ([]Player, error)
}
