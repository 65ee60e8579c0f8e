package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RSVP decisions a player can record for a game.
const (
	StatusConfirmed = "confirmed"
	StatusDeclined  = "declined"
	StatusMaybe     = "maybe"
	StatusPending   = "pending"
)

// Conversation turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Game lifecycle states.
const (
	GameRecruiting = "recruiting"
	GamePlayed     = "played"
	GameCancelled  = "cancelled"
)

// ValidStatus reports whether s is a recognized RSVP decision.
func ValidStatus(s string) bool {
	switch s {
	case StatusConfirmed, StatusDeclined, StatusMaybe, StatusPending:
		return true
	}
	return false
}

// Player is one person the assistant talks to. The normalized phone number
// is the sole external identity key. Players are never hard-deleted; the
// Active flag gates invite broadcasts.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	Name        string    `bun:"name,notnull"`
	PhoneNumber string    `bun:"phone_number,notnull,unique"`
	SkillLevel  string    `bun:"skill_level,default:'Intermediate'"`
	Active      bool      `bun:"active"`
	Language    string    `bun:"language,default:'English'"`
	Country     string    `bun:"country,default:'Israel'"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:now()"`
}

// Game is one scheduled event. Immutable once past.
type Game struct {
	bun.BaseModel `bun:"table:games,alias:g"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	StartTime  time.Time `bun:"start_time,notnull"`
	Location   string    `bun:"location,default:'Beach Court 1'"`
	Status     string    `bun:"status,default:'recruiting'"`
	MaxPlayers int       `bun:"max_players,default:4"`
	CreatedAt  time.Time `bun:"created_at,nullzero,default:now()"`
}

// GameResponse is one player's RSVP for one game, unique per (game, player)
// and overwritten in place when the decision changes.
type GameResponse struct {
	bun.BaseModel `bun:"table:game_responses,alias:gr"`

	ID              uuid.UUID `bun:"id,pk,type:uuid"`
	GameID          uuid.UUID `bun:"game_id,type:uuid,notnull"`
	PlayerID        uuid.UUID `bun:"player_id,type:uuid,notnull"`
	Status          string    `bun:"status,default:'pending'"`
	OriginalMessage string    `bun:"original_message,nullzero"`
	AIConfidence    float64   `bun:"ai_confidence,nullzero"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,default:now()"`
}

// ConversationTurn is one exchange unit in a player's history. Append-only,
// never edited or reordered after write.
type ConversationTurn struct {
	bun.BaseModel `bun:"table:conversation_turns,alias:ct"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	PlayerID  uuid.UUID `bun:"player_id,type:uuid,notnull"`
	Role      string    `bun:"role,notnull"`
	Content   string    `bun:"content,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:now()"`
}

// RosterEntry is one player's name with their current decision for a game.
type RosterEntry struct {
	Name   string `bun:"name"`
	Status string `bun:"status"`
}
