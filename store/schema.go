package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Schema DDL, one statement per entity. CREATE IF NOT EXISTS keeps the
// routine safe to run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		phone_number TEXT UNIQUE NOT NULL,
		skill_level TEXT DEFAULT 'Intermediate',
		active BOOLEAN DEFAULT FALSE,
		language TEXT DEFAULT 'English',
		country TEXT DEFAULT 'Israel',
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS games (
		id UUID PRIMARY KEY,
		start_time TIMESTAMPTZ NOT NULL,
		location TEXT DEFAULT 'Beach Court 1',
		status TEXT DEFAULT 'recruiting',
		max_players INTEGER DEFAULT 4,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS game_responses (
		id UUID PRIMARY KEY,
		game_id UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
		status TEXT DEFAULT 'pending',
		original_message TEXT,
		ai_confidence FLOAT,
		updated_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE (game_id, player_id)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_turns (
		id UUID PRIMARY KEY,
		player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS conversation_turns_player_created_idx
		ON conversation_turns (player_id, created_at)`,
}

// InitSchema creates the four entity tables and their uniqueness
// constraints.
func InitSchema(ctx context.Context, db *bun.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: init schema: %v", ErrPersistence, err)
		}
	}
	return nil
}
