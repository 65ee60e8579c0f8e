package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	phonex "github.com/vollybot/vollybot/pkg/phone"
)

type Config struct {
	Host     string `split_words:"true" required:"true"`
	Port     int    `split_words:"true" default:"5432"`
	User     string `split_words:"true" required:"true"`
	Password string `split_words:"true" required:"true"`
	Name     string `split_words:"true" required:"true"`
	Insecure bool   `split_words:"true" default:"true"`

	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"8"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
}

// Open builds a bun DB over the Postgres wire driver.
func Open(cfg Config) *bun.DB {
	connector := pgdriver.NewConnector(
		pgdriver.WithNetwork("tcp"),
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.Name),
		pgdriver.WithInsecure(cfg.Insecure),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	)

	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	return bun.NewDB(sqldb, pgdialect.New())
}

// PostgresGateway implements Gateway on Postgres via bun.
type PostgresGateway struct {
	db *bun.DB

	now func() time.Time
}

var _ Gateway = (*PostgresGateway)(nil)

func NewPostgresGateway(db *bun.DB) *PostgresGateway {
	return &PostgresGateway{db: db, now: time.Now}
}

func (g *PostgresGateway) GetOrCreatePlayer(ctx context.Context, phone string) (*Player, error) {
	normalized, err := phonex.Normalize(phone)
	if err != nil {
		return nil, err
	}

	player, err := g.playerByNormalizedPhone(ctx, normalized)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, ErrPlayerNotFound) {
		return nil, err
	}

	fresh := &Player{
		ID:          uuid.New(),
		Name:        phonex.FormatDisplay(normalized),
		PhoneNumber: normalized,
		SkillLevel:  "Intermediate",
		Active:      false,
		Language:    "English",
		Country:     "Israel",
		CreatedAt:   g.now().UTC(),
	}
	// A concurrent first contact may have inserted the same phone; the
	// unique constraint makes the insert a no-op and the re-select wins.
	if _, err := g.db.NewInsert().
		Model(fresh).
		On("CONFLICT (phone_number) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: insert player: %v", ErrPersistence, err)
	}

	return g.playerByNormalizedPhone(ctx, normalized)
}

func (g *PostgresGateway) PlayerByPhone(ctx context.Context, phone string) (*Player, error) {
	normalized, err := phonex.Normalize(phone)
	if err != nil {
		return nil, err
	}
	return g.playerByNormalizedPhone(ctx, normalized)
}

func (g *PostgresGateway) playerByNormalizedPhone(ctx context.Context, normalized string) (*Player, error) {
	player := new(Player)
	err := g.db.NewSelect().
		Model(player).
		Where("phone_number = ?", normalized).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: phone=%s", ErrPlayerNotFound, normalized)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select player: %v", ErrPersistence, err)
	}
	return player, nil
}

func (g *PostgresGateway) GetActiveGame(ctx context.Context) (*Game, error) {
	game := new(Game)
	err := g.db.NewSelect().
		Model(game).
		Where("start_time > ?", g.now().UTC()).
		Where("status != ?", GameCancelled).
		Order("start_time ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoUpcomingGame
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select active game: %v", ErrPersistence, err)
	}
	return game, nil
}

func (g *PostgresGateway) GameOn(ctx context.Context, date time.Time) (*Game, error) {
	game := new(Game)
	err := g.db.NewSelect().
		Model(game).
		Where("start_time::date = ?::date", date).
		Order("start_time ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: date=%s", ErrGameNotFound, date.Format("2006-01-02"))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select game by date: %v", ErrPersistence, err)
	}
	return game, nil
}

func (g *PostgresGateway) CreateGame(ctx context.Context, startTime time.Time, location string, maxPlayers int) (*Game, error) {
	if location == "" {
		location = "Beach Court 1"
	}
	if maxPlayers <= 0 {
		maxPlayers = 4
	}

	game := &Game{
		ID:         uuid.New(),
		StartTime:  startTime.UTC(),
		Location:   location,
		Status:     GameRecruiting,
		MaxPlayers: maxPlayers,
		CreatedAt:  g.now().UTC(),
	}
	if _, err := g.db.NewInsert().Model(game).Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: insert game: %v", ErrPersistence, err)
	}
	return game, nil
}

func (g *PostgresGateway) RecordResponse(ctx context.Context, playerID, gameID uuid.UUID, status, originalMessage string) (*GameResponse, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrPersistence, status)
	}

	resp := &GameResponse{
		ID:              uuid.New(),
		GameID:          gameID,
		PlayerID:        playerID,
		Status:          status,
		OriginalMessage: originalMessage,
		UpdatedAt:       g.now().UTC(),
	}
	if _, err := g.db.NewInsert().
		Model(resp).
		On("CONFLICT (game_id, player_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("original_message = EXCLUDED.original_message").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: upsert response: %v", ErrPersistence, err)
	}
	return resp, nil
}

func (g *PostgresGateway) PlayerResponse(ctx context.Context, playerID, gameID uuid.UUID) (*GameResponse, error) {
	resp := new(GameResponse)
	err := g.db.NewSelect().
		Model(resp).
		Where("player_id = ?", playerID).
		Where("game_id = ?", gameID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoResponse
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select response: %v", ErrPersistence, err)
	}
	return resp, nil
}

func (g *PostgresGateway) GameRoster(ctx context.Context, gameID uuid.UUID) ([]RosterEntry, error) {
	var roster []RosterEntry
	err := g.db.NewSelect().
		Model((*GameResponse)(nil)).
		ColumnExpr("p.name AS name").
		ColumnExpr("gr.status AS status").
		Join("JOIN players AS p ON p.id = gr.player_id").
		Where("gr.game_id = ?", gameID).
		Order("p.name ASC").
		Scan(ctx, &roster)
	if err != nil {
		return nil, fmt.Errorf("%w: select roster: %v", ErrPersistence, err)
	}
	return roster, nil
}

func (g *PostgresGateway) CountConfirmed(ctx context.Context, gameID uuid.UUID) (int, error) {
	count, err := g.db.NewSelect().
		Model((*GameResponse)(nil)).
		Where("game_id = ?", gameID).
		Where("status = ?", StatusConfirmed).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count confirmed: %v", ErrPersistence, err)
	}
	return count, nil
}

func (g *PostgresGateway) AppendConversationTurn(ctx context.Context, playerID uuid.UUID, role, content string) error {
	turn := &ConversationTurn{
		ID:        uuid.New(),
		PlayerID:  playerID,
		Role:      role,
		Content:   content,
		CreatedAt: g.now().UTC(),
	}
	if _, err := g.db.NewInsert().Model(turn).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert turn: %v", ErrPersistence, err)
	}
	return nil
}

func (g *PostgresGateway) RecentHistory(ctx context.Context, playerID uuid.UUID, limit int) ([]ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}

	var turns []ConversationTurn
	err := g.db.NewSelect().
		Model(&turns).
		Where("player_id = ?", playerID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: select history: %v", ErrPersistence, err)
	}

	// Newest-first from the query; callers want chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (g *PostgresGateway) ListActivePlayers(ctx context.Context) ([]Player, error) {
	var players []Player
	err := g.db.NewSelect().
		Model(&players).
		Where("active = TRUE").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: select active players: %v", ErrPersistence, err)
	}
	return players, nil
}
