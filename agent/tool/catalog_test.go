package tool

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	phonex "github.com/vollybot/vollybot/pkg/phone"
	storex "github.com/vollybot/vollybot/store"
)

type responseKey struct {
	player uuid.UUID
	game   uuid.UUID
}

type fakeGateway struct {
	players   map[string]*storex.Player
	game      *storex.Game
	responses map[responseKey]*storex.GameResponse
	failing   bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		players:   make(map[string]*storex.Player),
		responses: make(map[responseKey]*storex.GameResponse),
	}
}

func (f *fakeGateway) addPlayer(name, phone string) *storex.Player {
	p := &storex.Player{ID: uuid.New(), Name: name, PhoneNumber: phone, Active: true, Language: "English"}
	f.players[phone] = p
	return p
}

func (f *fakeGateway) GetOrCreatePlayer(ctx context.Context, phone string) (*storex.Player, error) {
	if f.failing {
		return nil, fmt.Errorf("%w: down", storex.ErrPersistence)
	}
	normalized, err := phonex.Normalize(phone)
	if err != nil {
		return nil, err
	}
	if p, ok := f.players[normalized]; ok {
		return p, nil
	}
	p := &storex.Player{ID: uuid.New(), PhoneNumber: normalized}
	f.players[normalized] = p
	return p, nil
}

func (f *fakeGateway) PlayerByPhone(ctx context.Context, phone string) (*storex.Player, error) {
	if f.failing {
		return nil, fmt.Errorf("%w: down", storex.ErrPersistence)
	}
	normalized, err := phonex.Normalize(phone)
	if err != nil {
		return nil, err
	}
	if p, ok := f.players[normalized]; ok {
		return p, nil
	}
	return nil, storex.ErrPlayerNotFound
}

func (f *fakeGateway) GetActiveGame(ctx context.Context) (*storex.Game, error) {
	if f.failing {
		return nil, fmt.Errorf("%w: down", storex.ErrPersistence)
	}
	if f.game == nil {
		return nil, storex.ErrNoUpcomingGame
	}
	return f.game, nil
}

func (f *fakeGateway) GameOn(ctx context.Context, date time.Time) (*storex.Game, error) {
	if f.game != nil && f.game.StartTime.Format("2006-01-02") == date.Format("2006-01-02") {
		return f.game, nil
	}
	return nil, storex.ErrGameNotFound
}

func (f *fakeGateway) CreateGame(ctx context.Context, startTime time.Time, location string, maxPlayers int) (*storex.Game, error) {
	f.game = &storex.Game{ID: uuid.New(), StartTime: startTime, Location: location, MaxPlayers: maxPlayers, Status: storex.GameRecruiting}
	return f.game, nil
}

func (f *fakeGateway) RecordResponse(ctx context.Context, playerID, gameID uuid.UUID, status, originalMessage string) (*storex.GameResponse, error) {
	key := responseKey{player: playerID, game: gameID}
	resp := &storex.GameResponse{ID: uuid.New(), PlayerID: playerID, GameID: gameID, Status: status}
	f.responses[key] = resp
	return resp, nil
}

func (f *fakeGateway) PlayerResponse(ctx context.Context, playerID, gameID uuid.UUID) (*storex.GameResponse, error) {
	if resp, ok := f.responses[responseKey{player: playerID, game: gameID}]; ok {
		return resp, nil
	}
	return nil, storex.ErrNoResponse
}

func (f *fakeGateway) GameRoster(ctx context.Context, gameID uuid.UUID) ([]storex.RosterEntry, error) {
	var roster []storex.RosterEntry
	for _, p := range f.players {
		if resp, ok := f.responses[responseKey{player: p.ID, game: gameID}]; ok {
			roster = append(roster, storex.RosterEntry{Name: p.Name, Status: resp.Status})
		}
	}
	return roster, nil
}

func (f *fakeGateway) CountConfirmed(ctx context.Context, gameID uuid.UUID) (int, error) {
	count := 0
	for _, resp := range f.responses {
		if resp.GameID == gameID && resp.Status == storex.StatusConfirmed {
			count++
		}
	}
	return count, nil
}

func (f *fakeGateway) AppendConversationTurn(ctx context.Context, playerID uuid.UUID, role, content string) error {
	return nil
}

func (f *fakeGateway) RecentHistory(ctx context.Context, playerID uuid.UUID, limit int) ([]storex.ConversationTurn, error) {
	return nil, nil
}

func (f *fakeGateway) ListActivePlayers(ctx context.Context) ([]storex.Player, error) {
	return nil, nil
}

func upcomingGame(f *fakeGateway) *storex.Game {
	f.game = &storex.Game{
		ID:         uuid.New(),
		StartTime:  time.Date(2026, 9, 5, 18, 0, 0, 0, time.UTC),
		Location:   "Beach Court 1",
		Status:     storex.GameRecruiting,
		MaxPlayers: 4,
	}
	return f.game
}

func TestBuildDeclaresThreeTools(t *testing.T) {
	t.Parallel()

	infos, executor := Build(newFakeGateway())
	if len(infos) != 3 {
		t.Fatalf("expected 3 tool infos, got %d", len(infos))
	}
	want := []string{ToolGetGameDetails, ToolCheckAvailability, ToolLogResponse}
	for i, name := range want {
		if infos[i].Name != name {
			t.Fatalf("tool %d = %s, want %s", i, infos[i].Name, name)
		}
	}
	if executor == nil {
		t.Fatal("executor must not be nil")
	}
}

func TestGameDetailsIncludesConfirmedCount(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	game := upcomingGame(gw)
	p := gw.addPlayer("Dana", "972501234567")
	gw.responses[responseKey{player: p.ID, game: game.ID}] = &storex.GameResponse{
		PlayerID: p.ID, GameID: game.ID, Status: storex.StatusConfirmed,
	}

	executor := NewExecutor(gw)
	out, err := executor(context.Background(), ToolGetGameDetails, map[string]any{"date_query": "next"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Error != "" {
		t.Fatalf("unexpected tool error: %s", out.Error)
	}
	if !strings.Contains(out.Result, "Beach Court 1") {
		t.Fatalf("result missing location: %s", out.Result)
	}
	if !strings.Contains(out.Result, "1/4 confirmed") {
		t.Fatalf("result missing confirmed count: %s", out.Result)
	}
}

func TestGameDetailsNoUpcomingGame(t *testing.T) {
	t.Parallel()

	executor := NewExecutor(newFakeGateway())
	out, err := executor(context.Background(), ToolGetGameDetails, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Error == "" {
		t.Fatal("expected structured no-game error")
	}
}

func TestLogResponseUpserts(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	game := upcomingGame(gw)
	p := gw.addPlayer("Dana", "972501234567")
	executor := NewExecutor(gw)

	for _, status := range []string{storex.StatusConfirmed, storex.StatusDeclined} {
		out, err := executor(context.Background(), ToolLogResponse, map[string]any{
			"phone":  "050-123-4567",
			"status": status,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Error != "" {
			t.Fatalf("unexpected tool error: %s", out.Error)
		}
	}

	if len(gw.responses) != 1 {
		t.Fatalf("expected a single upserted response, got %d", len(gw.responses))
	}
	resp := gw.responses[responseKey{player: p.ID, game: game.ID}]
	if resp == nil || resp.Status != storex.StatusDeclined {
		t.Fatalf("latest decision not queryable: %+v", resp)
	}
}

func TestLogResponseRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	upcomingGame(gw)
	gw.addPlayer("Dana", "972501234567")

	executor := NewExecutor(gw)
	out, err := executor(context.Background(), ToolLogResponse, map[string]any{
		"phone":  "972501234567",
		"status": "definitely",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.Error, "invalid status") {
		t.Fatalf("expected invalid status error, got %q", out.Error)
	}
}

func TestLogResponseUnknownPlayerIsStructured(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	upcomingGame(gw)

	executor := NewExecutor(gw)
	out, err := executor(context.Background(), ToolLogResponse, map[string]any{
		"phone":  "972509990000",
		"status": storex.StatusConfirmed,
	})
	if err != nil {
		t.Fatalf("missing reference must not be a Go error: %v", err)
	}
	if out.Error != "player not found" {
		t.Fatalf("expected structured not-found, got %q", out.Error)
	}
}

func TestCheckAvailabilityReportsDecision(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	game := upcomingGame(gw)
	p := gw.addPlayer("Dana", "972501234567")
	gw.responses[responseKey{player: p.ID, game: game.ID}] = &storex.GameResponse{
		PlayerID: p.ID, GameID: game.ID, Status: storex.StatusMaybe,
	}

	executor := NewExecutor(gw)
	out, err := executor(context.Background(), ToolCheckAvailability, map[string]any{"phone": "972501234567"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.Result, "Dana is currently maybe") {
		t.Fatalf("decision missing from result: %s", out.Result)
	}
}

func TestCheckAvailabilityNoneRecorded(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	upcomingGame(gw)
	gw.addPlayer("Dana", "972501234567")

	executor := NewExecutor(gw)
	out, err := executor(context.Background(), ToolCheckAvailability, map[string]any{"phone": "972501234567"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.Result, "no response recorded") {
		t.Fatalf("expected none-recorded wording, got %s", out.Result)
	}
}

func TestUnknownToolName(t *testing.T) {
	t.Parallel()

	executor := NewExecutor(newFakeGateway())
	out, err := executor(context.Background(), "fetch_weather", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Error == "" {
		t.Fatal("expected unknown-tool error")
	}
}
