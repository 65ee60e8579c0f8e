// Package tool declares the operations the reasoning backend may call
// mid-conversation, each a thin adapter over the persistence gateway.
package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/vollybot/vollybot/agent/contract"
	phonex "github.com/vollybot/vollybot/pkg/phone"
	storex "github.com/vollybot/vollybot/store"
)

const (
	ToolGetGameDetails    = "get_game_details"
	ToolCheckAvailability = "check_availability"
	ToolLogResponse       = "log_response"
)

// Build returns the tool declarations and the executor dispatching them
// against the gateway.
func Build(gateway storex.Gateway) ([]*schema.ToolInfo, contractx.Executor) {
	return Infos(), NewExecutor(gateway)
}

func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolGetGameDetails,
			Desc: "Get details about a volleyball game: time, location, and how many players confirmed.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"date_query": {Type: schema.String, Desc: "Date to check (YYYY-MM-DD), or 'next' for the upcoming game", Required: false},
			}),
		},
		{
			Name: ToolCheckAvailability,
			Desc: "Check the player's recorded response for a game plus who else is coming.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone":      {Type: schema.String, Desc: "The player's phone number from the context message", Required: true},
				"date_query": {Type: schema.String, Desc: "Date to check (YYYY-MM-DD), or 'next' for the upcoming game", Required: false},
			}),
		},
		{
			Name: ToolLogResponse,
			Desc: "Record the player's response for the next upcoming game.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone":  {Type: schema.String, Desc: "The player's phone number from the context message", Required: true},
				"status": {Type: schema.String, Desc: "One of: confirmed, declined, maybe, pending", Required: true},
			}),
		},
	}
}

// NewExecutor dispatches tool calls against the gateway. Missing references
// come back as structured not-found results the model can talk its way out
// of, never as Go errors.
func NewExecutor(gateway storex.Gateway) contractx.Executor {
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		switch tool {
		case ToolGetGameDetails:
			return gameDetails(ctx, gateway, args), nil
		case ToolCheckAvailability:
			return checkAvailability(ctx, gateway, args), nil
		case ToolLogResponse:
			return logResponse(ctx, gateway, args), nil
		default:
			return contractx.ToolResult{
				Tool:  tool,
				Error: fmt.Sprintf("unknown tool %q", tool),
			}, nil
		}
	}
}

func gameDetails(ctx context.Context, gateway storex.Gateway, args map[string]any) contractx.ToolResult {
	game, res := resolveGame(ctx, gateway, ToolGetGameDetails, stringArg(args, "date_query"))
	if game == nil {
		return res
	}

	confirmed, err := gateway.CountConfirmed(ctx, game.ID)
	if err != nil {
		return storeTrouble(ToolGetGameDetails)
	}

	return contractx.ToolResult{
		Tool: ToolGetGameDetails,
		Result: fmt.Sprintf("Game is at %s on %s. Currently %d/%d confirmed.",
			game.Location,
			game.StartTime.Format("Monday, 2 Jan 2006 at 15:04"),
			confirmed,
			game.MaxPlayers,
		),
	}
}

func checkAvailability(ctx context.Context, gateway storex.Gateway, args map[string]any) contractx.ToolResult {
	phone := stringArg(args, "phone")
	player, err := gateway.PlayerByPhone(ctx, phone)
	if err != nil {
		return playerLookupFailure(ToolCheckAvailability, err)
	}

	game, res := resolveGame(ctx, gateway, ToolCheckAvailability, stringArg(args, "date_query"))
	if game == nil {
		return res
	}

	var own string
	resp, err := gateway.PlayerResponse(ctx, player.ID, game.ID)
	switch {
	case errors.Is(err, storex.ErrNoResponse):
		own = fmt.Sprintf("%s has no response recorded yet.", player.Name)
	case err != nil:
		return storeTrouble(ToolCheckAvailability)
	default:
		own = fmt.Sprintf("%s is currently %s.", player.Name, resp.Status)
	}

	roster, err := gateway.GameRoster(ctx, game.ID)
	if err != nil {
		return storeTrouble(ToolCheckAvailability)
	}

	return contractx.ToolResult{
		Tool:   ToolCheckAvailability,
		Result: own + " " + rosterSummary(roster, game.MaxPlayers),
	}
}

func logResponse(ctx context.Context, gateway storex.Gateway, args map[string]any) contractx.ToolResult {
	status := strings.ToLower(strings.TrimSpace(stringArg(args, "status")))
	if !storex.ValidStatus(status) {
		return contractx.ToolResult{
			Tool:  ToolLogResponse,
			Error: "invalid status, must be one of: confirmed, declined, maybe, pending",
		}
	}

	player, err := gateway.PlayerByPhone(ctx, stringArg(args, "phone"))
	if err != nil {
		return playerLookupFailure(ToolLogResponse, err)
	}

	game, res := resolveGame(ctx, gateway, ToolLogResponse, "next")
	if game == nil {
		return res
	}

	if _, err := gateway.RecordResponse(ctx, player.ID, game.ID, status, ""); err != nil {
		return storeTrouble(ToolLogResponse)
	}

	when := game.StartTime.Format("Monday, 2 Jan")
	confirmations := map[string]string{
		storex.StatusConfirmed: fmt.Sprintf("Got it! %s is in for %s.", player.Name, when),
		storex.StatusDeclined:  fmt.Sprintf("No worries, marked %s as can't make it.", player.Name),
		storex.StatusMaybe:     fmt.Sprintf("Cool, %s is a maybe for now.", player.Name),
		storex.StatusPending:   fmt.Sprintf("Updated %s's status to pending.", player.Name),
	}
	return contractx.ToolResult{Tool: ToolLogResponse, Result: confirmations[status]}
}

// resolveGame finds the game a tool call refers to. A nil game means the
// accompanying result should be returned to the model as-is.
func resolveGame(ctx context.Context, gateway storex.Gateway, tool, dateQuery string) (*storex.Game, contractx.ToolResult) {
	dateQuery = strings.TrimSpace(strings.ToLower(dateQuery))
	if dateQuery == "" || dateQuery == "next" {
		game, err := gateway.GetActiveGame(ctx)
		if errors.Is(err, storex.ErrNoUpcomingGame) {
			return nil, contractx.ToolResult{Tool: tool, Error: "no upcoming game scheduled"}
		}
		if err != nil {
			return nil, storeTrouble(tool)
		}
		return game, contractx.ToolResult{}
	}

	date, err := time.Parse("2006-01-02", dateQuery)
	if err != nil {
		return nil, contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("date_query %q is not YYYY-MM-DD or 'next'", dateQuery),
		}
	}

	game, err := gateway.GameOn(ctx, date)
	if errors.Is(err, storex.ErrGameNotFound) {
		return nil, contractx.ToolResult{Tool: tool, Error: fmt.Sprintf("no game on %s", dateQuery)}
	}
	if err != nil {
		return nil, storeTrouble(tool)
	}
	return game, contractx.ToolResult{}
}

func rosterSummary(roster []storex.RosterEntry, maxPlayers int) string {
	byStatus := map[string][]string{}
	for _, entry := range roster {
		byStatus[entry.Status] = append(byStatus[entry.Status], entry.Name)
	}

	var parts []string
	if names := byStatus[storex.StatusConfirmed]; len(names) > 0 {
		parts = append(parts, fmt.Sprintf("Confirmed (%d/%d): %s", len(names), maxPlayers, strings.Join(names, ", ")))
	}
	if names := byStatus[storex.StatusMaybe]; len(names) > 0 {
		parts = append(parts, "Maybe: "+strings.Join(names, ", "))
	}
	if names := byStatus[storex.StatusDeclined]; len(names) > 0 {
		parts = append(parts, "Can't make it: "+strings.Join(names, ", "))
	}
	if len(parts) == 0 {
		return "No responses yet for this game."
	}
	return strings.Join(parts, " ")
}

func playerLookupFailure(tool string, err error) contractx.ToolResult {
	switch {
	case errors.Is(err, storex.ErrPlayerNotFound), errors.Is(err, phonex.ErrInvalidFormat):
		return contractx.ToolResult{Tool: tool, Error: "player not found"}
	default:
		return storeTrouble(tool)
	}
}

func storeTrouble(tool string) contractx.ToolResult {
	return contractx.ToolResult{Tool: tool, Error: "store temporarily unavailable"}
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, _ := args[key].(string)
	return v
}
