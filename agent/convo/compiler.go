// Package convo compiles the bounded message sequence fed to the reasoning
// backend: system instruction, player and game context, recent history,
// then the new inbound message.
package convo

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	phonex "github.com/vollybot/vollybot/pkg/phone"
	storex "github.com/vollybot/vollybot/store"
)

// Config bounds the context window. The history limit is an explicit
// policy, env-overridable, not a hardcoded constant.
type Config struct {
	HistoryLimit int `envconfig:"HISTORY_LIMIT" split_words:"true" default:"20"`
}

type Compiler struct {
	systemPrompt string
	historyLimit int
}

func NewCompiler(systemPrompt string, historyLimit int) *Compiler {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &Compiler{
		systemPrompt: strings.TrimSpace(systemPrompt),
		historyLimit: historyLimit,
	}
}

// HistoryLimit is the most recent-turn count Compile will keep.
func (c *Compiler) HistoryLimit() int {
	return c.historyLimit
}

// Compile builds the ordered message sequence. Deterministic for identical
// inputs. game may be nil when nothing is scheduled; history must already
// be in chronological order.
func (c *Compiler) Compile(player *storex.Player, game *storex.Game, history []storex.ConversationTurn, inbound string) []*schema.Message {
	if len(history) > c.historyLimit {
		history = history[len(history)-c.historyLimit:]
	}

	messages := make([]*schema.Message, 0, len(history)+3)
	messages = append(messages, schema.SystemMessage(c.systemPrompt))
	messages = append(messages, schema.SystemMessage(contextNote(player, game)))

	for _, turn := range history {
		switch turn.Role {
		case storex.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(turn.Content))
		}
	}

	return append(messages, schema.UserMessage(inbound))
}

func contextNote(player *storex.Player, game *storex.Game) string {
	var b strings.Builder
	b.WriteString("[CONTEXT]\n")
	if player != nil {
		fmt.Fprintf(&b, "Player: %s, phone %s, language %s.\n",
			player.Name, player.PhoneNumber, player.Language)
	}
	b.WriteString(GameSummary(game))
	return b.String()
}

// GameSummary renders the active game for the model, or the no-game line.
func GameSummary(game *storex.Game) string {
	if game == nil {
		return "No game scheduled right now."
	}
	return fmt.Sprintf("Next game: %s on %s, status %s, up to %d players.",
		game.Location,
		game.StartTime.Format("Monday, 2 Jan 2006 at 15:04"),
		game.Status,
		game.MaxPlayers,
	)
}

// DisplayName prefers the stored name, falling back to the display-form
// phone number for just-created players.
func DisplayName(player *storex.Player) string {
	if player == nil {
		return ""
	}
	if name := strings.TrimSpace(player.Name); name != "" {
		return name
	}
	return phonex.FormatDisplay(player.PhoneNumber)
}
