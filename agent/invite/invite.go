// Package invite generates and delivers personalized game invites to every
// active player. It drives the plain-completion side of the model API; the
// webhook tool loop lives in the invoker.
package invite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	convox "github.com/vollybot/vollybot/agent/convo"
	promptx "github.com/vollybot/vollybot/agent/prompt"
	storex "github.com/vollybot/vollybot/store"
)

// Sender delivers one outbound text. Satisfied by the whatsapp client.
type Sender interface {
	SendText(ctx context.Context, to string, body string) error
}

// Generator produces one invite text per player.
type Generator interface {
	Invite(ctx context.Context, playerName, gameDate, language string) (string, error)
}

// LLMGenerator renders the invite template and asks the model for the
// final text.
type LLMGenerator struct {
	client   *openaisdk.Client
	model    string
	template string
}

func NewLLMGenerator(client *openaisdk.Client, model, template string) (*LLMGenerator, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("model name is required")
	}
	return &LLMGenerator{client: client, model: model, template: template}, nil
}

func (g *LLMGenerator) Invite(ctx context.Context, playerName, gameDate, language string) (string, error) {
	rendered := promptx.RenderInvite(g.template, playerName, gameDate, language)

	resp, err := g.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(g.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(rendered),
		},
		MaxTokens:   openaisdk.Int(120),
		Temperature: openaisdk.Float(0.8),
	})
	if err != nil {
		return "", fmt.Errorf("generate invite: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("generate invite: empty completion")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("generate invite: blank message")
	}
	return text, nil
}

// Broadcaster schedules a game and invites every active player.
type Broadcaster struct {
	gateway   storex.Gateway
	generator Generator
	sender    Sender
}

func NewBroadcaster(gateway storex.Gateway, generator Generator, sender Sender) (*Broadcaster, error) {
	if gateway == nil {
		return nil, errors.New("persistence gateway is required")
	}
	if generator == nil {
		return nil, errors.New("invite generator is required")
	}
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	return &Broadcaster{gateway: gateway, generator: generator, sender: sender}, nil
}

// Run sends one personalized invite per active player for the given game.
// A failure for one player is logged and does not stop the rest;
// every delivered invite lands in that player's history.
func (b *Broadcaster) Run(ctx context.Context, game *storex.Game) (int, error) {
	players, err := b.gateway.ListActivePlayers(ctx)
	if err != nil {
		return 0, err
	}

	gameDate := game.StartTime.Format("Monday, 2 Jan 2006 at 15:04")
	sent := 0
	for i := range players {
		player := &players[i]

		text, err := b.generator.Invite(ctx, convox.DisplayName(player), gameDate, player.Language)
		if err != nil {
			log.Error().Err(err).Str("phone", player.PhoneNumber).Msg("invite generation failed")
			continue
		}
		if err := b.sender.SendText(ctx, player.PhoneNumber, text); err != nil {
			log.Error().Err(err).Str("phone", player.PhoneNumber).Msg("invite delivery failed")
			continue
		}
		if err := b.gateway.AppendConversationTurn(ctx, player.ID, storex.RoleAssistant, text); err != nil {
			log.Error().Err(err).Str("phone", player.PhoneNumber).Msg("invite history write failed")
		}
		sent++
	}

	log.Info().Int("sent", sent).Int("players", len(players)).
		Time("start_time", game.StartTime).Msg("invite broadcast finished")
	return sent, nil
}
