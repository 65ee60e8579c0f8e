// Package prompt holds the embedded prompt templates and the canned
// user-facing replies for failure paths.
package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/invite.txt
	inviteRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	System string
	Invite string
}

// LoadPromptSet returns the trimmed prompt strings. Safe to call
// concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		System: strings.TrimSpace(systemRaw),
		Invite: strings.TrimSpace(inviteRaw),
	}
}

// Canned replies returned to the player when something breaks. Failures
// degrade to these instead of exposing internals.
const (
	ReplyNoUpcomingGame = "No games scheduled yet, I'll let you know when something's up!"
	ReplyStoreTrouble   = "Hmm, had a little technical issue. Can you try again?"
	ReplyUnknownPlayer  = "I don't have you in my list yet. What's your name?"
	ReplyFallback       = "Let me check and get back to you on that one!"
)

// RenderInvite fills the invite template for one player. Plain string
// substitution keeps the template trivially testable.
func RenderInvite(tpl, playerName, gameDate, language string) string {
	r := strings.NewReplacer(
		"{player_name}", playerName,
		"{game_date}", gameDate,
		"{language}", language,
	)
	return r.Replace(tpl)
}
