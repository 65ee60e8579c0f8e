package pipelinenode

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/vollybot/vollybot/agent/contract"
	phonex "github.com/vollybot/vollybot/pkg/phone"
)

// ValidateInbound checks the message shape and canonicalizes the sender
// phone before anything touches the store.
func ValidateInbound(in GraphInput, now func() time.Time) (*GraphState, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is empty", contractx.ErrValidation)
	}

	normalized, err := phonex.Normalize(in.Phone)
	if err != nil {
		return nil, err
	}

	return &GraphState{
		Phone:       normalized,
		ProfileName: strings.TrimSpace(in.ProfileName),
		Text:        text,
		Now:         now(),
	}, nil
}
