// Package pipelinenode holds the individual steps of the inbound-message
// graph: validate, load, compile, invoke, persist, finalize.
package pipelinenode

import (
	"time"

	"github.com/cloudwego/eino/schema"

	storex "github.com/vollybot/vollybot/store"
)

// GraphInput is one inbound text message entering the pipeline.
type GraphInput struct {
	Phone       string
	ProfileName string
	Text        string
}

// GraphOutput is the reply to deliver back to the player.
type GraphOutput struct {
	Reply  string
	Player *storex.Player
}

// GraphState is threaded through the pipeline nodes.
type GraphState struct {
	Phone       string // normalized
	ProfileName string
	Text        string
	Now         time.Time

	Player  *storex.Player
	Game    *storex.Game // nil when nothing is scheduled
	History []storex.ConversationTurn

	Messages []*schema.Message
	Reply    string
}
