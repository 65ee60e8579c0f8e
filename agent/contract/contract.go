// Package contract holds the types and interfaces shared between the agent
// pipeline, the tool surface, and the reasoning backend.
package contract

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"
)

var (
	ErrModelInvoke      = errors.New("model invoke failed")
	ErrToolLoopExceeded = errors.New("tool call limit exceeded")
	ErrValidation       = errors.New("validation failed")
)

// Backend is the hosted reasoning service behind the agent: messages in,
// either a final answer or tool-call requests out (carried on the returned
// message). Implementations wrap a real model; tests stub it.
type Backend interface {
	Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
}

// ToolResult is what a tool hands back to the model. Failures travel in
// Error as data the model can recover from conversationally, not as Go
// errors.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Executor dispatches one tool call requested by the model.
type Executor func(ctx context.Context, tool string, args map[string]any) (ToolResult, error)
