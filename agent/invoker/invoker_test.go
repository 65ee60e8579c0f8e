package invoker

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/vollybot/vollybot/agent/contract"
)

type stubBackend struct {
	replies []*schema.Message
	calls   int
	err     error
}

func (s *stubBackend) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	return s.replies[idx], nil
}

func toolCallMessage(name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{
		{
			ID:       "call-1",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		},
	})
}

func recordingExecutor(calls *[]string) contractx.Executor {
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		*calls = append(*calls, tool)
		return contractx.ToolResult{Tool: tool, Result: "ok"}, nil
	}
}

func TestRunFinalAnswerWithoutTools(t *testing.T) {
	t.Parallel()

	var calls []string
	backend := &stubBackend{replies: []*schema.Message{schema.AssistantMessage("see you Saturday", nil)}}
	inv, err := New(backend, recordingExecutor(&calls), 5, "fallback")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := inv.Run(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != StateComplete {
		t.Fatalf("state = %s, want complete", result.State)
	}
	if result.Reply != "see you Saturday" {
		t.Fatalf("reply = %q", result.Reply)
	}
	if len(calls) != 0 {
		t.Fatalf("unexpected tool calls: %v", calls)
	}
}

func TestRunDispatchesToolThenAnswers(t *testing.T) {
	t.Parallel()

	var calls []string
	backend := &stubBackend{replies: []*schema.Message{
		toolCallMessage("get_game_details", `{"date_query":"next"}`),
		schema.AssistantMessage("game is Saturday evening", nil),
	}}
	inv, err := New(backend, recordingExecutor(&calls), 5, "fallback")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := inv.Run(context.Background(), []*schema.Message{schema.UserMessage("when do we play?")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reply != "game is Saturday evening" {
		t.Fatalf("reply = %q", result.Reply)
	}
	if result.ToolCalls != 1 || len(calls) != 1 || calls[0] != "get_game_details" {
		t.Fatalf("tool dispatch mismatch: count=%d calls=%v", result.ToolCalls, calls)
	}
}

func TestRunTerminatesAtToolLoopBound(t *testing.T) {
	t.Parallel()

	var calls []string
	// The stub keeps requesting a tool forever; the invoker must stop.
	backend := &stubBackend{replies: []*schema.Message{
		toolCallMessage("get_game_details", `{}`),
	}}
	inv, err := New(backend, recordingExecutor(&calls), 3, "let me get back to you")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := inv.Run(context.Background(), []*schema.Message{schema.UserMessage("loop")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != StateFailed {
		t.Fatalf("state = %s, want failed", result.State)
	}
	if result.Reply != "let me get back to you" {
		t.Fatalf("expected fallback reply, got %q", result.Reply)
	}
	if !errors.Is(result.Failure, contractx.ErrToolLoopExceeded) {
		t.Fatalf("failure = %v, want ErrToolLoopExceeded", result.Failure)
	}
	if len(calls) != 3 {
		t.Fatalf("executed %d tool calls, want exactly the bound of 3", len(calls))
	}
}

func TestRunModelFailure(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{err: errors.New("upstream 503")}
	var calls []string
	inv, err := New(backend, recordingExecutor(&calls), 5, "fallback")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := inv.Run(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("err = %v, want ErrModelInvoke", err)
	}
	if result.State != StateFailed {
		t.Fatalf("state = %s, want failed", result.State)
	}
}

func TestRunMalformedToolArguments(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{replies: []*schema.Message{
		toolCallMessage("log_response", `{"phone":`),
		schema.AssistantMessage("sorry, try again?", nil),
	}}
	executorCalled := false
	executor := func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		executorCalled = true
		return contractx.ToolResult{Tool: tool}, nil
	}

	inv, err := New(backend, executor, 5, "fallback")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := inv.Run(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if executorCalled {
		t.Fatal("executor must not run with malformed arguments")
	}
	if result.Reply != "sorry, try again?" {
		t.Fatalf("reply = %q", result.Reply)
	}
}
