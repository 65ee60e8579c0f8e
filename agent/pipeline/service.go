// Package pipeline orchestrates one inbound message end to end: validate,
// load player and game state, compile context, run the agent, persist both
// turns, and hand back the reply.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"

	convox "github.com/vollybot/vollybot/agent/convo"
	invokerx "github.com/vollybot/vollybot/agent/invoker"
	nodex "github.com/vollybot/vollybot/agent/nodes"
	phonex "github.com/vollybot/vollybot/pkg/phone"
	storex "github.com/vollybot/vollybot/store"
)

type Service struct {
	gateway  storex.Gateway
	compiler *convox.Compiler
	invoker  *invokerx.Invoker
	locks    *storex.KeyedLocks

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(gateway storex.Gateway, compiler *convox.Compiler, inv *invokerx.Invoker) (*Service, error) {
	if gateway == nil {
		return nil, errors.New("persistence gateway is required")
	}
	if compiler == nil {
		return nil, errors.New("context compiler is required")
	}
	if inv == nil {
		return nil, errors.New("agent invoker is required")
	}

	s := &Service{
		gateway:  gateway,
		compiler: compiler,
		invoker:  inv,
		locks:    storex.NewKeyedLocks(),
		now:      time.Now,
	}

	graphRunner, err := s.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// HandleMessage processes one inbound text as a single unit of work.
// Messages from the same player are serialized on a keyed lock so
// duplicate webhook deliveries cannot interleave history writes.
func (s *Service) HandleMessage(ctx context.Context, phone, profileName, text string) (string, error) {
	normalized, err := phonex.Normalize(phone)
	if err != nil {
		return "", err
	}

	unlock := s.locks.Lock(normalized)
	defer unlock()

	out, err := s.graphRunner.Invoke(ctx, nodex.GraphInput{
		Phone:       normalized,
		ProfileName: profileName,
		Text:        text,
	})
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}
