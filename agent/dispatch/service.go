package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/forrest321/aifi/agent/contract"
)

// Service is the turn pipeline. One instance serves all conversations.
type Service struct {
	router   MessageRouter
	machine  WorkflowMachine
	sessions SessionRegistry
	models   contractx.Registry
	producer ReplyProducer

	graphRunner compose.Runnable[GraphInput, GraphOutput]

	now func() time.Time
}

func New(
	router MessageRouter,
	machine WorkflowMachine,
	sessions SessionRegistry,
	models contractx.Registry,
	producer ReplyProducer,
) (*Service, error) {
	if router == nil {
		return nil, errors.New("message router is required")
	}
	if machine == nil {
		return nil, errors.New("workflow machine is required")
	}
	if sessions == nil {
		return nil, errors.New("session registry is required")
	}
	if models == nil {
		return nil, errors.New("generator registry is required")
	}
	if producer == nil {
		return nil, errors.New("reply producer is required")
	}

	s := &Service{
		router:   router,
		machine:  machine,
		sessions: sessions,
		models:   models,
		producer: producer,
		now:      time.Now,
	}

	graphRunner, err := s.compileDispatchGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// Dispatch runs one turn for a conversation and returns the turn result.
// A generation failure is reported inside the result, not as an error; an
// error return means the pipeline itself could not complete.
func (s *Service) Dispatch(ctx context.Context, conversationID, message string, userHint contractx.Handler) (contractx.TurnResult, error) {
	return s.graphRunner.Invoke(ctx, GraphInput{
		ConversationID: conversationID,
		Message:        message,
		UserHint:       userHint,
	})
}
