// Package dispatch runs one conversation turn end to end: route the
// message, apply the resulting workflow action, bind a generation thread,
// produce the reply, and persist turn bookkeeping.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	contractx "github.com/forrest321/aifi/agent/contract"
	routerx "github.com/forrest321/aifi/agent/router"
	sessionx "github.com/forrest321/aifi/agent/session"
	toolx "github.com/forrest321/aifi/agent/tool"
	workflowx "github.com/forrest321/aifi/agent/workflow"
)

var (
	ErrInvalidMessage      = errors.New("message is empty")
	ErrInvalidConversation = errors.New("conversation id is empty")
)

// MessageRouter decides which handler owns a message.
type MessageRouter interface {
	Route(ctx context.Context, message, conversationID string, userHint contractx.Handler) (routerx.Decision, error)
}

// WorkflowMachine is the slice of the workflow state machine the pipeline
// drives.
type WorkflowMachine interface {
	Create(ctx context.Context, conversationID string, workflowType workflowx.Type, initialHandler contractx.Handler, p workflowx.CreateParams) (string, error)
	CompleteHandoff(ctx context.Context, conversationID string, newHandler contractx.Handler, newWorkflowType workflowx.Type) (string, error)
	Resume(ctx context.Context, conversationID string, resumeHandler contractx.Handler) error
	RecordError(ctx context.Context, conversationID, errMsg, step string, shouldRetry bool) (workflowx.ErrorOutcome, error)
}

// SessionRegistry binds conversations to generation threads.
type SessionRegistry interface {
	GetOrCreateThread(ctx context.Context, conversationID string, handler contractx.Handler) (sessionx.ThreadHandle, error)
	SetThreadID(ctx context.Context, recordID, threadID string) error
	UpdateConversationHandler(ctx context.Context, conversationID string, handler contractx.Handler, activeThreadID string) error
}

// ReplyProducer turns a routed message into the handler's reply, running
// tool categories first when required.
type ReplyProducer interface {
	ExecuteWithTools(ctx context.Context, handler contractx.Handler, threadID, message, conversationID string, reqs contractx.ToolRequirements) (toolx.Outcome, error)
}

type GraphInput struct {
	ConversationID string
	Message        string
	UserHint       contractx.Handler
}

type GraphOutput = contractx.TurnResult

type GraphState struct {
	ConversationID string
	Message        string
	UserHint       contractx.Handler
	Now            time.Time

	Decision routerx.Decision
	Thread   sessionx.ThreadHandle
	Outcome  toolx.Outcome
}

func validateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		return nil, ErrInvalidConversation
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		ConversationID: conversationID,
		Message:        message,
		UserHint:       in.UserHint,
		Now:            nowFn().UTC(),
	}, nil
}

func routeMessage(ctx context.Context, s *GraphState, router MessageRouter) (*GraphState, error) {
	decision, err := router.Route(ctx, s.Message, s.ConversationID, s.UserHint)
	if err != nil {
		return nil, err
	}
	s.Decision = decision
	return s, nil
}

// applyWorkflowAction performs the workflow side effect of the routing
// decision before any generation happens, so that a mid-turn failure never
// leaves a handoff half applied.
func applyWorkflowAction(ctx context.Context, s *GraphState, machine WorkflowMachine) (*GraphState, error) {
	switch s.Decision.Action {
	case contractx.ActionStart:
		workflowType := workflowx.TypeForHandler(s.Decision.Handler)
		if workflowType == "" {
			return s, nil
		}
		if _, err := machine.Create(ctx, s.ConversationID, workflowType, s.Decision.Handler, workflowx.CreateParams{}); err != nil {
			return nil, err
		}
	case contractx.ActionHandoff:
		newType := workflowx.TypeForHandler(s.Decision.Handler)
		if _, err := machine.CompleteHandoff(ctx, s.ConversationID, s.Decision.Handler, newType); err != nil {
			return nil, err
		}
	case contractx.ActionResume:
		if err := machine.Resume(ctx, s.ConversationID, s.Decision.Handler); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// acquireThread reuses the conversation's thread for the selected handler,
// allocating one on the generation backend the first time.
func acquireThread(ctx context.Context, s *GraphState, sessions SessionRegistry, models contractx.Registry) (*GraphState, error) {
	handle, err := sessions.GetOrCreateThread(ctx, s.ConversationID, s.Decision.Handler)
	if err != nil {
		return nil, err
	}

	if handle.ThreadID == "" {
		gen, err := models.Generator(s.Decision.Handler)
		if err != nil {
			return nil, err
		}
		threadID, err := gen.NewThread(ctx, threadTitle(s.Decision.Handler, s.Message))
		if err != nil {
			return nil, err
		}
		if err := sessions.SetThreadID(ctx, handle.RecordID, threadID); err != nil {
			return nil, err
		}
		handle.ThreadID = threadID
	}

	s.Thread = handle
	return s, nil
}

func generateReply(ctx context.Context, s *GraphState, producer ReplyProducer) (*GraphState, error) {
	outcome, err := producer.ExecuteWithTools(ctx, s.Decision.Handler, s.Thread.ThreadID, s.Message, s.ConversationID, s.Decision.ToolRequirements)
	if err != nil {
		return nil, err
	}
	s.Outcome = outcome
	return s, nil
}

// persistTurn records which handler owns the conversation now and, on a
// failed generation inside an active workflow, runs the retry budget.
func persistTurn(ctx context.Context, s *GraphState, sessions SessionRegistry, machine WorkflowMachine) (*GraphState, error) {
	if err := sessions.UpdateConversationHandler(ctx, s.ConversationID, s.Decision.Handler, s.Thread.ThreadID); err != nil {
		return nil, err
	}

	if !s.Outcome.Success && s.Decision.WorkflowSnapshot != nil {
		if _, err := machine.RecordError(ctx, s.ConversationID, s.Outcome.Err, s.Decision.WorkflowSnapshot.CurrentStep, true); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func finalizeReply(s *GraphState) (GraphOutput, error) {
	return contractx.TurnResult{
		Success:       s.Outcome.Success,
		Response:      s.Outcome.Response,
		Handler:       s.Decision.Handler,
		ThreadID:      s.Thread.ThreadID,
		IsNewThread:   s.Thread.IsNew,
		ToolsExecuted: s.Outcome.ToolsExecuted,
		ToolData:      s.Outcome.ToolData,
		ToolErrors:    s.Outcome.Errors,
		Error:         s.Outcome.Err,
	}, nil
}

func threadTitle(handler contractx.Handler, message string) string {
	const maxTitle = 48
	title := string(handler) + ": " + message
	if len(title) <= maxTitle {
		return title
	}

	cut := maxTitle
	for cut > 0 && !utf8.RuneStart(title[cut]) {
		cut--
	}
	return title[:cut]
}
