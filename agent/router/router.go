// Package router picks the handler and action for each inbound turn. It
// reads workflow and session state but never mutates either.
package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/forrest321/aifi/agent/classify"
	contractx "github.com/forrest321/aifi/agent/contract"
	"github.com/forrest321/aifi/agent/session"
	workflowx "github.com/forrest321/aifi/agent/workflow"
)

// Routing reasons surfaced in Decision.Reason.
const (
	ReasonWorkflowHandoff      = "workflow_handoff"
	ReasonWorkflowContinuation = "workflow_continuation"
	ReasonWorkflowResume       = "workflow_resume"
	ReasonConversationContinue = "conversation_continuity"
	ReasonUserSessionState     = "user_session_state"
	ReasonDealerKeywords       = "dealer_keywords"
	ReasonTransactionKeywords  = "transaction_keywords"
	ReasonPaperworkKeywords    = "paperwork_keywords"
	ReasonGeneralInfoKeywords  = "general_info_keywords"
	ReasonAftermarketKeywords  = "aftermarket_keywords"
	ReasonDirectToolRequest    = "direct_tool_request"
	ReasonDefaultEntry         = "default_entry"
)

// WorkflowReader is the slice of the workflow machine the router needs.
type WorkflowReader interface {
	GetState(ctx context.Context, conversationID string) (*workflowx.View, error)
}

// SessionReader is the slice of the session registry the router needs.
type SessionReader interface {
	Conversation(ctx context.Context, conversationID string) (*session.Conversation, error)
}

// Decision is the outcome of one routing pass. WorkflowSnapshot is non-nil
// only when a workflow tier fired.
type Decision struct {
	Handler          contractx.Handler
	Action           contractx.Action
	Reason           string
	ToolRequirements contractx.ToolRequirements
	WorkflowSnapshot *workflowx.View
}

type Router struct {
	workflows WorkflowReader
	sessions  SessionReader
}

func New(workflows WorkflowReader, sessions SessionReader) (*Router, error) {
	if workflows == nil || sessions == nil {
		return nil, errors.New("router: nil collaborator")
	}
	return &Router{workflows: workflows, sessions: sessions}, nil
}

// Route decides the handler and action for a message by strict priority:
// workflow state, then conversation continuity, then the caller-supplied
// user-session hint, then cold-start keyword analysis. Tool detection runs
// independently of which tier fired.
func (r *Router) Route(ctx context.Context, message, conversationID string, userHint contractx.Handler) (Decision, error) {
	if conversationID == "" {
		return Decision{}, fmt.Errorf("%w: empty conversation id", contractx.ErrValidation)
	}

	d, err := r.decide(ctx, message, conversationID, userHint)
	if err != nil {
		return Decision{}, err
	}
	d.ToolRequirements = classify.Classify(message).Requirements()

	log.Debug().
		Str("conversation_id", conversationID).
		Str("handler", string(d.Handler)).
		Str("action", string(d.Action)).
		Str("reason", d.Reason).
		Bool("needs_tools", d.ToolRequirements.Needed).
		Msg("routed message")

	return d, nil
}

func (r *Router) decide(ctx context.Context, message, conversationID string, userHint contractx.Handler) (Decision, error) {
	view, err := r.workflows.GetState(ctx, conversationID)
	if err != nil {
		return Decision{}, fmt.Errorf("read workflow state: %w", err)
	}
	if view != nil {
		switch view.Status {
		case workflowx.StatusHandoffPending:
			if view.NextHandler != "" {
				return Decision{
					Handler:          view.NextHandler,
					Action:           contractx.ActionHandoff,
					Reason:           ReasonWorkflowHandoff,
					WorkflowSnapshot: view,
				}, nil
			}
		case workflowx.StatusActive:
			return Decision{
				Handler:          view.CurrentHandler,
				Action:           contractx.ActionContinue,
				Reason:           ReasonWorkflowContinuation,
				WorkflowSnapshot: view,
			}, nil
		case workflowx.StatusPaused:
			return Decision{
				Handler:          view.CurrentHandler,
				Action:           contractx.ActionResume,
				Reason:           ReasonWorkflowResume,
				WorkflowSnapshot: view,
			}, nil
		}
	}

	conv, err := r.sessions.Conversation(ctx, conversationID)
	if err != nil {
		return Decision{}, fmt.Errorf("read conversation: %w", err)
	}
	if conv != nil && conv.CurrentHandler != "" && conv.ActiveThreadID != "" {
		return Decision{
			Handler: conv.CurrentHandler,
			Action:  contractx.ActionContinue,
			Reason:  ReasonConversationContinue,
		}, nil
	}

	if userHint != "" {
		return Decision{
			Handler: userHint,
			Action:  contractx.ActionContinue,
			Reason:  ReasonUserSessionState,
		}, nil
	}

	return coldStart(message), nil
}

var anyDigit = regexp.MustCompile(`\d`)

type keywordRule struct {
	handler contractx.Handler
	reason  string
	match   func(string) bool
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// Ordered cold-start cascade. First match wins.
var coldStartRules = []keywordRule{
	{
		handler: contractx.HandlerDealerInteraction,
		reason:  ReasonDealerKeywords,
		match: func(text string) bool {
			if strings.Contains(text, "deal") && (strings.Contains(text, "number") || anyDigit.MatchString(text)) {
				return true
			}
			return containsAny(text, "dealer", "inventory", "update deal", "verify")
		},
	},
	{
		handler: contractx.HandlerCustomerTransaction,
		reason:  ReasonTransactionKeywords,
		match: func(text string) bool {
			return containsAny(text, "finish", "complete", "transaction", "buy", "purchase", "sign")
		},
	},
	{
		handler: contractx.HandlerCustomerPaperwork,
		reason:  ReasonPaperworkKeywords,
		match: func(text string) bool {
			return containsAny(text, "paperwork", "document", "dmv", "title", "registration")
		},
	},
	{
		handler: contractx.HandlerCustomerGeneralInfo,
		reason:  ReasonGeneralInfoKeywords,
		match: func(text string) bool {
			return containsAny(text, "payment", "rate", "bank", "finance", "estimate")
		},
	},
	{
		handler: contractx.HandlerAftermarketOffer,
		reason:  ReasonAftermarketKeywords,
		match: func(text string) bool {
			return containsAny(text, "warranty", "protection", "aftermarket", "add-on")
		},
	},
	{
		handler: contractx.HandlerToolHandler,
		reason:  ReasonDirectToolRequest,
		match: func(text string) bool {
			return containsAny(text, "execute tool", "run calculation", "tool handler")
		},
	},
}

func coldStart(message string) Decision {
	text := strings.ToLower(message)
	for _, rule := range coldStartRules {
		if rule.match(text) {
			return Decision{Handler: rule.handler, Action: contractx.ActionStart, Reason: rule.reason}
		}
	}
	return Decision{Handler: contractx.HandlerMainEntry, Action: contractx.ActionStart, Reason: ReasonDefaultEntry}
}
