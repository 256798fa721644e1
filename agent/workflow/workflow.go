// Package workflow owns the authoritative per-conversation workflow record:
// a persisted instance of a named multi-step process with pause, handoff,
// bounded error retry, and completion.
package workflow

import (
	"errors"
	"time"

	contractx "github.com/forrest321/aifi/agent/contract"
)

var (
	ErrUnknownWorkflowType = errors.New("unknown workflow type")
	ErrNoActiveWorkflow    = errors.New("no active workflow for conversation")
	ErrNoPendingHandoff    = errors.New("no pending handoff for conversation")
	ErrNoPausedWorkflow    = errors.New("no paused workflow for conversation")
)

type Status string

const (
	StatusActive         Status = "active"
	StatusPaused         Status = "paused"
	StatusHandoffPending Status = "handoff_pending"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// Terminal reports whether the status excludes the workflow from active
// lookups, freeing the conversation to host a fresh workflow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrorState captures the most recent recorded failure and its retry budget
// consumption.
type ErrorState struct {
	Error      string    `json:"error"`
	Step       string    `json:"step"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
}

// Workflow is the durable record. Data and StepData use shallow-overwrite
// merge semantics: new keys win, untouched keys survive.
type Workflow struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id,omitempty"`
	Type           Type              `json:"workflow_type"`
	CurrentHandler contractx.Handler `json:"current_handler"`
	CurrentStep    string            `json:"current_step"`
	StepData       map[string]any    `json:"step_data,omitempty"`
	Data           map[string]any    `json:"workflow_data,omitempty"`
	CompletedSteps []string          `json:"completed_steps"`
	Status         Status            `json:"status"`

	// NextHandler is set if and only if Status == handoff_pending.
	NextHandler   contractx.Handler `json:"next_handler,omitempty"`
	HandoffReason string            `json:"handoff_reason,omitempty"`

	ErrorState           *ErrorState `json:"error_state,omitempty"`
	VerificationAttempts int         `json:"verification_attempts,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *Workflow) mergeData(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	if w.Data == nil {
		w.Data = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		w.Data[k] = v
	}
}

func (w *Workflow) mergeStepData(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	if w.StepData == nil {
		w.StepData = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		w.StepData[k] = v
	}
}

func (w *Workflow) markStepComplete(step string) {
	if step == "" {
		return
	}
	for _, s := range w.CompletedSteps {
		if s == step {
			return
		}
	}
	w.CompletedSteps = append(w.CompletedSteps, step)
}

// View is the enriched read model returned by Machine.GetState.
type View struct {
	Workflow
	Definition         Definition `json:"-"`
	ProgressPercentage int        `json:"progress_percentage"`
	NextStep           string     `json:"next_step,omitempty"`
	CanHandoff         bool       `json:"can_handoff"`
}
