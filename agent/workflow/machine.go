package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/forrest321/aifi/agent/contract"
)

const maxRetries = 3

// ErrorOutcome is the result of RecordError.
type ErrorOutcome struct {
	Action     string `json:"action"` // "retry" or "failed"
	RetryCount int    `json:"retry_count"`
}

// Machine exposes the workflow operations. All mutations for one
// conversation are serialized through a per-conversation mutex; there is no
// cross-conversation locking.
type Machine struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMachine(store Store) (*Machine, error) {
	if store == nil {
		return nil, errors.New("workflow store is required")
	}
	return &Machine{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (m *Machine) lock(conversationID string) func() {
	m.mu.Lock()
	l, ok := m.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[conversationID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// CreateParams carries the optional fields of Create.
type CreateParams struct {
	UserID      string
	InitialData map[string]any
}

// Create opens a workflow for the conversation. Creation is idempotent: when
// an open workflow already exists it merges InitialData and retargets the
// handler and type instead of inserting a duplicate. Returns the workflow id.
func (m *Machine) Create(ctx context.Context, conversationID string, workflowType Type, initialHandler contractx.Handler, p CreateParams) (string, error) {
	unlock := m.lock(conversationID)
	defer unlock()

	now := m.now().UTC()

	existing, err := m.store.LoadOpen(ctx, conversationID)
	switch {
	case err == nil && existing.Status == StatusFailed:
		// A failed workflow stays readable until the conversation starts
		// over; archive it now and open a fresh record.
		if err := m.store.Close(ctx, existing); err != nil {
			return "", err
		}
	case err == nil:
		existing.CurrentHandler = initialHandler
		existing.Type = workflowType
		existing.mergeData(p.InitialData)
		existing.UpdatedAt = now
		if err := m.store.SaveOpen(ctx, existing); err != nil {
			return "", err
		}
		return existing.ID, nil
	case !errors.Is(err, ErrStateNotFound):
		return "", err
	}

	def, err := Lookup(workflowType)
	if err != nil {
		return "", err
	}

	w := &Workflow{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         p.UserID,
		Type:           workflowType,
		CurrentHandler: initialHandler,
		CurrentStep:    def.Steps[0],
		StepData:       map[string]any{},
		Data:           map[string]any{},
		CompletedSteps: []string{},
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	w.mergeData(p.InitialData)

	if err := m.store.SaveOpen(ctx, w); err != nil {
		return "", err
	}

	log.Debug().
		Str("conversation_id", conversationID).
		Str("workflow_type", string(workflowType)).
		Str("current_step", w.CurrentStep).
		Msg("workflow created")
	return w.ID, nil
}

// AdvanceParams carries the optional fields of AdvanceStep.
type AdvanceParams struct {
	StepData         map[string]any
	WorkflowData     map[string]any
	MarkStepComplete bool
}

// AdvanceStep moves an active workflow to newStep, merging step and workflow
// data. With MarkStepComplete the pre-update step is appended to the
// completed list, deduplicated.
func (m *Machine) AdvanceStep(ctx context.Context, conversationID, newStep string, p AdvanceParams) error {
	unlock := m.lock(conversationID)
	defer unlock()

	w, err := m.loadWithStatus(ctx, conversationID, StatusActive, ErrNoActiveWorkflow)
	if err != nil {
		return err
	}

	if p.MarkStepComplete {
		w.markStepComplete(w.CurrentStep)
	}
	if newStep != "" {
		w.CurrentStep = newStep
	}
	w.mergeStepData(p.StepData)
	w.mergeData(p.WorkflowData)
	w.UpdatedAt = m.now().UTC()

	return m.store.SaveOpen(ctx, w)
}

// InitiateHandoff parks an active workflow in handoff_pending, recording the
// target handler and reason.
func (m *Machine) InitiateHandoff(ctx context.Context, conversationID string, targetHandler contractx.Handler, reason string, handoffData map[string]any) error {
	unlock := m.lock(conversationID)
	defer unlock()

	w, err := m.loadWithStatus(ctx, conversationID, StatusActive, ErrNoActiveWorkflow)
	if err != nil {
		return err
	}

	w.Status = StatusHandoffPending
	w.NextHandler = targetHandler
	w.HandoffReason = reason
	w.mergeData(handoffData)
	w.UpdatedAt = m.now().UTC()

	if err := m.store.SaveOpen(ctx, w); err != nil {
		return err
	}

	log.Debug().
		Str("conversation_id", conversationID).
		Str("target_handler", string(targetHandler)).
		Str("reason", reason).
		Msg("handoff initiated")
	return nil
}

// CompleteHandoff finishes a pending handoff. With a different workflow type
// the current record is completed and a fresh one opens under the new type,
// carrying the accumulated workflow data forward verbatim. Otherwise the same
// record returns to active under the new handler. Returns the id of the
// workflow now active.
func (m *Machine) CompleteHandoff(ctx context.Context, conversationID string, newHandler contractx.Handler, newWorkflowType Type) (string, error) {
	unlock := m.lock(conversationID)
	defer unlock()

	w, err := m.loadWithStatus(ctx, conversationID, StatusHandoffPending, ErrNoPendingHandoff)
	if err != nil {
		return "", err
	}

	now := m.now().UTC()

	if newWorkflowType != "" && newWorkflowType != w.Type {
		def, err := Lookup(newWorkflowType)
		if err != nil {
			return "", err
		}

		w.Status = StatusCompleted
		w.UpdatedAt = now
		if err := m.store.Close(ctx, w); err != nil {
			return "", err
		}

		next := &Workflow{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			UserID:         w.UserID,
			Type:           newWorkflowType,
			CurrentHandler: newHandler,
			CurrentStep:    def.Steps[0],
			StepData:       map[string]any{},
			Data:           w.Data,
			CompletedSteps: []string{},
			Status:         StatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := m.store.SaveOpen(ctx, next); err != nil {
			return "", err
		}
		return next.ID, nil
	}

	w.Status = StatusActive
	w.CurrentHandler = newHandler
	w.NextHandler = ""
	w.HandoffReason = ""
	w.UpdatedAt = now

	if err := m.store.SaveOpen(ctx, w); err != nil {
		return "", err
	}
	return w.ID, nil
}

// RecordError consumes one unit of the retry budget. After three retries, or
// when shouldRetry is false, the workflow is marked failed. The failed record
// stays readable through GetState until Create replaces it.
func (m *Machine) RecordError(ctx context.Context, conversationID, errMsg, step string, shouldRetry bool) (ErrorOutcome, error) {
	unlock := m.lock(conversationID)
	defer unlock()

	w, err := m.loadWithStatus(ctx, conversationID, StatusActive, ErrNoActiveWorkflow)
	if err != nil {
		return ErrorOutcome{}, err
	}

	now := m.now().UTC()
	retries := 0
	if w.ErrorState != nil {
		retries = w.ErrorState.RetryCount
	}

	if shouldRetry && retries < maxRetries {
		w.ErrorState = &ErrorState{
			Error:      errMsg,
			Step:       step,
			Timestamp:  now,
			RetryCount: retries + 1,
		}
		w.UpdatedAt = now
		if err := m.store.SaveOpen(ctx, w); err != nil {
			return ErrorOutcome{}, err
		}
		return ErrorOutcome{Action: "retry", RetryCount: retries + 1}, nil
	}

	w.Status = StatusFailed
	w.ErrorState = &ErrorState{
		Error:      errMsg,
		Step:       step,
		Timestamp:  now,
		RetryCount: retries,
	}
	w.UpdatedAt = now
	if err := m.store.SaveOpen(ctx, w); err != nil {
		return ErrorOutcome{}, err
	}

	log.Warn().
		Str("conversation_id", conversationID).
		Str("step", step).
		Int("retries", retries).
		Msg("workflow failed after exhausting retry budget")
	return ErrorOutcome{Action: "failed", RetryCount: retries}, nil
}

// Pause parks an active workflow.
func (m *Machine) Pause(ctx context.Context, conversationID string) error {
	unlock := m.lock(conversationID)
	defer unlock()

	w, err := m.loadWithStatus(ctx, conversationID, StatusActive, ErrNoActiveWorkflow)
	if err != nil {
		return err
	}

	w.Status = StatusPaused
	w.UpdatedAt = m.now().UTC()
	return m.store.SaveOpen(ctx, w)
}

// Resume reactivates a paused workflow under resumeHandler, clearing any
// stored error state.
func (m *Machine) Resume(ctx context.Context, conversationID string, resumeHandler contractx.Handler) error {
	unlock := m.lock(conversationID)
	defer unlock()

	w, err := m.loadWithStatus(ctx, conversationID, StatusPaused, ErrNoPausedWorkflow)
	if err != nil {
		return err
	}

	w.Status = StatusActive
	w.CurrentHandler = resumeHandler
	w.ErrorState = nil
	w.UpdatedAt = m.now().UTC()
	return m.store.SaveOpen(ctx, w)
}

// Complete finishes an active workflow, merging completionData first.
func (m *Machine) Complete(ctx context.Context, conversationID string, completionData map[string]any) error {
	unlock := m.lock(conversationID)
	defer unlock()

	w, err := m.loadWithStatus(ctx, conversationID, StatusActive, ErrNoActiveWorkflow)
	if err != nil {
		return err
	}

	w.mergeData(completionData)
	w.Status = StatusCompleted
	w.UpdatedAt = m.now().UTC()
	return m.store.Close(ctx, w)
}

// RecordVerificationAttempt bumps the structural verification-attempt counter
// on the active workflow and returns the new total.
func (m *Machine) RecordVerificationAttempt(ctx context.Context, conversationID string) (int, error) {
	unlock := m.lock(conversationID)
	defer unlock()

	w, err := m.loadWithStatus(ctx, conversationID, StatusActive, ErrNoActiveWorkflow)
	if err != nil {
		return 0, err
	}

	w.VerificationAttempts++
	w.UpdatedAt = m.now().UTC()
	if err := m.store.SaveOpen(ctx, w); err != nil {
		return 0, err
	}
	return w.VerificationAttempts, nil
}

// GetState returns the open workflow enriched with registry-derived progress,
// or nil when the conversation has none.
func (m *Machine) GetState(ctx context.Context, conversationID string) (*View, error) {
	w, err := m.store.LoadOpen(ctx, conversationID)
	if errors.Is(err, ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	def, err := Lookup(w.Type)
	if err != nil {
		return nil, fmt.Errorf("stored workflow references unregistered type: %w", err)
	}

	progress := 0
	if len(def.Steps) > 0 {
		progress = int(float64(len(w.CompletedSteps))/float64(len(def.Steps))*100 + 0.5)
	}

	return &View{
		Workflow:           *w,
		Definition:         def,
		ProgressPercentage: progress,
		NextStep:           def.NextStep(w.CurrentStep),
		CanHandoff:         w.Status == StatusActive && def.Successor != "",
	}, nil
}

// Reset completes every non-terminal workflow for the conversation and
// returns how many were affected. Administrative recovery only.
func (m *Machine) Reset(ctx context.Context, conversationID string) (int, error) {
	unlock := m.lock(conversationID)
	defer unlock()

	w, err := m.store.LoadOpen(ctx, conversationID)
	if errors.Is(err, ErrStateNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if w.Status != StatusFailed {
		w.Status = StatusCompleted
	}
	w.UpdatedAt = m.now().UTC()
	if err := m.store.Close(ctx, w); err != nil {
		return 0, err
	}
	return 1, nil
}

func (m *Machine) loadWithStatus(ctx context.Context, conversationID string, want Status, notFound error) (*Workflow, error) {
	w, err := m.store.LoadOpen(ctx, conversationID)
	if errors.Is(err, ErrStateNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	if w.Status != want {
		return nil, notFound
	}
	return w, nil
}
