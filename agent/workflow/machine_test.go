package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/forrest321/aifi/agent/contract"
)

func newTestMachine(t *testing.T) (*Machine, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	m, err := NewMachine(store)
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	m.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return m, store
}

func TestCreateInitializesFirstStep(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected workflow id")
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view == nil {
		t.Fatal("expected open workflow")
	}
	if view.Status != StatusActive {
		t.Fatalf("status = %s, want active", view.Status)
	}
	if view.CurrentStep != "greet_dealer" {
		t.Fatalf("current step = %s, want greet_dealer", view.CurrentStep)
	}
}

func TestCreateIsIdempotentPerConversation(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	first, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{
		InitialData: map[string]any{"deal_number": "207"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	second, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{
		InitialData: map[string]any{"dealer_name": "Northside Motors"},
	})
	if err != nil {
		t.Fatalf("second Create() error = %v", err)
	}
	if first != second {
		t.Fatalf("expected same workflow id, got %s and %s", first, second)
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view.Data["deal_number"] != "207" || view.Data["dealer_name"] != "Northside Motors" {
		t.Fatalf("merged data = %v", view.Data)
	}
}

func TestCreateUnknownTypeFails(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	_, err := m.Create(context.Background(), "c1", Type("mystery_flow"), contractx.HandlerMainEntry, CreateParams{})
	if !errors.Is(err, ErrUnknownWorkflowType) {
		t.Fatalf("error = %v, want ErrUnknownWorkflowType", err)
	}
}

func TestAdvanceStepMarkCompleteDeduplicates(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.AdvanceStep(ctx, "c1", "request_deal_number", AdvanceParams{MarkStepComplete: true}); err != nil {
		t.Fatalf("AdvanceStep() error = %v", err)
	}
	// Re-advancing from greet_dealer must not duplicate the entry.
	if err := m.AdvanceStep(ctx, "c1", "greet_dealer", AdvanceParams{}); err != nil {
		t.Fatalf("AdvanceStep() error = %v", err)
	}
	if err := m.AdvanceStep(ctx, "c1", "request_deal_number", AdvanceParams{MarkStepComplete: true}); err != nil {
		t.Fatalf("AdvanceStep() error = %v", err)
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if len(view.CompletedSteps) != 1 || view.CompletedSteps[0] != "greet_dealer" {
		t.Fatalf("completed steps = %v, want [greet_dealer]", view.CompletedSteps)
	}
}

func TestAdvanceStepMergesData(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.AdvanceStep(ctx, "c1", "verify_deal_data", AdvanceParams{
		StepData:     map[string]any{"deal_number": "1"},
		WorkflowData: map[string]any{"dealer": "a"},
	}); err != nil {
		t.Fatalf("AdvanceStep() error = %v", err)
	}
	if err := m.AdvanceStep(ctx, "c1", "check_completeness", AdvanceParams{
		StepData:     map[string]any{"verified": true},
		WorkflowData: map[string]any{"dealer": "b"},
	}); err != nil {
		t.Fatalf("AdvanceStep() error = %v", err)
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view.StepData["deal_number"] != "1" || view.StepData["verified"] != true {
		t.Fatalf("step data = %v", view.StepData)
	}
	// Shallow merge: last writer wins.
	if view.Data["dealer"] != "b" {
		t.Fatalf("workflow data = %v", view.Data)
	}
}

func TestAdvanceStepRequiresActiveWorkflow(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	err := m.AdvanceStep(context.Background(), "c1", "anything", AdvanceParams{})
	if !errors.Is(err, ErrNoActiveWorkflow) {
		t.Fatalf("error = %v, want ErrNoActiveWorkflow", err)
	}
}

func TestHandoffSameTypeKeepsRecord(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.InitiateHandoff(ctx, "c1", contractx.HandlerCustomerTransaction, "verified", nil); err != nil {
		t.Fatalf("InitiateHandoff() error = %v", err)
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view.Status != StatusHandoffPending {
		t.Fatalf("status = %s, want handoff_pending", view.Status)
	}
	if view.NextHandler != contractx.HandlerCustomerTransaction {
		t.Fatalf("next handler = %s", view.NextHandler)
	}

	completed, err := m.CompleteHandoff(ctx, "c1", contractx.HandlerCustomerTransaction, "")
	if err != nil {
		t.Fatalf("CompleteHandoff() error = %v", err)
	}
	if completed != created {
		t.Fatalf("expected same workflow id %s, got %s", created, completed)
	}

	view, err = m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view.Status != StatusActive {
		t.Fatalf("status = %s, want active", view.Status)
	}
	if view.CurrentHandler != contractx.HandlerCustomerTransaction {
		t.Fatalf("current handler = %s", view.CurrentHandler)
	}
	if view.NextHandler != "" || view.HandoffReason != "" {
		t.Fatalf("handoff fields not cleared: %q %q", view.NextHandler, view.HandoffReason)
	}
}

func TestHandoffNewTypeCarriesDataForward(t *testing.T) {
	t.Parallel()

	m, store := newTestMachine(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{
		InitialData: map[string]any{"deal_number": "207"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.InitiateHandoff(ctx, "c1", contractx.HandlerCustomerTransaction, "deal verified", map[string]any{"verified": true}); err != nil {
		t.Fatalf("InitiateHandoff() error = %v", err)
	}

	next, err := m.CompleteHandoff(ctx, "c1", contractx.HandlerCustomerTransaction, TypeCustomerTransaction)
	if err != nil {
		t.Fatalf("CompleteHandoff() error = %v", err)
	}
	if next == created {
		t.Fatal("expected a fresh workflow id for the new type")
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view.Type != TypeCustomerTransaction {
		t.Fatalf("type = %s, want customer_transaction", view.Type)
	}
	if view.CurrentStep != "identity_verification" {
		t.Fatalf("current step = %s", view.CurrentStep)
	}
	if view.Data["deal_number"] != "207" || view.Data["verified"] != true {
		t.Fatalf("carried data = %v", view.Data)
	}

	closed := store.Closed("c1")
	if len(closed) != 1 || closed[0].Status != StatusCompleted || closed[0].ID != created {
		t.Fatalf("closed = %+v", closed)
	}
}

func TestCompleteHandoffRequiresPending(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := m.CompleteHandoff(ctx, "c1", contractx.HandlerCustomerTransaction, "")
	if !errors.Is(err, ErrNoPendingHandoff) {
		t.Fatalf("error = %v, want ErrNoPendingHandoff", err)
	}
}

func TestRecordErrorRetryBudget(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 1; i <= 3; i++ {
		out, err := m.RecordError(ctx, "c1", "lookup timed out", "verify_deal_data", true)
		if err != nil {
			t.Fatalf("RecordError() #%d error = %v", i, err)
		}
		if out.Action != "retry" || out.RetryCount != i {
			t.Fatalf("attempt %d = %+v", i, out)
		}
	}

	out, err := m.RecordError(ctx, "c1", "lookup timed out", "verify_deal_data", true)
	if err != nil {
		t.Fatalf("final RecordError() error = %v", err)
	}
	if out.Action != "failed" || out.RetryCount != 3 {
		t.Fatalf("final outcome = %+v", out)
	}

	// The failed record stays readable with its final error context.
	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view == nil || view.Status != StatusFailed {
		t.Fatalf("view = %+v, want failed workflow", view)
	}
	if view.ErrorState == nil || view.ErrorState.Error != "lookup timed out" || view.ErrorState.RetryCount != 3 {
		t.Fatalf("error state = %+v", view.ErrorState)
	}
	if view.CanHandoff {
		t.Fatal("failed workflow must not allow handoff")
	}
}

func TestRecordErrorNoRetryFailsImmediately(t *testing.T) {
	t.Parallel()

	m, store := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	out, err := m.RecordError(ctx, "c1", "boom", "greet_dealer", false)
	if err != nil {
		t.Fatalf("RecordError() error = %v", err)
	}
	if out.Action != "failed" || out.RetryCount != 0 {
		t.Fatalf("outcome = %+v", out)
	}

	if closed := store.Closed("c1"); len(closed) != 0 {
		t.Fatalf("failed workflow must stay in the open slot, closed = %+v", closed)
	}
	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view == nil || view.Status != StatusFailed {
		t.Fatalf("view = %+v, want failed workflow", view)
	}
	if view.ErrorState == nil || view.ErrorState.Error != "boom" {
		t.Fatalf("error state = %+v", view.ErrorState)
	}
}

func TestCreateAfterFailureReplacesWorkflow(t *testing.T) {
	t.Parallel()

	m, store := newTestMachine(t)
	ctx := context.Background()

	firstID, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := m.RecordError(ctx, "c1", "boom", "greet_dealer", false); err != nil {
		t.Fatalf("RecordError() error = %v", err)
	}

	secondID, err := m.Create(ctx, "c1", TypeCustomerGeneralInfo, contractx.HandlerCustomerGeneralInfo, CreateParams{})
	if err != nil {
		t.Fatalf("Create() after failure error = %v", err)
	}
	if secondID == firstID {
		t.Fatal("expected a fresh workflow id after failure")
	}

	closed := store.Closed("c1")
	if len(closed) != 1 || closed[0].ID != firstID || closed[0].Status != StatusFailed {
		t.Fatalf("closed = %+v", closed)
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view == nil || view.Status != StatusActive || view.Type != TypeCustomerGeneralInfo {
		t.Fatalf("view = %+v, want fresh active workflow", view)
	}
	if view.ErrorState != nil {
		t.Fatal("fresh workflow must not inherit error state")
	}
}

func TestPauseAndResume(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeCustomerGeneralInfo, contractx.HandlerCustomerGeneralInfo, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.Pause(ctx, "c1"); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := m.Resume(ctx, "c1", contractx.HandlerCustomerGeneralInfo); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view.Status != StatusActive {
		t.Fatalf("status = %s, want active", view.Status)
	}
	if view.ErrorState != nil {
		t.Fatal("error state must be cleared on resume")
	}
}

func TestResumeRequiresPaused(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeCustomerGeneralInfo, contractx.HandlerCustomerGeneralInfo, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := m.Resume(ctx, "c1", contractx.HandlerCustomerGeneralInfo)
	if !errors.Is(err, ErrNoPausedWorkflow) {
		t.Fatalf("error = %v, want ErrNoPausedWorkflow", err)
	}
}

func TestCompleteFreesConversation(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeAftermarketFlow, contractx.HandlerAftermarketOffer, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.Complete(ctx, "c1", map[string]any{"selected_option": "option2"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view != nil {
		t.Fatal("expected no open workflow after completion")
	}

	// The conversation can host a fresh workflow afterwards.
	if _, err := m.Create(ctx, "c1", TypePaperworkFlow, contractx.HandlerCustomerPaperwork, CreateParams{}); err != nil {
		t.Fatalf("Create() after completion error = %v", err)
	}
}

func TestGetStateEnrichment(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.AdvanceStep(ctx, "c1", "request_deal_number", AdvanceParams{MarkStepComplete: true}); err != nil {
		t.Fatalf("AdvanceStep() error = %v", err)
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view.ProgressPercentage != 17 { // 1 of 6 steps
		t.Fatalf("progress = %d, want 17", view.ProgressPercentage)
	}
	if view.NextStep != "verify_deal_data" {
		t.Fatalf("next step = %s", view.NextStep)
	}
	if !view.CanHandoff {
		t.Fatal("dealer_verification defines a successor, expected CanHandoff")
	}
}

func TestGetStateLastStepHasNoNext(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeCustomerTransaction, contractx.HandlerCustomerTransaction, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.AdvanceStep(ctx, "c1", "transaction_completion", AdvanceParams{}); err != nil {
		t.Fatalf("AdvanceStep() error = %v", err)
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view.NextStep != "" {
		t.Fatalf("next step = %s, want empty", view.NextStep)
	}
	// Terminal workflow type: no successor, no handoff offer.
	if view.CanHandoff {
		t.Fatal("customer_transaction is terminal, expected CanHandoff=false")
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if n, err := m.Reset(ctx, "c1"); err != nil || n != 0 {
		t.Fatalf("Reset() on empty conversation = %d, %v", n, err)
	}

	if _, err := m.Create(ctx, "c1", TypeDealerVerification, contractx.HandlerDealerInteraction, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	n, err := m.Reset(ctx, "c1")
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("reset count = %d, want 1", n)
	}

	view, err := m.GetState(ctx, "c1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if view != nil {
		t.Fatal("expected no open workflow after reset")
	}
}

func TestRecordVerificationAttempt(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "c1", TypeCustomerTransaction, contractx.HandlerCustomerTransaction, CreateParams{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for want := 1; want <= 2; want++ {
		got, err := m.RecordVerificationAttempt(ctx, "c1")
		if err != nil {
			t.Fatalf("RecordVerificationAttempt() error = %v", err)
		}
		if got != want {
			t.Fatalf("attempts = %d, want %d", got, want)
		}
	}
}
