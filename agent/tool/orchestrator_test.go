package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/forrest321/aifi/agent/contract"
	dealx "github.com/forrest321/aifi/agent/deal"
)

type fakeGenerator struct {
	lastPrompt string
	response   string
	err        error
}

func (f *fakeGenerator) NewThread(context.Context, string) (string, error) {
	return "thread-1", nil
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeRegistry struct {
	gen *fakeGenerator
}

func (f *fakeRegistry) Generator(contractx.Handler) (contractx.Generator, error) {
	return f.gen, nil
}

func newTestOrchestrator(t *testing.T, gen *fakeGenerator) *Orchestrator {
	t.Helper()

	tools, err := NewToolset(dealx.NewMemoryRepository())
	if err != nil {
		t.Fatalf("NewToolset() error = %v", err)
	}
	o, err := NewOrchestrator(&fakeRegistry{gen: gen}, tools)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return o
}

func TestExecuteWithToolsDirectWhenNotNeeded(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{response: "hello back"}
	o := newTestOrchestrator(t, gen)

	out, err := o.ExecuteWithTools(context.Background(), contractx.HandlerMainEntry, "thread-1", "hi there", "c1", contractx.ToolRequirements{})
	if err != nil {
		t.Fatalf("ExecuteWithTools() error = %v", err)
	}
	if !out.Success || out.Response != "hello back" {
		t.Fatalf("outcome = %+v", out)
	}
	if gen.lastPrompt != "hi there" {
		t.Fatalf("prompt = %q, want raw message", gen.lastPrompt)
	}
	if len(out.ToolsExecuted) != 0 {
		t.Fatalf("tools executed = %v, want none", out.ToolsExecuted)
	}
}

func TestExecuteWithToolsAugmentsPrompt(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{response: "deal summary"}
	o := newTestOrchestrator(t, gen)

	reqs := contractx.ToolRequirements{
		Needed: true,
		Types:  []contractx.ToolCategory{contractx.ToolDealRetrieval, contractx.ToolBankPrograms},
	}
	out, err := o.ExecuteWithTools(context.Background(), contractx.HandlerDealerInteraction, "thread-1", "get deal 207 info", "c1", reqs)
	if err != nil {
		t.Fatalf("ExecuteWithTools() error = %v", err)
	}
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(gen.lastPrompt, "AVAILABLE DATA CONTEXT:") {
		t.Fatalf("prompt missing context block: %q", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "DEAL_RETRIEVAL:") || !strings.Contains(gen.lastPrompt, "BANK_PROGRAMS:") {
		t.Fatalf("prompt missing category sections: %q", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "Test Te Tester") {
		t.Fatalf("prompt missing deal data: %q", gen.lastPrompt)
	}
	if len(out.ToolsExecuted) != 2 {
		t.Fatalf("tools executed = %v", out.ToolsExecuted)
	}
	if out.ToolData[contractx.ToolDealRetrieval] == "" {
		t.Fatal("expected deal data in tool data map")
	}
}

func TestExecuteWithToolsPartialFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{response: "partial ok"}
	o := newTestOrchestrator(t, gen)

	// Deal 9999 does not exist: the lookup failure goes to the error list
	// while bank programs still succeed and are the only executed category.
	reqs := contractx.ToolRequirements{
		Needed: true,
		Types:  []contractx.ToolCategory{contractx.ToolDealRetrieval, contractx.ToolBankPrograms},
	}
	out, err := o.ExecuteWithTools(context.Background(), contractx.HandlerDealerInteraction, "thread-1", "get deal 9999 info", "c1", reqs)
	if err != nil {
		t.Fatalf("ExecuteWithTools() error = %v", err)
	}
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.ToolsExecuted) != 1 || out.ToolsExecuted[0] != contractx.ToolBankPrograms {
		t.Fatalf("tools executed = %v, want only bank_programs", out.ToolsExecuted)
	}
	if _, ok := out.ToolData[contractx.ToolDealRetrieval]; ok {
		t.Fatalf("failed category must not contribute data: %q", out.ToolData[contractx.ToolDealRetrieval])
	}
	if !strings.Contains(out.ToolData[contractx.ToolBankPrograms], "Bank A") {
		t.Fatalf("bank programs = %q", out.ToolData[contractx.ToolBankPrograms])
	}
	if len(out.Errors) != 1 || !strings.Contains(out.Errors[0], "deal_retrieval") || !strings.Contains(out.Errors[0], "not found") {
		t.Fatalf("errors = %v", out.Errors)
	}
	if strings.Contains(gen.lastPrompt, "DEAL_RETRIEVAL:") {
		t.Fatalf("prompt must not carry the failed category: %q", gen.lastPrompt)
	}
	if out.Err != "" {
		t.Fatalf("partial failure must stay non-fatal, err = %q", out.Err)
	}
}

func TestExecuteWithToolsFallsBackWhenNoData(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{response: "plain reply"}
	o := newTestOrchestrator(t, gen)

	// No deal number in the message: retrieval produces nothing, so the
	// generation call falls back to the raw message.
	reqs := contractx.ToolRequirements{
		Needed: true,
		Types:  []contractx.ToolCategory{contractx.ToolDealRetrieval},
	}
	out, err := o.ExecuteWithTools(context.Background(), contractx.HandlerDealerInteraction, "thread-1", "tell me about my options", "c1", reqs)
	if err != nil {
		t.Fatalf("ExecuteWithTools() error = %v", err)
	}
	if !out.Success || out.Response != "plain reply" {
		t.Fatalf("outcome = %+v", out)
	}
	if gen.lastPrompt != "tell me about my options" {
		t.Fatalf("prompt = %q, want raw message", gen.lastPrompt)
	}
	if len(out.ToolData) != 0 {
		t.Fatalf("tool data = %v, want empty", out.ToolData)
	}
}

func TestExecuteWithToolsGenerationFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: errors.New("backend down")}
	o := newTestOrchestrator(t, gen)

	out, err := o.ExecuteWithTools(context.Background(), contractx.HandlerMainEntry, "thread-1", "hi", "c1", contractx.ToolRequirements{})
	if err != nil {
		t.Fatalf("ExecuteWithTools() error = %v", err)
	}
	if out.Success {
		t.Fatal("expected unsuccessful outcome")
	}
	if out.Err != genericRetryMessage {
		t.Fatalf("error message = %q", out.Err)
	}
}

func TestExecuteWithToolsStaticCategories(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{response: "ok"}
	o := newTestOrchestrator(t, gen)

	reqs := contractx.ToolRequirements{
		Needed: true,
		Types:  []contractx.ToolCategory{contractx.ToolVerification, contractx.ToolDataUpdate},
	}
	out, err := o.ExecuteWithTools(context.Background(), contractx.HandlerCustomerTransaction, "thread-1", "verify me and update my address", "c1", reqs)
	if err != nil {
		t.Fatalf("ExecuteWithTools() error = %v", err)
	}
	if !strings.Contains(out.ToolData[contractx.ToolVerification], "Verification system ready") {
		t.Fatalf("verification = %q", out.ToolData[contractx.ToolVerification])
	}
	if !strings.Contains(out.ToolData[contractx.ToolDataUpdate], "Data update system ready") {
		t.Fatalf("data update = %q", out.ToolData[contractx.ToolDataUpdate])
	}
}

func TestExtractDealNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		message string
		want    string
	}{
		{"get deal 207 info", "207"},
		{"deal number 107 please", "107"},
		{"Deal #2", "2"},
		{"no identifiers here", ""},
	}
	for _, tc := range cases {
		if got := extractDealNumber(tc.message); got != tc.want {
			t.Errorf("extractDealNumber(%q) = %q, want %q", tc.message, got, tc.want)
		}
	}
}
