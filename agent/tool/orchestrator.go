package tool

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/forrest321/aifi/agent/contract"
	dealx "github.com/forrest321/aifi/agent/deal"
)

// Surfaced instead of backend error detail so the caller can retry.
const genericRetryMessage = "I encountered an issue processing your request. Please try again."

var dealNumberInMessage = regexp.MustCompile(`(?i)deal\s*(?:number\s*)?#?\s*(\d+)`)

// Outcome is the result of one orchestrated turn. ToolsExecuted lists only
// the categories that produced data; per-category failures land in Errors
// without failing the turn.
type Outcome struct {
	Success       bool
	Response      string
	ToolsExecuted []contractx.ToolCategory
	ToolData      map[contractx.ToolCategory]string
	Errors        []string
	Err           string
}

// Orchestrator pre-resolves narrow tool calls into prompt context before
// the handler's generation call. Handlers other than the dedicated
// tool-execution role never get function calling; they get data.
type Orchestrator struct {
	registry contractx.Registry
	tools    *Toolset
}

func NewOrchestrator(registry contractx.Registry, tools *Toolset) (*Orchestrator, error) {
	if registry == nil {
		return nil, errors.New("tool: nil generator registry")
	}
	if tools == nil {
		return nil, errors.New("tool: nil toolset")
	}
	return &Orchestrator{registry: registry, tools: tools}, nil
}

// ExecuteWithTools runs the detected tool categories, merges their results
// into an augmented prompt, and calls the handler's generation backend under
// threadID. Without tool requirements the raw message goes straight through.
// Per-category failures are collected in Outcome.Errors and the category
// stays out of ToolsExecuted; only a generation failure makes the outcome
// unsuccessful.
func (o *Orchestrator) ExecuteWithTools(ctx context.Context, handler contractx.Handler, threadID, message, conversationID string, reqs contractx.ToolRequirements) (Outcome, error) {
	gen, err := o.registry.Generator(handler)
	if err != nil {
		return Outcome{}, err
	}

	if !reqs.Needed {
		return o.generate(ctx, gen, handler, threadID, message, nil, nil, nil)
	}

	toolData, toolErrs := o.runCategories(ctx, message, conversationID, reqs.Types)

	prompt := message
	if len(toolData) > 0 {
		prompt = augmentPrompt(message, toolData)
	} else if len(toolErrs) > 0 {
		log.Warn().
			Str("conversation_id", conversationID).
			Strs("errors", toolErrs).
			Msg("all tool categories failed, falling back to direct generation")
	}

	executed := executedCategories(reqs.Types, toolData)
	return o.generate(ctx, gen, handler, threadID, prompt, executed, toolData, toolErrs)
}

func (o *Orchestrator) generate(ctx context.Context, gen contractx.Generator, handler contractx.Handler, threadID, prompt string, executed []contractx.ToolCategory, toolData map[contractx.ToolCategory]string, toolErrs []string) (Outcome, error) {
	response, err := gen.Generate(ctx, threadID, prompt)
	if err != nil {
		log.Error().
			Err(err).
			Str("handler", string(handler)).
			Msg("generation backend call failed")
		return Outcome{
			ToolsExecuted: executed,
			ToolData:      toolData,
			Errors:        toolErrs,
			Err:           genericRetryMessage,
		}, nil
	}
	if toolData == nil {
		toolData = map[contractx.ToolCategory]string{}
	}
	return Outcome{
		Success:       true,
		Response:      response,
		ToolsExecuted: executed,
		ToolData:      toolData,
		Errors:        toolErrs,
	}, nil
}

// runCategories executes each detected category concurrently. Results merge
// by category key, never by completion order. In-flight calls run to
// completion even on cancellation; the merged map is simply discarded by
// the caller in that case.
func (o *Orchestrator) runCategories(ctx context.Context, message, conversationID string, categories []contractx.ToolCategory) (map[contractx.ToolCategory]string, []string) {
	dealNumber := extractDealNumber(message)

	var mu sync.Mutex
	results := make(map[contractx.ToolCategory]string)
	var failures []string

	g := new(errgroup.Group)
	for _, category := range dedupeCategories(categories) {
		category := category
		g.Go(func() error {
			text, err := o.runCategory(ctx, category, message, dealNumber)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %s", category, err))
				return nil
			}
			if text != "" {
				results[category] = text
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		sort.Strings(failures)
		log.Debug().
			Str("conversation_id", conversationID).
			Strs("failures", failures).
			Msg("partial tool failure")
	}
	return results, failures
}

func (o *Orchestrator) runCategory(ctx context.Context, category contractx.ToolCategory, message, dealNumber string) (string, error) {
	switch category {
	case contractx.ToolDealRetrieval:
		if dealNumber == "" {
			return "", nil
		}
		text, err := o.tools.GetDealInfo(ctx, dealNumber)
		if err != nil {
			return "", err
		}
		return text, nil

	case contractx.ToolFinancialCalculations:
		if dealNumber == "" {
			return "", nil
		}
		d, err := o.tools.deals.GetByNumber(ctx, dealNumber)
		if err != nil {
			return "", err
		}
		return financialSummary(d)

	case contractx.ToolAftermarket:
		if dealNumber == "" {
			return "", fmt.Errorf("deal number required for aftermarket pricing")
		}
		d, err := o.tools.deals.GetByNumber(ctx, dealNumber)
		if err != nil {
			return "", err
		}
		return encodeJSON(AftermarketOptions(d))

	case contractx.ToolDocumentGeneration:
		if dealNumber == "" {
			return "", nil
		}
		d, err := o.tools.deals.GetByNumber(ctx, dealNumber)
		if err != nil {
			return "", err
		}
		return encodeJSON(GenerateDocuments(d, d.SelectedAftermarketOption))

	case contractx.ToolVerification:
		return "Verification system ready. Please provide deal number for verification.", nil

	case contractx.ToolBankPrograms:
		return encodeJSON(map[string]any{"programs": BankPrograms()})

	case contractx.ToolDataUpdate:
		return "Data update system ready. Please specify what information needs to be updated.", nil
	}
	return "", fmt.Errorf("unsupported category %q", category)
}

// financialSummary bundles the financed amount with a payment estimate when
// the deal carries a credit score.
func financialSummary(d *dealx.Deal) (string, error) {
	breakdown := CalculateFinancedAmount(d, 0)
	summary := map[string]any{"financed_amount": breakdown}

	if d.IsFinance && d.CreditScore > 0 {
		rate := CreditBasedRate(d.CreditScore)
		quote, err := CalculatePayment(breakdown.TotalFinanced, rate.InterestRate, 72)
		if err == nil {
			summary["rate"] = rate
			summary["estimated_payment"] = quote
		}
	}
	return encodeJSON(summary)
}

func augmentPrompt(message string, toolData map[contractx.ToolCategory]string) string {
	keys := make([]string, 0, len(toolData))
	for category := range toolData {
		keys = append(keys, string(category))
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(message)
	b.WriteString("\n\nAVAILABLE DATA CONTEXT:\n")
	for _, key := range keys {
		b.WriteString(strings.ToUpper(key))
		b.WriteString(": ")
		b.WriteString(toolData[contractx.ToolCategory(key)])
		b.WriteString("\n\n")
	}
	b.WriteString("Please provide a helpful response using this data context.")
	return b.String()
}

func executedCategories(requested []contractx.ToolCategory, toolData map[contractx.ToolCategory]string) []contractx.ToolCategory {
	var executed []contractx.ToolCategory
	for _, category := range dedupeCategories(requested) {
		if _, ok := toolData[category]; ok {
			executed = append(executed, category)
		}
	}
	return executed
}

func dedupeCategories(categories []contractx.ToolCategory) []contractx.ToolCategory {
	seen := make(map[contractx.ToolCategory]struct{}, len(categories))
	var out []contractx.ToolCategory
	for _, c := range categories {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func extractDealNumber(message string) string {
	match := dealNumberInMessage.FindStringSubmatch(message)
	if match == nil {
		return ""
	}
	return match[1]
}
