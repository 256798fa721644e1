// Package classify scores an inbound message against fixed keyword and regex
// rule sets to derive which tool categories it implicates. It is pure: no
// state, safe for concurrent use.
package classify

import (
	"regexp"
	"strings"

	contractx "github.com/forrest321/aifi/agent/contract"
)

// Result mirrors contract.ToolRequirements but keeps the zero-match case
// explicit for callers that only want the boolean.
type Result struct {
	NeedsTools      bool
	Types           []contractx.ToolCategory
	Priority        contractx.Priority
	MatchedPatterns []string
}

var (
	dealNumberPattern    = regexp.MustCompile(`(?i)deal\s*(?:number|#)?\s*(\d+|one|two|three|four|five|six|seven|eight|nine|ten)`)
	knownCustomerPattern = regexp.MustCompile(`(?i)(?:customer|client)\s+(?:jane\s+doe|john\s+smith|test\s+te\s+tester)`)
	dollarAmountPattern  = regexp.MustCompile(`\$[\d,]+`)
	fourDigitPattern     = regexp.MustCompile(`\b\d{4}\b`)
)

// rule ties one tool category to its match predicate and the pattern name
// reported when it fires. Rules are evaluated independently and in order; no
// rule consults another rule's outcome.
type rule struct {
	category contractx.ToolCategory
	pattern  string
	match    func(raw, lower string) bool
}

var rules = []rule{
	{
		category: contractx.ToolDealRetrieval,
		pattern:  "deal_identification",
		match: func(raw, lower string) bool {
			return dealNumberPattern.MatchString(raw) ||
				knownCustomerPattern.MatchString(raw) ||
				strings.Contains(lower, "get deal") ||
				strings.Contains(lower, "deal info") ||
				strings.Contains(lower, "deal details")
		},
	},
	{
		category: contractx.ToolFinancialCalculations,
		pattern:  "payment_calculation",
		match: func(raw, lower string) bool {
			return containsAny(lower, "payment", "monthly", "calculate", "how much", "loan amount", "finance", "interest rate", "apr") ||
				dollarAmountPattern.MatchString(raw)
		},
	},
	{
		category: contractx.ToolDocumentGeneration,
		pattern:  "document_request",
		match: func(_, lower string) bool {
			return containsAny(lower, "document", "paperwork", "dmv", "title", "contract", "forms", "generate", "create")
		},
	},
	{
		category: contractx.ToolVerification,
		pattern:  "verification_request",
		match: func(raw, lower string) bool {
			return containsAny(lower, "verify", "code", "sms", "text", "verification") ||
				fourDigitPattern.MatchString(raw)
		},
	},
	{
		category: contractx.ToolAftermarket,
		pattern:  "aftermarket_inquiry",
		match: func(_, lower string) bool {
			return containsAny(lower, "warranty", "protection", "aftermarket", "add-on", "extended", "coverage")
		},
	},
	{
		category: contractx.ToolBankPrograms,
		pattern:  "financing_inquiry",
		match: func(_, lower string) bool {
			return containsAny(lower, "bank", "lender", "financing options", "programs", "credit", "approval")
		},
	},
	{
		category: contractx.ToolDataUpdate,
		pattern:  "modification_request",
		match: func(_, lower string) bool {
			return containsAny(lower, "update", "change", "modify", "edit", "correct")
		},
	},
}

// Classify evaluates every rule against the message and derives the priority
// tier from the matched categories.
func Classify(message string) Result {
	lower := strings.ToLower(message)

	res := Result{Priority: contractx.PriorityLow}
	for _, r := range rules {
		if r.match(message, lower) {
			res.Types = append(res.Types, r.category)
			res.MatchedPatterns = append(res.MatchedPatterns, r.pattern)
		}
	}
	res.NeedsTools = len(res.Types) > 0

	switch {
	case has(res.Types, contractx.ToolDealRetrieval) || has(res.Types, contractx.ToolVerification):
		res.Priority = contractx.PriorityHigh
	case has(res.Types, contractx.ToolFinancialCalculations) || has(res.Types, contractx.ToolDataUpdate):
		res.Priority = contractx.PriorityMedium
	}

	return res
}

// Requirements converts a Result to the shared wire shape attached to
// routing decisions.
func (r Result) Requirements() contractx.ToolRequirements {
	if !r.NeedsTools {
		return contractx.ToolRequirements{Needed: false}
	}
	return contractx.ToolRequirements{
		Needed:   true,
		Types:    r.Types,
		Priority: r.Priority,
		Patterns: r.MatchedPatterns,
	}
}

func containsAny(lower string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func has(types []contractx.ToolCategory, c contractx.ToolCategory) bool {
	for _, t := range types {
		if t == c {
			return true
		}
	}
	return false
}
