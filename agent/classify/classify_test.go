package classify

import (
	"testing"

	contractx "github.com/forrest321/aifi/agent/contract"
)

func TestClassifyDealLookup(t *testing.T) {
	t.Parallel()

	res := Classify("I need to get deal 207 info")
	if !res.NeedsTools {
		t.Fatal("expected NeedsTools")
	}
	if !has(res.Types, contractx.ToolDealRetrieval) {
		t.Fatalf("expected deal_retrieval in %v", res.Types)
	}
	if res.Priority != contractx.PriorityHigh {
		t.Fatalf("priority = %s, want high", res.Priority)
	}
}

func TestClassifyIndependentCategories(t *testing.T) {
	t.Parallel()

	res := Classify("calculate the monthly payment and update the warranty coverage on deal 1")
	for _, want := range []contractx.ToolCategory{
		contractx.ToolDealRetrieval,
		contractx.ToolFinancialCalculations,
		contractx.ToolAftermarket,
		contractx.ToolDataUpdate,
	} {
		if !has(res.Types, want) {
			t.Fatalf("expected %s in %v", want, res.Types)
		}
	}
}

func TestClassifyPriorityTiers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		message string
		want    contractx.Priority
	}{
		{"verification is high", "please verify my identity", contractx.PriorityHigh},
		{"calculation is medium", "what would the monthly payment be", contractx.PriorityMedium},
		{"update is medium", "change my address please", contractx.PriorityMedium},
		{"document only is low", "which forms do I sign", contractx.PriorityLow},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := Classify(tc.message)
			if res.Priority != tc.want {
				t.Fatalf("Classify(%q).Priority = %s, want %s", tc.message, res.Priority, tc.want)
			}
		})
	}
}

func TestClassifyNoMatch(t *testing.T) {
	t.Parallel()

	res := Classify("hello there")
	if res.NeedsTools {
		t.Fatalf("expected no tools, got %v", res.Types)
	}
	if res.Priority != contractx.PriorityLow {
		t.Fatalf("priority = %s, want low", res.Priority)
	}
	if req := res.Requirements(); req.Needed {
		t.Fatal("Requirements().Needed must be false")
	}
}

func TestClassifyFourDigitCode(t *testing.T) {
	t.Parallel()

	res := Classify("1234")
	if !has(res.Types, contractx.ToolVerification) {
		t.Fatalf("expected verification in %v", res.Types)
	}
	if res.Priority != contractx.PriorityHigh {
		t.Fatalf("priority = %s, want high", res.Priority)
	}
}

func TestClassifyDollarAmount(t *testing.T) {
	t.Parallel()

	res := Classify("can I stay under $40,000")
	if !has(res.Types, contractx.ToolFinancialCalculations) {
		t.Fatalf("expected financial_calculations in %v", res.Types)
	}
}

func TestRequirementsPreservesOrder(t *testing.T) {
	t.Parallel()

	res := Classify("get deal 1 details and calculate payment")
	req := res.Requirements()
	if !req.Needed {
		t.Fatal("expected Needed")
	}
	if req.Types[0] != contractx.ToolDealRetrieval {
		t.Fatalf("first category = %s, want deal_retrieval", req.Types[0])
	}
}
