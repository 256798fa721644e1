package tool

import (
	"context"
	"math"
	"testing"

	dealx "github.com/forrest321/aifi/agent/deal"
)

func TestCalculatePayment(t *testing.T) {
	t.Parallel()

	quote, err := CalculatePayment(30000, 6.0, 72)
	if err != nil {
		t.Fatalf("CalculatePayment() error = %v", err)
	}
	// Standard amortization: 30000 at 6% over 72 months.
	if math.Abs(quote.MonthlyPayment-497.19) > 0.01 {
		t.Fatalf("monthly payment = %v, want ~497.19", quote.MonthlyPayment)
	}
}

func TestCalculatePaymentZeroRate(t *testing.T) {
	t.Parallel()

	quote, err := CalculatePayment(12000, 0, 60)
	if err != nil {
		t.Fatalf("CalculatePayment() error = %v", err)
	}
	if quote.MonthlyPayment != 200 {
		t.Fatalf("monthly payment = %v, want 200", quote.MonthlyPayment)
	}
}

func TestCalculatePaymentRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := CalculatePayment(0, 6, 72); err == nil {
		t.Fatal("expected error for zero principal")
	}
	if _, err := CalculatePayment(30000, -1, 72); err == nil {
		t.Fatal("expected error for negative rate")
	}
	if _, err := CalculatePayment(30000, 6, 0); err == nil {
		t.Fatal("expected error for zero term")
	}
}

func TestCalculateFinancedAmountCashDeal(t *testing.T) {
	t.Parallel()

	repo := dealx.NewMemoryRepository()
	d, err := repo.GetByNumber(context.Background(), "107")
	if err != nil {
		t.Fatalf("GetByNumber() error = %v", err)
	}

	breakdown := CalculateFinancedAmount(d, 0)

	// taxable = 17500 - 0 - 5000 + 1100 = 13600; tax = 13600 * 0.06 = 816
	if breakdown.TaxableAmount != 13600 {
		t.Fatalf("taxable = %v, want 13600", breakdown.TaxableAmount)
	}
	if breakdown.Tax != 816 {
		t.Fatalf("tax = %v, want 816", breakdown.Tax)
	}
	// total = 17500 - 0 + 1100 + 816 + 125 + 0 + 6327.34 - 5000 = 20868.34
	if math.Abs(breakdown.TotalFinanced-20868.34) > 0.01 {
		t.Fatalf("total = %v, want 20868.34", breakdown.TotalFinanced)
	}
}

func TestCalculateFinancedAmountTradeInNetsEquity(t *testing.T) {
	t.Parallel()

	d := &dealx.Deal{
		DealNumber:   "1",
		SalePrice:    38000,
		Rebate:       1500,
		DealerFees:   1100,
		TradeValue:   28000,
		TradePayoff:  25000,
		TaxRate:      0.085,
		TagTitleCost: 125,
	}

	breakdown := CalculateFinancedAmount(d, 0)

	// taxable = 38000 - 1500 - 28000 + 1100 = 9600; tax = 9600 * 0.085 = 816
	if breakdown.TaxableAmount != 9600 {
		t.Fatalf("taxable = %v, want 9600", breakdown.TaxableAmount)
	}
	if breakdown.Tax != 816 {
		t.Fatalf("tax = %v, want 816", breakdown.Tax)
	}
	// total = 38000 - 1500 + 1100 + 816 + 125 + 0 + 25000 - 28000 = 35541
	if breakdown.TotalFinanced != 35541 {
		t.Fatalf("total = %v, want 35541", breakdown.TotalFinanced)
	}
}

func TestCalculateFinancedAmountWithAftermarket(t *testing.T) {
	t.Parallel()

	d := &dealx.Deal{
		DealNumber:   "1",
		SalePrice:    38000,
		Rebate:       1500,
		DealerFees:   1100,
		TradeValue:   28000,
		TradePayoff:  25000,
		TaxRate:      0.085,
		TagTitleCost: 125,
	}

	breakdown := CalculateFinancedAmount(d, 2000)

	// taxable = 38000 - 1500 - 28000 + 1100 + 2000 = 11600
	if breakdown.TaxableAmount != 11600 {
		t.Fatalf("taxable = %v, want 11600", breakdown.TaxableAmount)
	}
	if breakdown.Tax != 986 {
		t.Fatalf("tax = %v, want 986", breakdown.Tax)
	}
	// total = 38000 - 1500 + 1100 + 986 + 125 + 2000 + 25000 - 28000 = 37711
	if breakdown.TotalFinanced != 37711 {
		t.Fatalf("total = %v, want 37711", breakdown.TotalFinanced)
	}
}

func TestCreditBasedRateTiers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		score int
		rate  float64
		tier  string
	}{
		{832, 5.0, "Premium"},
		{801, 5.0, "Premium"},
		{800, 6.0, "Standard"},
		{700, 6.0, "Standard"},
		{699, 7.0, "Subprime"},
		{580, 7.0, "Subprime"},
	}
	for _, tc := range cases {
		q := CreditBasedRate(tc.score)
		if q.InterestRate != tc.rate || q.Tier != tc.tier {
			t.Errorf("CreditBasedRate(%d) = %v/%s, want %v/%s", tc.score, q.InterestRate, q.Tier, tc.rate, tc.tier)
		}
	}
}
