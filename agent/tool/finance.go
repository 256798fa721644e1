package tool

import (
	"fmt"
	"math"

	dealx "github.com/forrest321/aifi/agent/deal"
)

// PaymentQuote is the output of the amortizing payment calculation.
type PaymentQuote struct {
	Principal      float64 `json:"principal"`
	AnnualRate     float64 `json:"annual_rate"`
	TermMonths     int     `json:"term_months"`
	MonthlyPayment float64 `json:"monthly_payment"`
}

// CalculatePayment computes the monthly payment on an amortizing loan.
// AnnualRate is a percentage, e.g. 6.0 for six percent.
func CalculatePayment(principal, annualRate float64, termMonths int) (PaymentQuote, error) {
	if principal <= 0 {
		return PaymentQuote{}, fmt.Errorf("principal must be positive, got %v", principal)
	}
	if annualRate < 0 {
		return PaymentQuote{}, fmt.Errorf("annual rate must not be negative, got %v", annualRate)
	}
	if termMonths <= 0 {
		return PaymentQuote{}, fmt.Errorf("term must be positive, got %d", termMonths)
	}

	var payment float64
	if annualRate == 0 {
		payment = principal / float64(termMonths)
	} else {
		monthlyRate := annualRate / 12 / 100
		factor := math.Pow(1+monthlyRate, float64(termMonths))
		payment = principal * (monthlyRate * factor) / (factor - 1)
	}

	return PaymentQuote{
		Principal:      principal,
		AnnualRate:     annualRate,
		TermMonths:     termMonths,
		MonthlyPayment: round2(payment),
	}, nil
}

// FinanceBreakdown is the output of the financed-amount calculation.
type FinanceBreakdown struct {
	DealNumber    string  `json:"deal_number"`
	TaxableAmount float64 `json:"taxable_amount"`
	Tax           float64 `json:"tax"`
	TotalFinanced float64 `json:"total_financed"`
}

// CalculateFinancedAmount computes tax and the amount to finance for a deal.
// Tax applies to sale price net of rebate and trade value, plus dealer fees
// and any aftermarket cost. Trade equity is netted into the total through
// payoff minus trade value.
func CalculateFinancedAmount(d *dealx.Deal, aftermarketCost float64) FinanceBreakdown {
	taxable := d.SalePrice - d.Rebate - d.TradeValue + d.DealerFees + aftermarketCost
	tax := taxable * d.TaxRate
	total := d.SalePrice - d.Rebate + d.DealerFees + tax + d.TagTitleCost + aftermarketCost + d.TradePayoff - d.TradeValue

	return FinanceBreakdown{
		DealNumber:    d.DealNumber,
		TaxableAmount: round2(taxable),
		Tax:           round2(tax),
		TotalFinanced: round2(total),
	}
}

// RateQuote is the output of the credit tier lookup.
type RateQuote struct {
	CreditScore  int     `json:"credit_score"`
	InterestRate float64 `json:"interest_rate"`
	Tier         string  `json:"tier"`
}

// CreditBasedRate maps a credit score to an interest rate tier.
func CreditBasedRate(creditScore int) RateQuote {
	q := RateQuote{CreditScore: creditScore}
	switch {
	case creditScore > 800:
		q.InterestRate, q.Tier = 5.0, "Premium"
	case creditScore >= 700:
		q.InterestRate, q.Tier = 6.0, "Standard"
	default:
		q.InterestRate, q.Tier = 7.0, "Subprime"
	}
	return q
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
