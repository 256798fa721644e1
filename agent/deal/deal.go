// Package deal holds the finance-deal records the narrow tools read and
// mutate. Deals are addressed by dealer-facing deal number, not storage id.
package deal

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

var ErrDealNotFound = errors.New("deal not found")

// Deal is one finance or cash deal jacket.
type Deal struct {
	bun.BaseModel `bun:"table:deals,alias:d" json:"-"`

	ID         int64  `bun:"id,pk,autoincrement" json:"-"`
	DealNumber string `bun:"deal_number,notnull,unique" json:"deal_number"`

	// Personal information
	FullName      string  `bun:"full_name,notnull" json:"full_name"`
	Address       string  `bun:"address" json:"address"`
	Insurance     string  `bun:"insurance" json:"insurance"`
	SSN           string  `bun:"ssn" json:"ssn,omitempty"`
	CreditScore   int     `bun:"credit_score" json:"credit_score,omitempty"`
	TimeAtAddress string  `bun:"time_at_address" json:"time_at_address,omitempty"`
	Employment    string  `bun:"employment" json:"employment,omitempty"`
	MonthlyIncome float64 `bun:"monthly_income" json:"monthly_income,omitempty"`

	// Vehicle information
	Vehicle string `bun:"vehicle,notnull" json:"vehicle"`
	Trade   string `bun:"trade" json:"trade,omitempty"`

	// Financial information
	SalePrice    float64 `bun:"sale_price,notnull" json:"sale_price"`
	Rebate       float64 `bun:"rebate" json:"rebate"`
	DealerFees   float64 `bun:"dealer_fees" json:"dealer_fees"`
	TradeValue   float64 `bun:"trade_value" json:"trade_value"`
	TradePayoff  float64 `bun:"trade_payoff" json:"trade_payoff"`
	TaxRate      float64 `bun:"tax_rate" json:"tax_rate"`
	TagTitleCost float64 `bun:"tag_title_cost" json:"tag_title_cost"`

	// Deal type and expectations
	IsFinance   bool   `bun:"is_finance,notnull" json:"is_finance"`
	Expectation string `bun:"expectation" json:"expectation"`

	// Status and progress
	CurrentStage             string   `bun:"current_stage,notnull" json:"current_stage"`
	IsComplete               bool     `bun:"is_complete,notnull" json:"is_complete"`
	SelectedAftermarketOption string  `bun:"selected_aftermarket_option" json:"selected_aftermarket_option,omitempty"`
	SignedDocuments          []string `bun:"signed_documents,array" json:"signed_documents"`

	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updated_at"`
	LastModifiedBy string    `bun:"last_modified_by" json:"last_modified_by,omitempty"`
}

// Repository is the storage surface the tools depend on. Save persists the
// whole record; callers mutate a loaded copy and write it back.
type Repository interface {
	GetByNumber(ctx context.Context, dealNumber string) (*Deal, error)
	Save(ctx context.Context, d *Deal) error
}
