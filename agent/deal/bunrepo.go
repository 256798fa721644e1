package deal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// BunRepository stores deals in Postgres through bun.
type BunRepository struct {
	db *bun.DB
}

// OpenPostgres connects to Postgres and returns a ready repository. It
// creates the deals table when it does not exist yet.
func OpenPostgres(ctx context.Context, dsn string) (*BunRepository, error) {
	if dsn == "" {
		return nil, errors.New("deal: empty postgres dsn")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Deal)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("ensure deals table: %w", err)
	}
	return &BunRepository{db: db}, nil
}

// NewBunRepository wraps an existing bun handle.
func NewBunRepository(db *bun.DB) (*BunRepository, error) {
	if db == nil {
		return nil, errors.New("deal: nil bun db")
	}
	return &BunRepository{db: db}, nil
}

func (r *BunRepository) GetByNumber(ctx context.Context, dealNumber string) (*Deal, error) {
	d := new(Deal)
	err := r.db.NewSelect().Model(d).Where("deal_number = ?", dealNumber).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrDealNotFound, dealNumber)
		}
		return nil, fmt.Errorf("select deal: %w", err)
	}
	return d, nil
}

func (r *BunRepository) Save(ctx context.Context, d *Deal) error {
	d.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().
		Model(d).
		On("CONFLICT (deal_number) DO UPDATE").
		Set("full_name = EXCLUDED.full_name").
		Set("address = EXCLUDED.address").
		Set("insurance = EXCLUDED.insurance").
		Set("ssn = EXCLUDED.ssn").
		Set("credit_score = EXCLUDED.credit_score").
		Set("time_at_address = EXCLUDED.time_at_address").
		Set("employment = EXCLUDED.employment").
		Set("monthly_income = EXCLUDED.monthly_income").
		Set("vehicle = EXCLUDED.vehicle").
		Set("trade = EXCLUDED.trade").
		Set("sale_price = EXCLUDED.sale_price").
		Set("rebate = EXCLUDED.rebate").
		Set("dealer_fees = EXCLUDED.dealer_fees").
		Set("trade_value = EXCLUDED.trade_value").
		Set("trade_payoff = EXCLUDED.trade_payoff").
		Set("tax_rate = EXCLUDED.tax_rate").
		Set("tag_title_cost = EXCLUDED.tag_title_cost").
		Set("is_finance = EXCLUDED.is_finance").
		Set("expectation = EXCLUDED.expectation").
		Set("current_stage = EXCLUDED.current_stage").
		Set("is_complete = EXCLUDED.is_complete").
		Set("selected_aftermarket_option = EXCLUDED.selected_aftermarket_option").
		Set("signed_documents = EXCLUDED.signed_documents").
		Set("updated_at = EXCLUDED.updated_at").
		Set("last_modified_by = EXCLUDED.last_modified_by").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert deal: %w", err)
	}
	return nil
}

// SeedIfEmpty loads the sample jackets when the table has no rows.
func (r *BunRepository) SeedIfEmpty(ctx context.Context) error {
	count, err := r.db.NewSelect().Model((*Deal)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count deals: %w", err)
	}
	if count > 0 {
		return nil
	}
	seeds := SeedDeals()
	if _, err := r.db.NewInsert().Model(&seeds).Exec(ctx); err != nil {
		return fmt.Errorf("seed deals: %w", err)
	}
	return nil
}
