package deal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRepository is the in-process Repository used by tests and the demo
// binary. NewMemoryRepository pre-loads the sample deal jackets.
type MemoryRepository struct {
	mu    sync.RWMutex
	deals map[string]*Deal
}

func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{deals: make(map[string]*Deal)}
	for _, d := range SeedDeals() {
		r.deals[d.DealNumber] = d
	}
	return r
}

func (r *MemoryRepository) GetByNumber(_ context.Context, dealNumber string) (*Deal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.deals[dealNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDealNotFound, dealNumber)
	}
	return cloneDeal(d), nil
}

func (r *MemoryRepository) Save(_ context.Context, d *Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deals[d.DealNumber] = cloneDeal(d)
	return nil
}

func cloneDeal(d *Deal) *Deal {
	cp := *d
	cp.SignedDocuments = append([]string(nil), d.SignedDocuments...)
	return &cp
}

// SeedDeals returns the sample deal jackets carried from the original
// simulation data set.
func SeedDeals() []*Deal {
	now := time.Now()
	return []*Deal{
		{
			DealNumber:    "1",
			FullName:      "Jane Doe",
			Address:       "123 Oak Street, Rivertown, CA 90210",
			Insurance:     "Geico G09876543 effective 3/15/24 expiring 3/15/25",
			SSN:           "123456789",
			CreditScore:   780,
			TimeAtAddress: "5 yrs, Rent, $2000 per month",
			Employment:    "Full-time, 6 years at XYZ Corporation, Senior Accountant",
			MonthlyIncome: 6000,
			Vehicle:       "5XYZWDLB8JG512345 2023 Hyundai Santa Fe Limited Black 1,500 Miles",
			Trade:         "1GNSKBE0XBR123456 Chevrolet Tahoe LT 30,000 miles White",
			SalePrice:     38000,
			Rebate:        1500,
			DealerFees:    1100,
			TradeValue:    28000,
			TradePayoff:   25000,
			TaxRate:       0.085,
			TagTitleCost:  125,
			IsFinance:     true,
			Expectation:   "customer expects a payment below $700",
			CurrentStage:  "initial",
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			DealNumber:    "2",
			FullName:      "John Smith",
			Address:       "789 Pine Street, Sunnyside, TX 75001",
			Insurance:     "Allstate A11223344 effective 2/20/24 expiring 2/20/25",
			SSN:           "987654321",
			CreditScore:   805,
			TimeAtAddress: "3 yrs, Rent, $1800 per month",
			Employment:    "Full-time, 8 years at ABC Industries, Marketing Manager",
			MonthlyIncome: 8000,
			Vehicle:       "2G1FC3D36D9165432 2023 Chevrolet Camaro SS Red 800 Miles",
			Trade:         "1GNSCBKC7JR123456 Chevrolet Suburban Premier 25,000 miles Silver",
			SalePrice:     42000,
			Rebate:        2500,
			DealerFees:    1100,
			TradeValue:    32000,
			TradePayoff:   28000,
			TaxRate:       0.07,
			TagTitleCost:  125,
			IsFinance:     true,
			Expectation:   "customer expects a payment below $800",
			CurrentStage:  "initial",
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			DealNumber:    "207",
			FullName:      "Test Te Tester",
			Address:       "555 Maple St Honeycomb FL 37756",
			Insurance:     "State Farm F10923335 effective 4/09/24 expiring 4/09/25",
			SSN:           "888553322",
			CreditScore:   832,
			TimeAtAddress: "10 yrs, Own, $1500 per month",
			Employment:    "Retired",
			MonthlyIncome: 7500,
			Vehicle:       "1FTFW1ED7LKE28463 2023 Ford F150 Lariat Blue 193 Miles",
			Trade:         "1FTEW1EP1KK123456 Ford F150 XLT 18,350 miles Green",
			SalePrice:     69500,
			Rebate:        2000,
			DealerFees:    1100,
			TradeValue:    42500,
			TradePayoff:   35000,
			TaxRate:       0.06,
			TagTitleCost:  125,
			IsFinance:     true,
			Expectation:   "customer expects a payment below $1000",
			CurrentStage:  "initial",
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			DealNumber:   "107",
			FullName:     "Jane Louise Smith",
			Address:      "456 Oak Street, Smalltown, FL 33876 USA",
			Insurance:    "XYZ Insurance Policy 987654321 Effective Date: 2022-07-01 Expiration Date: 2023-07-01",
			Vehicle:      "5XYPGDA50MG123456 White SX trim with 34,500 miles",
			Trade:        "2FMPK3G97GB123456 Ford Edge SEL Magnetic Metallic 103,487 miles",
			SalePrice:    17500,
			Rebate:       0,
			DealerFees:   1100,
			TradeValue:   5000,
			TradePayoff:  6327.34,
			TaxRate:      0.06,
			TagTitleCost: 125,
			IsFinance:    false,
			Expectation:  "agreed upon OTD amount: $20,975.84",
			CurrentStage: "initial",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}
