package tool

import (
	"context"
	"fmt"

	dealx "github.com/forrest321/aifi/agent/deal"
)

var dmvDocuments = []string{
	"Odometer Statement",
	"Secure Power of Attorney",
	"Title Reassignment",
	"Power of Attorney",
	"Statement of Tag Intent",
	"Pollution Statement",
	"Insurance Declaration",
	"Bill of Sale",
}

var cashDocuments = []string{
	"Buyers Order",
	"Dealer Privacy Notice",
}

var financeDocuments = []string{
	"Credit Application",
	"Risk Based Pricing Notice",
	"OFAC/ID",
	"Carfax",
}

// DocumentChecklist is the document set for one deal closing.
type DocumentChecklist struct {
	DealNumber        string   `json:"deal_number"`
	IsFinance         bool     `json:"is_finance"`
	AftermarketOption string   `json:"aftermarket_option,omitempty"`
	Documents         []string `json:"documents"`
}

// GenerateDocuments builds the closing checklist for a deal. Cash deals get
// DMV and cash paper; financed deals add the finance set. An aftermarket
// selection appends its contract to each applicable group.
func GenerateDocuments(d *dealx.Deal, aftermarketOption string) DocumentChecklist {
	withAftermarket := aftermarketOption != "" && aftermarketOption != "none"

	docs := append([]string(nil), dmvDocuments...)
	docs = append(docs, cashDocuments...)
	if withAftermarket {
		docs = append(docs, "Aftermarket Contract")
	}
	if d.IsFinance {
		docs = append(docs, financeDocuments...)
		if withAftermarket {
			docs = append(docs, "Aftermarket Contract")
		}
	}

	checklist := DocumentChecklist{
		DealNumber: d.DealNumber,
		IsFinance:  d.IsFinance,
		Documents:  docs,
	}
	if withAftermarket {
		checklist.AftermarketOption = aftermarketOption
	}
	return checklist
}

// ApplySignature records an electronic signature on a document type and
// persists it on the deal.
func (t *Toolset) ApplySignature(ctx context.Context, dealNumber, customerName, documentType string) (string, error) {
	d, err := t.deals.GetByNumber(ctx, dealNumber)
	if err != nil {
		return "", err
	}

	signed := false
	for _, doc := range d.SignedDocuments {
		if doc == documentType {
			signed = true
			break
		}
	}
	if !signed {
		d.SignedDocuments = append(d.SignedDocuments, documentType)
		d.LastModifiedBy = customerName
		if err := t.deals.Save(ctx, d); err != nil {
			return "", fmt.Errorf("record signature: %w", err)
		}
	}

	return fmt.Sprintf("Electronic signature for %s applied to %s for deal %s.", customerName, documentType, dealNumber), nil
}
