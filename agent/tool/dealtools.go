package tool

import (
	"context"
	"encoding/json"
	"fmt"

	dealx "github.com/forrest321/aifi/agent/deal"
)

// GetDealInfo returns the deal record as JSON for prompt grounding.
func (t *Toolset) GetDealInfo(ctx context.Context, dealNumber string) (string, error) {
	d, err := t.deals.GetByNumber(ctx, dealNumber)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode deal: %w", err)
	}
	return string(raw), nil
}

// UpdateDealInfo applies field updates to a deal. Updates are keyed by the
// record's JSON field names; unknown keys are rejected.
func (t *Toolset) UpdateDealInfo(ctx context.Context, dealNumber string, updates map[string]any, modifiedBy string) (*dealx.Deal, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("no updates given for deal %q", dealNumber)
	}

	d, err := t.deals.GetByNumber(ctx, dealNumber)
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so updates land on typed fields.
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode deal: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode deal fields: %w", err)
	}
	for key, value := range updates {
		if _, ok := fields[key]; !ok {
			if !knownDealField(key) {
				return nil, fmt.Errorf("unknown deal field %q", key)
			}
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode update %q: %w", key, err)
		}
		fields[key] = encoded
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode merged deal: %w", err)
	}
	updated := *d
	if err := json.Unmarshal(merged, &updated); err != nil {
		return nil, fmt.Errorf("apply updates: %w", err)
	}

	updated.LastModifiedBy = modifiedBy
	if err := t.deals.Save(ctx, &updated); err != nil {
		return nil, fmt.Errorf("save deal: %w", err)
	}
	return &updated, nil
}

// UpdateDealStage moves a deal to a new stage, optionally marking it done.
func (t *Toolset) UpdateDealStage(ctx context.Context, dealNumber, stage string, isComplete bool) (*dealx.Deal, error) {
	d, err := t.deals.GetByNumber(ctx, dealNumber)
	if err != nil {
		return nil, err
	}
	d.CurrentStage = stage
	if isComplete {
		d.IsComplete = true
	}
	if err := t.deals.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("save deal: %w", err)
	}
	return d, nil
}

// SetAftermarketOption records the customer's protection package selection.
func (t *Toolset) SetAftermarketOption(ctx context.Context, dealNumber, option string) (*dealx.Deal, error) {
	d, err := t.deals.GetByNumber(ctx, dealNumber)
	if err != nil {
		return nil, err
	}
	d.SelectedAftermarketOption = option
	if err := t.deals.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("save deal: %w", err)
	}
	return d, nil
}

// Fields that may be absent from the encoded record when empty but are
// still legal update targets.
func knownDealField(key string) bool {
	switch key {
	case "ssn", "credit_score", "time_at_address", "employment", "monthly_income",
		"trade", "selected_aftermarket_option", "last_modified_by":
		return true
	}
	return false
}
