package workflow

import (
	"fmt"

	contractx "github.com/forrest321/aifi/agent/contract"
)

// Type names a registered multi-step process.
type Type string

const (
	TypeDealerVerification  Type = "dealer_verification"
	TypeCustomerTransaction Type = "customer_transaction"
	TypeCustomerGeneralInfo Type = "customer_general_info"
	TypePaperworkFlow       Type = "paperwork_flow"
	TypeAftermarketFlow     Type = "aftermarket_flow"
)

// Definition is the static configuration of one workflow type: its ordered
// steps, the handlers authorized to act in it, and the default handoff
// successor (empty for terminal workflows).
type Definition struct {
	Steps     []string
	Handlers  []contractx.Handler
	Successor Type
}

var definitions = map[Type]Definition{
	TypeDealerVerification: {
		Steps: []string{
			"greet_dealer",
			"request_deal_number",
			"verify_deal_data",
			"check_completeness",
			"update_missing_info",
			"confirm_handoff_ready",
		},
		Handlers:  []contractx.Handler{contractx.HandlerDealerInteraction},
		Successor: TypeCustomerTransaction,
	},
	TypeCustomerTransaction: {
		Steps: []string{
			"identity_verification",
			"sms_verification",
			"deal_review",
			"aftermarket_presentation",
			"document_preparation",
			"signature_collection",
			"transaction_completion",
		},
		Handlers: []contractx.Handler{
			contractx.HandlerCustomerTransaction,
			contractx.HandlerAftermarketOffer,
			contractx.HandlerCustomerPaperwork,
		},
	},
	TypeCustomerGeneralInfo: {
		Steps: []string{
			"assess_needs",
			"gather_requirements",
			"provide_estimates",
			"educate_process",
			"guide_next_steps",
		},
		Handlers:  []contractx.Handler{contractx.HandlerCustomerGeneralInfo},
		Successor: TypeDealerVerification,
	},
	TypePaperworkFlow: {
		Steps: []string{
			"identify_document_type",
			"present_documents",
			"explain_terms",
			"facilitate_signing",
			"confirm_completion",
		},
		Handlers:  []contractx.Handler{contractx.HandlerCustomerPaperwork},
		Successor: TypeCustomerTransaction,
	},
	TypeAftermarketFlow: {
		Steps: []string{
			"present_options",
			"handle_questions",
			"address_objections",
			"confirm_selection",
			"update_deal",
		},
		Handlers:  []contractx.Handler{contractx.HandlerAftermarketOffer},
		Successor: TypePaperworkFlow,
	},
}

// Lookup resolves a workflow type against the registry.
func Lookup(t Type) (Definition, error) {
	def, ok := definitions[t]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownWorkflowType, t)
	}
	return def, nil
}

// TypeForHandler maps a cold-start handler to the workflow type it opens.
func TypeForHandler(h contractx.Handler) Type {
	switch h {
	case contractx.HandlerDealerInteraction:
		return TypeDealerVerification
	case contractx.HandlerCustomerTransaction:
		return TypeCustomerTransaction
	case contractx.HandlerCustomerPaperwork:
		return TypePaperworkFlow
	case contractx.HandlerAftermarketOffer:
		return TypeAftermarketFlow
	case contractx.HandlerCustomerGeneralInfo:
		return TypeCustomerGeneralInfo
	default:
		// mainEntry and toolHandler never open workflows.
		return ""
	}
}

// NextStep returns the step after current in the definition order, or ""
// when current is the last step or not part of the definition.
func (d Definition) NextStep(current string) string {
	for i, s := range d.Steps {
		if s == current {
			if i+1 < len(d.Steps) {
				return d.Steps[i+1]
			}
			return ""
		}
	}
	return ""
}

// HasStep reports whether step belongs to the definition.
func (d Definition) HasStep(step string) bool {
	for _, s := range d.Steps {
		if s == step {
			return true
		}
	}
	return false
}
