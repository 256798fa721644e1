package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/forrest321/aifi/agent/contract"
)

var (
	//go:embed template/main_entry.txt
	mainEntryRaw string

	//go:embed template/dealer_interaction.txt
	dealerInteractionRaw string

	//go:embed template/customer_general_info.txt
	customerGeneralInfoRaw string

	//go:embed template/customer_transaction.txt
	customerTransactionRaw string

	//go:embed template/aftermarket_offer.txt
	aftermarketOfferRaw string

	//go:embed template/customer_paperwork.txt
	customerPaperworkRaw string

	//go:embed template/tool_handler.txt
	toolHandlerRaw string
)

// PromptSet holds the loaded system prompt for every handler role.
type PromptSet struct {
	prompts map[contractx.Handler]string
}

// Load returns the PromptSet with trimmed prompt strings. Safe to call
// concurrently; the embed is compile-time and trimming is cheap.
func Load() PromptSet {
	return PromptSet{prompts: map[contractx.Handler]string{
		contractx.HandlerMainEntry:           strings.TrimSpace(mainEntryRaw),
		contractx.HandlerDealerInteraction:   strings.TrimSpace(dealerInteractionRaw),
		contractx.HandlerCustomerGeneralInfo: strings.TrimSpace(customerGeneralInfoRaw),
		contractx.HandlerCustomerTransaction: strings.TrimSpace(customerTransactionRaw),
		contractx.HandlerAftermarketOffer:    strings.TrimSpace(aftermarketOfferRaw),
		contractx.HandlerCustomerPaperwork:   strings.TrimSpace(customerPaperworkRaw),
		contractx.HandlerToolHandler:         strings.TrimSpace(toolHandlerRaw),
	}}
}

// For returns the system prompt for a handler.
func (s PromptSet) For(h contractx.Handler) (string, error) {
	text, ok := s.prompts[h]
	if !ok || text == "" {
		return "", fmt.Errorf("%w: %q", contractx.ErrPromptMissing, h)
	}
	return text, nil
}
