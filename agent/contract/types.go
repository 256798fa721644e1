package contract

// Handler is a named conversational role addressed by the router.
type Handler string

const (
	HandlerMainEntry           Handler = "mainEntry"
	HandlerDealerInteraction   Handler = "dealerInteraction"
	HandlerCustomerGeneralInfo Handler = "customerGeneralInfo"
	HandlerCustomerTransaction Handler = "customerTransaction"
	HandlerAftermarketOffer    Handler = "aftermarketOffer"
	HandlerCustomerPaperwork   Handler = "customerPaperwork"
	HandlerToolHandler         Handler = "toolHandler"
)

// Action tells the dispatch pipeline what to do with the selected handler.
type Action string

const (
	ActionStart    Action = "start"
	ActionContinue Action = "continue"
	ActionHandoff  Action = "handoff"
	ActionResume   Action = "resume"
)

type ToolCategory string

const (
	ToolDealRetrieval         ToolCategory = "deal_retrieval"
	ToolFinancialCalculations ToolCategory = "financial_calculations"
	ToolDocumentGeneration    ToolCategory = "document_generation"
	ToolVerification          ToolCategory = "verification"
	ToolAftermarket           ToolCategory = "aftermarket"
	ToolBankPrograms          ToolCategory = "bank_programs"
	ToolDataUpdate            ToolCategory = "data_update"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ToolRequirements is the classifier's verdict for one inbound message.
// Types preserves rule evaluation order.
type ToolRequirements struct {
	Needed   bool           `json:"needed"`
	Types    []ToolCategory `json:"types,omitempty"`
	Priority Priority       `json:"priority,omitempty"`
	Patterns []string       `json:"patterns,omitempty"`
}

func (r ToolRequirements) Has(c ToolCategory) bool {
	for _, t := range r.Types {
		if t == c {
			return true
		}
	}
	return false
}

// ToolResult is the outcome of one narrow tool call, scoped to a single
// orchestration pass. Either Result or Error is set.
type ToolResult struct {
	Category ToolCategory `json:"category"`
	Result   string       `json:"result,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// TurnResult is what a completed dispatch turn hands back to the outer
// request handler.
type TurnResult struct {
	Success       bool                    `json:"success"`
	Response      string                  `json:"response,omitempty"`
	Handler       Handler                 `json:"handler"`
	ThreadID      string                  `json:"thread_id,omitempty"`
	IsNewThread   bool                    `json:"is_new_thread,omitempty"`
	ToolsExecuted []ToolCategory          `json:"tools_executed,omitempty"`
	ToolData      map[ToolCategory]string `json:"tool_data,omitempty"`
	ToolErrors    []string                `json:"tool_errors,omitempty"`
	Error         string                  `json:"error,omitempty"`
}
