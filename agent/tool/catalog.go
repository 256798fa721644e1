package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/forrest321/aifi/agent/contract"
	dealx "github.com/forrest321/aifi/agent/deal"
)

// Narrow tool names exposed to the tool-execution handler.
const (
	ToolDealGet                 = "deal.get"
	ToolDealUpdate              = "deal.update"
	ToolDealSetStage            = "deal.set_stage"
	ToolDealSetAftermarket      = "deal.set_aftermarket"
	ToolFinancePayment          = "finance.calculate_payment"
	ToolFinanceFinancedAmount   = "finance.calculate_financed_amount"
	ToolFinanceCreditRate       = "finance.credit_rate"
	ToolDocumentsGenerate       = "documents.generate"
	ToolDocumentsSign           = "documents.sign"
	ToolVerificationSendCode    = "verification.send_code"
	ToolVerificationVerifyCode  = "verification.verify_code"
	ToolAftermarketOptions      = "aftermarket.options"
	ToolBankProgramsList        = "bank.programs"
)

// Executor runs one named narrow tool. Tool-level failures come back in
// ToolResult.Error; the error return is for infrastructure faults only.
type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

// Toolset owns the narrow tools' collaborators.
type Toolset struct {
	deals dealx.Repository
	sms   SMSSender
}

type Option func(*Toolset)

// WithSMSSender wires real code delivery into the verification tools.
func WithSMSSender(sms SMSSender) Option {
	return func(t *Toolset) { t.sms = sms }
}

func NewToolset(deals dealx.Repository, opts ...Option) (*Toolset, error) {
	if deals == nil {
		return nil, errors.New("tool: nil deal repository")
	}
	t := &Toolset{deals: deals}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Infos is the manifest bound to the tool-execution handler's model.
func (t *Toolset) Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolDealGet,
			Desc: "Retrieve deal information from the DMS-like system.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"deal_number": {Type: schema.String, Desc: "The deal number to retrieve", Required: true},
			}),
		},
		{
			Name: ToolDealUpdate,
			Desc: "Update deal information with key-value field updates.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"deal_number": {Type: schema.String, Desc: "The deal number to update", Required: true},
				"updates":     {Type: schema.Object, Desc: "Field updates keyed by deal field name", Required: true},
			}),
		},
		{
			Name: ToolDealSetStage,
			Desc: "Move a deal to a new stage, optionally marking it complete.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"deal_number": {Type: schema.String, Desc: "The deal number", Required: true},
				"stage":       {Type: schema.String, Desc: "New stage name", Required: true},
				"is_complete": {Type: schema.Boolean, Desc: "Whether the deal is complete"},
			}),
		},
		{
			Name: ToolDealSetAftermarket,
			Desc: "Record the customer's aftermarket option selection for a deal.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"deal_number": {Type: schema.String, Desc: "The deal number", Required: true},
				"option":      {Type: schema.String, Desc: "Selected aftermarket option", Required: true},
			}),
		},
		{
			Name: ToolFinancePayment,
			Desc: "Calculate monthly loan payment based on amount, rate, and term.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"principal":   {Type: schema.Number, Desc: "Loan principal amount", Required: true},
				"annual_rate": {Type: schema.Number, Desc: "Annual interest rate as a percentage", Required: true},
				"term_months": {Type: schema.Integer, Desc: "Loan term in months", Required: true},
			}),
		},
		{
			Name: ToolFinanceFinancedAmount,
			Desc: "Calculate the total financed amount including taxes, fees, and aftermarket add-ons.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"deal_number":      {Type: schema.String, Desc: "The deal number", Required: true},
				"aftermarket_cost": {Type: schema.Number, Desc: "Additional cost for aftermarket products"},
			}),
		},
		{
			Name: ToolFinanceCreditRate,
			Desc: "Get interest rate based on customer credit score tier.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"credit_score": {Type: schema.Integer, Desc: "Customer's credit score", Required: true},
			}),
		},
		{
			Name: ToolDocumentsGenerate,
			Desc: "Generate the required closing documents for a deal.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"deal_number":        {Type: schema.String, Desc: "The deal number", Required: true},
				"aftermarket_option": {Type: schema.String, Desc: "Selected aftermarket option, or none"},
			}),
		},
		{
			Name: ToolDocumentsSign,
			Desc: "Apply an electronic signature to a document for a deal.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"deal_number":   {Type: schema.String, Desc: "The deal number", Required: true},
				"customer_name": {Type: schema.String, Desc: "Customer name for the signature", Required: true},
				"document_type": {Type: schema.String, Desc: "Document type, e.g. Buyers Order", Required: true},
			}),
		},
		{
			Name: ToolVerificationSendCode,
			Desc: "Send an SMS verification code to the customer's phone.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"deal_number":  {Type: schema.String, Desc: "The deal number", Required: true},
				"phone_number": {Type: schema.String, Desc: "Destination phone number"},
			}),
		},
		{
			Name: ToolVerificationVerifyCode,
			Desc: "Verify the SMS code entered by the customer.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"entered_code": {Type: schema.String, Desc: "The 4-digit code entered by the customer", Required: true},
			}),
		},
		{
			Name: ToolAftermarketOptions,
			Desc: "Get 3-tier aftermarket protection options priced for the deal's vehicle.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"deal_number": {Type: schema.String, Desc: "The deal number", Required: true},
			}),
		},
		{
			Name: ToolBankProgramsList,
			Desc: "Get current bank financing programs and rates.",
		},
	}
}

// Executor returns the dispatcher for the manifest above.
func (t *Toolset) Executor() Executor {
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		category, ok := categoryForTool(tool)
		if !ok {
			return contractx.ToolResult{Error: fmt.Sprintf("unknown tool %q", tool)}, nil
		}
		result := contractx.ToolResult{Category: category}

		out, err := t.execute(ctx, tool, args)
		if err != nil {
			result.Error = err.Error()
			return result, nil
		}
		result.Result = out
		return result, nil
	}
}

func (t *Toolset) execute(ctx context.Context, tool string, args map[string]any) (string, error) {
	switch tool {
	case ToolDealGet:
		number, err := stringArg(args, "deal_number")
		if err != nil {
			return "", err
		}
		return t.GetDealInfo(ctx, number)

	case ToolDealUpdate:
		number, err := stringArg(args, "deal_number")
		if err != nil {
			return "", err
		}
		updates, _ := args["updates"].(map[string]any)
		if _, err := t.UpdateDealInfo(ctx, number, updates, "toolHandler"); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deal %s updated successfully.", number), nil

	case ToolDealSetStage:
		number, err := stringArg(args, "deal_number")
		if err != nil {
			return "", err
		}
		stage, err := stringArg(args, "stage")
		if err != nil {
			return "", err
		}
		isComplete, _ := args["is_complete"].(bool)
		if _, err := t.UpdateDealStage(ctx, number, stage, isComplete); err != nil {
			return "", err
		}
		if isComplete {
			return fmt.Sprintf("Deal %s stage updated to %q and marked as complete.", number, stage), nil
		}
		return fmt.Sprintf("Deal %s stage updated to %q.", number, stage), nil

	case ToolDealSetAftermarket:
		number, err := stringArg(args, "deal_number")
		if err != nil {
			return "", err
		}
		option, err := stringArg(args, "option")
		if err != nil {
			return "", err
		}
		if _, err := t.SetAftermarketOption(ctx, number, option); err != nil {
			return "", err
		}
		return fmt.Sprintf("Aftermarket option %q recorded for deal %s.", option, number), nil

	case ToolFinancePayment:
		principal, err := numberArg(args, "principal")
		if err != nil {
			return "", err
		}
		rate, err := numberArg(args, "annual_rate")
		if err != nil {
			return "", err
		}
		term, err := numberArg(args, "term_months")
		if err != nil {
			return "", err
		}
		quote, err := CalculatePayment(principal, rate, int(term))
		if err != nil {
			return "", err
		}
		return encodeJSON(quote)

	case ToolFinanceFinancedAmount:
		number, err := stringArg(args, "deal_number")
		if err != nil {
			return "", err
		}
		aftermarketCost, _ := numberArg(args, "aftermarket_cost")
		d, err := t.deals.GetByNumber(ctx, number)
		if err != nil {
			return "", err
		}
		return encodeJSON(CalculateFinancedAmount(d, aftermarketCost))

	case ToolFinanceCreditRate:
		score, err := numberArg(args, "credit_score")
		if err != nil {
			return "", err
		}
		return encodeJSON(CreditBasedRate(int(score)))

	case ToolDocumentsGenerate:
		number, err := stringArg(args, "deal_number")
		if err != nil {
			return "", err
		}
		option, _ := args["aftermarket_option"].(string)
		d, err := t.deals.GetByNumber(ctx, number)
		if err != nil {
			return "", err
		}
		return encodeJSON(GenerateDocuments(d, option))

	case ToolDocumentsSign:
		number, err := stringArg(args, "deal_number")
		if err != nil {
			return "", err
		}
		name, err := stringArg(args, "customer_name")
		if err != nil {
			return "", err
		}
		docType, err := stringArg(args, "document_type")
		if err != nil {
			return "", err
		}
		return t.ApplySignature(ctx, number, name, docType)

	case ToolVerificationSendCode:
		number, err := stringArg(args, "deal_number")
		if err != nil {
			return "", err
		}
		phone, _ := args["phone_number"].(string)
		return t.SendVerificationCode(ctx, number, phone)

	case ToolVerificationVerifyCode:
		code, err := stringArg(args, "entered_code")
		if err != nil {
			return "", err
		}
		_, message := VerifyCode(code)
		return message, nil

	case ToolAftermarketOptions:
		number, err := stringArg(args, "deal_number")
		if err != nil {
			return "", err
		}
		d, err := t.deals.GetByNumber(ctx, number)
		if err != nil {
			return "", err
		}
		return encodeJSON(AftermarketOptions(d))

	case ToolBankProgramsList:
		return encodeJSON(map[string]any{"programs": BankPrograms()})

	default:
		return "", fmt.Errorf("unknown tool %q", tool)
	}
}

func categoryForTool(tool string) (contractx.ToolCategory, bool) {
	switch tool {
	case ToolDealGet:
		return contractx.ToolDealRetrieval, true
	case ToolDealUpdate, ToolDealSetStage, ToolDealSetAftermarket:
		return contractx.ToolDataUpdate, true
	case ToolFinancePayment, ToolFinanceFinancedAmount, ToolFinanceCreditRate:
		return contractx.ToolFinancialCalculations, true
	case ToolDocumentsGenerate, ToolDocumentsSign:
		return contractx.ToolDocumentGeneration, true
	case ToolVerificationSendCode, ToolVerificationVerifyCode:
		return contractx.ToolVerification, true
	case ToolAftermarketOptions:
		return contractx.ToolAftermarket, true
	case ToolBankProgramsList:
		return contractx.ToolBankPrograms, true
	}
	return "", false
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return value, nil
}

func numberArg(args map[string]any, key string) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch value := raw.(type) {
	case float64:
		return value, nil
	case int:
		return float64(value), nil
	case json.Number:
		return value.Float64()
	}
	return 0, fmt.Errorf("%s must be a number", key)
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool output: %w", err)
	}
	return string(raw), nil
}
