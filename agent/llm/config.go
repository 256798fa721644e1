package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/forrest321/aifi/agent/contract"
	openrouterx "github.com/forrest321/aifi/pkg/openrouter"
)

// Config selects the model and sampling settings per handler role. The
// tool-execution role usually runs a smaller function-calling model; the
// conversational roles share the default unless overridden.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ToolHandlerModel       string  `envconfig:"TOOL_HANDLER_MODEL" split_words:"true"`
	TransactionModel       string  `envconfig:"TRANSACTION_MODEL" split_words:"true"`
	ToolHandlerTemperature float32 `envconfig:"TOOL_HANDLER_TEMPERATURE" split_words:"true" default:"-1"`
	TransactionTemperature float32 `envconfig:"TRANSACTION_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the provider config for one handler role.
func (c Config) OpenRouterFor(h contractx.Handler) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch h {
	case contractx.HandlerToolHandler:
		if v := strings.TrimSpace(c.ToolHandlerModel); v != "" {
			modelName = v
		}
		if c.ToolHandlerTemperature >= 0 {
			temp = c.ToolHandlerTemperature
		}
	case contractx.HandlerCustomerTransaction:
		if v := strings.TrimSpace(c.TransactionModel); v != "" {
			modelName = v
		}
		if c.TransactionTemperature >= 0 {
			temp = c.TransactionTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
