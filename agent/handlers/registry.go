package handlers

import (
	"context"
	"fmt"

	contractx "github.com/forrest321/aifi/agent/contract"
	llmx "github.com/forrest321/aifi/agent/llm"
	promptx "github.com/forrest321/aifi/agent/prompt"
	toolx "github.com/forrest321/aifi/agent/tool"
)

// conversationalHandlers are the roles that answer with prose only. The
// tool-execution role is wired separately with the tool catalog bound.
var conversationalHandlers = []contractx.Handler{
	contractx.HandlerMainEntry,
	contractx.HandlerDealerInteraction,
	contractx.HandlerCustomerGeneralInfo,
	contractx.HandlerCustomerTransaction,
	contractx.HandlerAftermarketOffer,
	contractx.HandlerCustomerPaperwork,
}

type Registry struct {
	generators map[contractx.Handler]contractx.Generator
}

var _ contractx.Registry = (*Registry)(nil)

// NewRegistry compiles one generation backend per handler role.
func NewRegistry(ctx context.Context, cfg llmx.Config, prompts promptx.PromptSet, tools *toolx.Toolset) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	generators := make(map[contractx.Handler]contractx.Generator, len(conversationalHandlers)+1)

	for _, handler := range conversationalHandlers {
		systemPrompt, err := prompts.For(handler)
		if err != nil {
			return nil, err
		}

		provider := cfg.OpenRouterFor(handler)
		chatModel, err := provider.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("build chat model for %s: %w", handler, err)
		}

		gen, err := newGenerator(ctx, handler, chatModel, systemPrompt, nil)
		if err != nil {
			return nil, fmt.Errorf("build generator for %s: %w", handler, err)
		}
		generators[handler] = gen
	}

	toolGen, err := newToolHandlerGenerator(ctx, cfg, prompts, tools)
	if err != nil {
		return nil, err
	}
	generators[contractx.HandlerToolHandler] = toolGen

	return &Registry{generators: generators}, nil
}

func newToolHandlerGenerator(ctx context.Context, cfg llmx.Config, prompts promptx.PromptSet, tools *toolx.Toolset) (*generator, error) {
	systemPrompt, err := prompts.For(contractx.HandlerToolHandler)
	if err != nil {
		return nil, err
	}

	provider := cfg.OpenRouterFor(contractx.HandlerToolHandler)
	chatModel, err := provider.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build chat model for %s: %w", contractx.HandlerToolHandler, err)
	}

	var executor toolx.Executor
	if tools != nil {
		bound, err := chatModel.WithTools(tools.Infos())
		if err != nil {
			return nil, fmt.Errorf("bind tool catalog: %w", err)
		}
		chatModel = bound
		executor = tools.Executor()
	}

	gen, err := newGenerator(ctx, contractx.HandlerToolHandler, chatModel, systemPrompt, executor)
	if err != nil {
		return nil, fmt.Errorf("build generator for %s: %w", contractx.HandlerToolHandler, err)
	}
	return gen, nil
}

// Generator returns the generation backend for a handler role.
func (r *Registry) Generator(h contractx.Handler) (contractx.Generator, error) {
	gen, ok := r.generators[h]
	if !ok {
		return nil, fmt.Errorf("%w: %q", contractx.ErrUnknownHandler, h)
	}
	return gen, nil
}
