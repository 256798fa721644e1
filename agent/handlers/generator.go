// Package handlers builds the per-role generation backends. Each handler
// role gets its own chat model, system prompt, and thread-scoped history;
// the tool-execution role additionally gets the narrow tool catalog bound
// for function calling.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/forrest321/aifi/agent/contract"
	toolx "github.com/forrest321/aifi/agent/tool"
)

// Cap on retained turns per thread. Oldest turns fall off first; the
// system prompt is re-applied every call and never counted.
const maxHistoryMessages = 40

// Rounds of tool execution allowed per generation call.
const maxToolRounds = 4

type generator struct {
	handler      contractx.Handler
	systemPrompt string
	runner       compose.Runnable[[]*schema.Message, *schema.Message]
	executor     toolx.Executor

	mu      sync.Mutex
	history map[string][]*schema.Message
}

func newGenerator(ctx context.Context, handler contractx.Handler, chatModel einomodel.BaseChatModel, systemPrompt string, executor toolx.Executor) (*generator, error) {
	runner, err := compileModelGraph(ctx, chatModel, string(handler))
	if err != nil {
		return nil, err
	}
	return &generator{
		handler:      handler,
		systemPrompt: systemPrompt,
		runner:       runner,
		executor:     executor,
		history:      make(map[string][]*schema.Message),
	}, nil
}

// NewThread allocates a thread id with empty history. The backend for
// threads is in-process; durability of the id itself is the session
// registry's concern.
func (g *generator) NewThread(_ context.Context, title string) (string, error) {
	id := uuid.NewString()

	g.mu.Lock()
	g.history[id] = nil
	g.mu.Unlock()

	log.Debug().
		Str("handler", string(g.handler)).
		Str("thread_id", id).
		Str("title", title).
		Msg("allocated generation thread")
	return id, nil
}

// Generate produces a reply for prompt under threadID, running bound tools
// when the model requests them.
func (g *generator) Generate(ctx context.Context, threadID, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: empty prompt", contractx.ErrValidation)
	}

	userMsg := schema.UserMessage(prompt)
	messages := g.messagesFor(threadID, userMsg)

	reply, trace, err := g.invoke(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", contractx.ErrGenerationBackend, g.handler, err)
	}

	g.appendHistory(threadID, append([]*schema.Message{userMsg}, append(trace, reply)...))
	return reply.Content, nil
}

// invoke runs the model, resolving tool calls between rounds. The returned
// trace holds the intermediate assistant and tool messages.
func (g *generator) invoke(ctx context.Context, messages []*schema.Message) (*schema.Message, []*schema.Message, error) {
	var trace []*schema.Message

	for round := 0; ; round++ {
		reply, err := g.runner.Invoke(ctx, messages)
		if err != nil {
			return nil, nil, err
		}
		if g.executor == nil || len(reply.ToolCalls) == 0 {
			return reply, trace, nil
		}
		if round >= maxToolRounds {
			return nil, nil, fmt.Errorf("tool round limit exceeded")
		}

		trace = append(trace, reply)
		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			result := g.runToolCall(ctx, call)
			toolMsg := schema.ToolMessage(result, call.ID)
			trace = append(trace, toolMsg)
			messages = append(messages, toolMsg)
		}
	}
}

func (g *generator) runToolCall(ctx context.Context, call schema.ToolCall) string {
	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return fmt.Sprintf(`{"error":"invalid tool arguments: %s"}`, err)
		}
	}

	out, err := g.executor(ctx, call.Function.Name, args)
	if err != nil {
		log.Error().
			Err(err).
			Str("tool", call.Function.Name).
			Msg("tool execution failed")
		return `{"error":"tool execution failed"}`
	}
	if out.Error != "" {
		return fmt.Sprintf(`{"error":%q}`, out.Error)
	}
	return out.Result
}

func (g *generator) messagesFor(threadID string, userMsg *schema.Message) []*schema.Message {
	g.mu.Lock()
	past := g.history[threadID]
	g.mu.Unlock()

	messages := make([]*schema.Message, 0, len(past)+2)
	messages = append(messages, schema.SystemMessage(g.systemPrompt))
	messages = append(messages, past...)
	return append(messages, userMsg)
}

func (g *generator) appendHistory(threadID string, turns []*schema.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()

	history := append(g.history[threadID], turns...)
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	g.history[threadID] = history
}

func compileModelGraph(ctx context.Context, chatModel einomodel.BaseChatModel, name string) (compose.Runnable[[]*schema.Message, *schema.Message], error) {
	graph := compose.NewGraph[[]*schema.Message, *schema.Message]()
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "model"); err != nil {
		return nil, fmt.Errorf("add edge start->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(name+".model_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile model graph: %w", err)
	}
	return runner, nil
}
