package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	dealx "github.com/forrest321/aifi/agent/deal"
	"github.com/forrest321/aifi/agent/dispatch"
	"github.com/forrest321/aifi/agent/handlers"
	llmx "github.com/forrest321/aifi/agent/llm"
	promptx "github.com/forrest321/aifi/agent/prompt"
	routerx "github.com/forrest321/aifi/agent/router"
	sessionx "github.com/forrest321/aifi/agent/session"
	statex "github.com/forrest321/aifi/agent/state"
	toolx "github.com/forrest321/aifi/agent/tool"
	workflowx "github.com/forrest321/aifi/agent/workflow"
	configx "github.com/forrest321/aifi/pkg/config"
	_ "github.com/forrest321/aifi/pkg/logger/autoload"
	openrouterx "github.com/forrest321/aifi/pkg/openrouter"
	smsx "github.com/forrest321/aifi/pkg/smsgateway"
)

type AppConfig struct {
	DatabaseDSN    string `envconfig:"DATABASE_DSN" split_words:"true"`
	ConversationID string `envconfig:"CONVERSATION_ID" split_words:"true" default:"local-dev"`
}

func main() {
	ctx := context.Background()
	appCfg := configx.MustNew[AppConfig]("AIFI")

	workflowStore, sessionStore := buildStores()
	deals := buildDealRepository(ctx, appCfg.DatabaseDSN)

	toolOpts := []toolx.Option{}
	if smsCfg, err := configx.New[smsx.Config]("SMS"); err == nil {
		sms, err := smsx.NewClient(*smsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("sms gateway config invalid")
		}
		toolOpts = append(toolOpts, toolx.WithSMSSender(sms))
	} else {
		log.Info().Msg("sms gateway not configured, verification codes are simulated")
	}

	tools, err := toolx.NewToolset(deals, toolOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("build toolset")
	}

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if openrouterx.NewClient(llmCfg.OpenRouterFor("")) == nil {
		log.Fatal().Msg("openrouter credentials missing")
	}
	models, err := handlers.NewRegistry(ctx, *llmCfg, promptx.Load(), tools)
	if err != nil {
		log.Fatal().Err(err).Msg("build generator registry")
	}

	machine, err := workflowx.NewMachine(workflowStore)
	if err != nil {
		log.Fatal().Err(err).Msg("build workflow machine")
	}
	sessions, err := sessionx.NewRegistry(sessionStore)
	if err != nil {
		log.Fatal().Err(err).Msg("build session registry")
	}
	router, err := routerx.New(machine, sessions)
	if err != nil {
		log.Fatal().Err(err).Msg("build router")
	}
	producer, err := toolx.NewOrchestrator(models, tools)
	if err != nil {
		log.Fatal().Err(err).Msg("build tool orchestrator")
	}

	svc, err := dispatch.New(router, machine, sessions, models, producer)
	if err != nil {
		log.Fatal().Err(err).Msg("build dispatch service")
	}

	runChatLoop(ctx, svc, appCfg.ConversationID)
}

// buildStores prefers Upstash Redis when UPSTASH_* is configured, falling
// back to in-memory stores for local runs.
func buildStores() (workflowx.Store, sessionx.Store) {
	stateCfg, err := configx.New[statex.Config]("UPSTASH")
	if err != nil {
		log.Info().Msg("upstash not configured, using in-memory state")
		return workflowx.NewMemoryStore(), sessionx.NewMemoryStore()
	}

	kv, err := statex.NewClient(*stateCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("upstash client")
	}
	workflowStore, err := workflowx.NewRedisStore(kv)
	if err != nil {
		log.Fatal().Err(err).Msg("workflow store")
	}
	sessionStore, err := sessionx.NewRedisStore(kv)
	if err != nil {
		log.Fatal().Err(err).Msg("session store")
	}
	return workflowStore, sessionStore
}

func buildDealRepository(ctx context.Context, dsn string) dealx.Repository {
	if strings.TrimSpace(dsn) == "" {
		log.Info().Msg("no database dsn, using seeded in-memory deals")
		return dealx.NewMemoryRepository()
	}

	repo, err := dealx.OpenPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open postgres")
	}
	if err := repo.SeedIfEmpty(ctx); err != nil {
		log.Fatal().Err(err).Msg("seed deals")
	}
	return repo
}

func runChatLoop(ctx context.Context, svc *dispatch.Service, conversationID string) {
	fmt.Println("AI-Fi dispatcher ready. Type a message, or \"exit\" to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		result, err := svc.Dispatch(ctx, conversationID, line, "")
		if err != nil {
			log.Error().Err(err).Msg("dispatch failed")
			continue
		}
		if !result.Success {
			fmt.Println(result.Error)
			continue
		}
		fmt.Printf("[%s] %s\n", result.Handler, result.Response)
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("read input")
	}
}
