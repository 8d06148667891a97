package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/voyago/voyago-backend/internal/agents"
	"github.com/voyago/voyago-backend/internal/api"
	"github.com/voyago/voyago-backend/internal/config"
	"github.com/voyago/voyago-backend/internal/intent"
	"github.com/voyago/voyago-backend/internal/language"
	"github.com/voyago/voyago-backend/internal/llm"
	"github.com/voyago/voyago-backend/internal/orchestrator"
	"github.com/voyago/voyago-backend/internal/search"
	"github.com/voyago/voyago-backend/internal/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open session store")
	}
	sessionStore := sqlite.New(db, log)
	defer sessionStore.Close()

	provider := buildProvider(cfg, log)
	searchClient := buildSearchClient(cfg, log)

	bridge := language.NewBridge(provider, cfg.Language.ConfidenceThreshold, log)
	extractor := intent.NewExtractor(provider, log)
	registry := agents.NewRegistry(searchClient, provider, cfg.Search.MaxResults, log)
	resolver := orchestrator.NewFollowupResolver(provider, log)

	orch := orchestrator.New(sessionStore, bridge, extractor, registry, resolver, orchestrator.Config{
		TurnTimeout:        cfg.Limits.TurnTimeout,
		AgentTimeout:       cfg.Limits.AgentTimeout,
		MaxContextMessages: cfg.Limits.MaxContextMessages,
	}, log)

	app := fiber.New(fiber.Config{
		AppName: "Voyago Backend",
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	api.SetupRoutes(app, orch)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Info("shutting down")
		if cfg.Limits.SessionMaxIdle > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := sessionStore.CleanupOldSessions(ctx, cfg.Limits.SessionMaxIdle); err != nil {
				log.WithError(err).Warn("session cleanup failed")
			}
			cancel()
		}
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("voyago backend starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// buildProvider wires the configured LLM, falling back to the deterministic
// stub when no key is present so local runs still boot.
func buildProvider(cfg *config.Config, log *logrus.Logger) llm.Provider {
	if cfg.OpenAI.APIKey == "" {
		log.Warn("no OpenAI API key configured, using stub provider")
		return llm.NewStubProvider()
	}
	provider, err := llm.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize LLM provider")
	}
	return provider
}

func buildSearchClient(cfg *config.Config, log *logrus.Logger) search.Client {
	if cfg.Search.APIKey == "" {
		log.Warn("no search API key configured, using stub search client")
		return &search.StubClient{}
	}
	client, err := search.NewHTTPClient(cfg.Search.APIKey, cfg.Search.BaseURL, cfg.Search.Timeout, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize search client")
	}
	return client
}
