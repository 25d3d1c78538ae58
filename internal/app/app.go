// Package app assembles the chat stack from a Config. Every entry point
// (HTTP server, terminal client, worker) goes through New.
package app

import (
	"errors"
	"fmt"

	"github.com/suPer8Hu/sentinel-chat/internal/agent"
	"github.com/suPer8Hu/sentinel-chat/internal/ai"
	"github.com/suPer8Hu/sentinel-chat/internal/chat"
	"github.com/suPer8Hu/sentinel-chat/internal/config"
	"github.com/suPer8Hu/sentinel-chat/internal/db"
	"github.com/suPer8Hu/sentinel-chat/internal/docs"
	"github.com/suPer8Hu/sentinel-chat/internal/gate"
	"github.com/suPer8Hu/sentinel-chat/internal/store/rabbitmq"
	"github.com/suPer8Hu/sentinel-chat/internal/store/redisstore"
	"github.com/suPer8Hu/sentinel-chat/internal/turn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Cfg     config.Config
	Logger  *zap.Logger
	DB      *gorm.DB
	Chat    *chat.Repo
	Catalog *chat.Catalog
	Docs    *docs.Service
	Turns   *turn.Orchestrator

	closers []func() error
}

// Options switch off pieces an entry point does not need.
type Options struct {
	// NoQueue builds document indexes inline even when RabbitMQ is configured.
	NoQueue bool
}

func Models() []any {
	return append([]any{&chat.Session{}, &chat.Message{}}, docs.Models()...)
}

func New(cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	a := &App{Cfg: cfg, Logger: logger}

	gdb, err := db.Connect(cfg.DBDSN, logger, Models()...)
	if err != nil {
		return nil, err
	}
	a.DB = gdb
	a.Chat = chat.NewRepo(gdb)

	var rds *redisstore.Store
	if cfg.RedisAddr != "" {
		rds, err = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TurnLockTTL)
		if err != nil {
			logger.Warn("redis unavailable, using process-local locks and no verdict cache", zap.Error(err))
			rds = nil
		} else {
			a.closers = append(a.closers, rds.Close)
		}
	}

	var queue docs.Enqueuer
	if cfg.RabbitURL != "" && !opts.NoQueue {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("rabbit publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		queue = pub
	}
	a.Docs = docs.NewService(docs.NewRepo(gdb), queue, logger.Named("docs"))

	reg := Registry(cfg)
	logger.Info("ai providers registered", zap.Strings("providers", reg.Names()), zap.String("default", cfg.AIProvider))
	router, err := agent.NewRouter(cfg.ChatContextWindowSize, cfg.AgentTimeout,
		agent.NewGeneralAgent(reg, agent.Backend{Provider: cfg.AIProvider}),
		agent.NewDocumentAgent(reg, agent.Backend{Provider: cfg.DocumentsProvider}, a.Docs, 4, logger.Named("agent")),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	classifier, err := Classifier(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	var locker turn.Locker
	if rds != nil {
		classifier = gate.NewCachedClassifier(classifier, rds, cfg.SensitivityCacheTTL, logger.Named("gate"))
		locker = rds
	}

	a.Catalog = chat.NewCatalog(a.Chat, cfg.UI.Greeting, cfg.UI.NewChatLabel, logger.Named("catalog"))
	a.Turns = turn.New(a.Chat, a.Catalog, gate.New(classifier, logger.Named("gate")), router, locker, logger.Named("turn"))
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// Registry registers every provider the config can reach.
func Registry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", ai.NewOllamaFactory(cfg.OllamaBaseURL, cfg.OllamaModel))
	reg.Register("openrouter", ai.NewOpenRouterFactory(
		cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel,
		cfg.OpenRouterSiteURL, cfg.OpenRouterAppName,
	))
	if cfg.OpenAIAPIKey != "" {
		reg.Register("openai", ai.NewOpenAIFactory(ai.NewOpenAIClient(cfg.OpenAIAPIKey), cfg.OpenAIModel))
	}
	return reg
}

// Classifier builds the sensitivity classifier named by SENSITIVITY_MODE.
func Classifier(cfg config.Config, logger *zap.Logger) (gate.Classifier, error) {
	switch cfg.SensitivityMode {
	case "", "keyword":
		if cfg.SensitivityPhrasesFile == "" {
			logger.Warn("no sensitivity phrase list configured, every message passes")
			return gate.NewKeywordClassifier("", nil), nil
		}
		pl, err := gate.LoadPhraseList(cfg.SensitivityPhrasesFile)
		if err != nil {
			return nil, err
		}
		return gate.NewKeywordClassifier(pl.Response, pl.Phrases), nil
	case "remote":
		if cfg.SensitivityURL == "" {
			return nil, errors.New("SENSITIVITY_URL is required for remote mode")
		}
		return gate.NewRemoteClassifier(cfg.SensitivityURL), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for openai mode")
		}
		return gate.NewLLMClassifier(ai.NewOpenAIClient(cfg.OpenAIAPIKey), cfg.SensitivityModel, ""), nil
	default:
		return nil, fmt.Errorf("unsupported SENSITIVITY_MODE=%q", cfg.SensitivityMode)
	}
}
