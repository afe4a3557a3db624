package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/maine/news_digest/internal/app"
	"github.com/maine/news_digest/internal/config"
	"github.com/maine/news_digest/internal/delivery"
	"github.com/maine/news_digest/internal/filter"
	"github.com/maine/news_digest/internal/formatter"
	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/mailer"
	"github.com/maine/news_digest/internal/news"
	"github.com/maine/news_digest/internal/sources"
	"github.com/maine/news_digest/internal/state"
	"github.com/maine/news_digest/internal/summarizer"
	"github.com/maine/news_digest/internal/telegram"
)

// environment - загруженная конфигурация процесса.
type environment struct {
	cfg     config.Root
	secrets config.EnvConfig
	log     *slog.Logger
}

// ledgerStore - то, что CLI требует от хранилища журнала.
type ledgerStore interface {
	app.LedgerStore
	Prune(ctx context.Context, keepDays int) (int, error)
	Stats(ctx context.Context, day time.Time) (news.LedgerStats, error)
}

var (
	_ ledgerStore = (*state.FileStore)(nil)
	_ ledgerStore = (*state.SQLiteStore)(nil)
)

// loadEnv читает .env, YAML и переменные окружения. validate включает проверку секретов.
func loadEnv(flags *rootFlags, validate bool) (*environment, error) {
	if err := config.LoadDotEnv(flags.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadRoot(flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	secrets := config.LoadEnvConfig()

	log := logger.Init(flags.debug || cfg.Debug)

	if validate {
		if err := config.Validate(cfg, secrets); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return &environment{cfg: cfg, secrets: secrets, log: log}, nil
}

func openStore(cfg config.Root, log *slog.Logger) (ledgerStore, func() error, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerSQLite:
		store, err := state.OpenSQLite(cfg.Ledger.Path, cfg.Ledger.KeepDays, time.Now, log)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.LedgerFile, "":
		store := state.NewFileStore(cfg.Ledger.Path, cfg.Ledger.KeepDays, time.Now, log)
		return store, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func buildProviders(env *environment) []app.Provider {
	httpClient := &http.Client{Timeout: env.cfg.Fetch.Timeout}
	perQuery := env.cfg.Fetch.MaxPerQuery

	var providers []app.Provider
	if env.secrets.HasNaver() {
		providers = append(providers, sources.NewNaver(sources.NaverConfig{
			ClientID:     env.secrets.NaverClientID,
			ClientSecret: env.secrets.NaverClientSecret,
			MaxPerQuery:  perQuery,
			HTTPClient:   httpClient,
		}))
	} else {
		env.log.Warn("naver credentials missing, provider disabled")
	}

	providers = append(providers,
		sources.NewGoogleNews(sources.GoogleNewsConfig{
			MaxPerQuery: perQuery,
			HTTPClient:  httpClient,
		}),
		sources.NewBBC(sources.BBCConfig{
			Feeds:      env.cfg.Fetch.BBCFeeds,
			Aliases:    env.cfg.Fetch.KeywordAliases,
			HTTPClient: httpClient,
			Logger:     env.log,
		}),
	)
	return providers
}

func buildSummarizer(ctx context.Context, env *environment) (delivery.Summarizer, error) {
	sc := env.cfg.Summary

	var client summarizer.Client
	switch sc.Provider {
	case config.SummaryNone:
		env.log.Info("summarization disabled")
		return nil, nil
	case config.SummaryGemini:
		c, err := summarizer.NewGeminiClient(ctx, env.secrets.GeminiAPIKey, sc.Model)
		if err != nil {
			return nil, err
		}
		client = c
	default:
		c, err := summarizer.NewOpenAIClient(summarizer.OpenAIConfig{
			APIKey: env.secrets.OpenAIAPIKey,
			Model:  sc.Model,
		})
		if err != nil {
			return nil, err
		}
		client = c
	}

	return summarizer.New(client, summarizer.Config{
		MaxAttempts: sc.MaxAttempts,
		BaseDelay:   sc.BaseDelay,
		MaxChars:    sc.MaxChars,
	}, env.log), nil
}

func buildChannels(env *environment) ([]delivery.Channel, error) {
	dc := env.cfg.Delivery
	mailCfg := mailer.Config{
		Host:        dc.SMTPHost,
		Port:        dc.SMTPPort,
		Username:    env.secrets.GmailAddress,
		Password:    env.secrets.GmailAppPassword,
		To:          env.secrets.Recipients,
		Timeout:     dc.Timeout,
		MaxAttempts: dc.MaxAttempts,
		RetryDelay:  dc.RetryDelay,
	}
	smtpClient, err := mailer.NewClient(mailCfg)
	if err != nil {
		return nil, err
	}
	channels := []delivery.Channel{mailer.New(smtpClient, mailCfg, env.log)}

	if chats := config.TelegramChats(env.cfg, env.secrets); len(chats) > 0 {
		tg := telegram.NewClient(env.secrets.TelegramBotToken, "")
		channels = append(channels, telegram.NewSender(tg, chats, env.log))
		env.log.Info("telegram channel enabled", "chats", len(chats))
	}
	return channels, nil
}

func buildPipeline(ctx context.Context, env *environment, store app.LedgerStore) (*app.Pipeline, error) {
	sum, err := buildSummarizer(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("summarizer: %w", err)
	}
	channels, err := buildChannels(env)
	if err != nil {
		return nil, fmt.Errorf("delivery channels: %w", err)
	}

	deliverer := delivery.New(delivery.Config{
		Summarizer:     sum,
		Renderer:       formatter.NewRenderer(time.Now, env.cfg.Delivery.MaxTelegramMessages),
		Channels:       channels,
		NativeLanguage: env.cfg.Summary.NativeLanguage,
	}, env.log)

	return app.NewPipeline(app.PipelineDeps{
		Providers:    buildProviders(env),
		Keywords:     env.cfg.Keywords,
		Store:        store,
		Filter:       filter.New(env.log),
		Deliverer:    deliverer,
		Logger:       env.log,
		FetchTimeout: env.cfg.Fetch.Timeout,
		FetchCeiling: env.cfg.Fetch.Ceiling,
		Parallelism:  env.cfg.Fetch.Parallelism,
	}), nil
}
