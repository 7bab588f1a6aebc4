package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/justsurfingit/eis/internal/auth"
	"github.com/justsurfingit/eis/internal/config"
	"github.com/justsurfingit/eis/internal/database"
	"github.com/justsurfingit/eis/internal/mail"
	"github.com/justsurfingit/eis/internal/network"
	"github.com/justsurfingit/eis/internal/notify"
	"github.com/justsurfingit/eis/internal/parser"
	"github.com/justsurfingit/eis/internal/scraper"
	"github.com/justsurfingit/eis/internal/services"
)

// App is passed to every command's Run method.
type App struct {
	Ctx    context.Context
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
	In     io.Reader
}

// pipeline holds the wired ingestion service and whatever must be closed
// when the command exits.
type pipeline struct {
	emails  *services.EmailService
	llm     *services.LLMService
	closers []func() error
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		_ = p.closers[i]()
	}
}

func (a *App) gmailAuth() auth.GmailAuth {
	return auth.GmailAuth{
		CredentialsFile: a.Config.GmailCredentialsFile,
		TokenFile:       a.Config.GmailTokenFile,
	}
}

func (a *App) buildPipeline() (*pipeline, error) {
	cfg, log, ctx := a.Config, a.Logger, a.Ctx
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := services.ParseUnmatchedPolicy(cfg.OnUnmatchedSender)
	if err != nil {
		return nil, err
	}

	p := &pipeline{}
	ok := false
	defer func() {
		if !ok {
			p.Close()
		}
	}()

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	p.closers = append(p.closers, sqlDB.Close)
	repo := database.NewRepository(db)

	httpClient, err := a.gmailAuth().Client(ctx)
	if errors.Is(err, auth.ErrNoToken) {
		return nil, fmt.Errorf("%w: run `eis auth` first", err)
	}
	if err != nil {
		return nil, err
	}
	transport, err := mail.NewGmail(ctx, httpClient, log.With().Str("component", "gmail").Logger())
	if err != nil {
		return nil, err
	}

	web, err := network.NewClient(cfg.HTTPTimeoutSeconds)
	if err != nil {
		return nil, err
	}
	indeed := parser.NewIndeedResolver(web, cfg.ResolveBackoff(), log.With().Str("component", "indeed").Logger())

	var extractor scraper.Extractor
	if cfg.GeminiAPIKey != "" {
		p.llm, err = services.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		extractor = p.llm
	} else {
		log.Info().Msg("GEMINI_API_KEY not set, deep scrapes run without llm fallback")
	}
	registry := scraper.NewRegistry(web, extractor, cfg.IndeedBaseURL, log.With().Str("component", "scraper").Logger())

	notifiers, err := a.notifiers(p)
	if err != nil {
		return nil, err
	}

	p.emails = services.NewEmailService(repo, transport, indeed, registry, services.EmailConfig{
		AlertSenders: cfg.AlertSenders,
		InboxOnly:    cfg.InboxOnly,
		OnUnmatched:  policy,
	}, log, notifiers...)
	ok = true
	return p, nil
}

func (a *App) notifiers(p *pipeline) ([]notify.Notifier, error) {
	var out []notify.Notifier
	if a.Config.RedisURL != "" {
		rdb, err := notify.NewRedisClient(a.Ctx, a.Config.RedisURL)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, rdb.Close)
		out = append(out, notify.NewRedisNotifier(rdb))
	}
	if a.Config.TelegramToken != "" {
		bot, err := notify.NewTelegramBot(a.Config.TelegramToken)
		if err != nil {
			return nil, err
		}
		out = append(out, notify.NewTelegramNotifier(bot, a.Config.TelegramChatID))
	}
	return out, nil
}
