package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/justsurfingit/eis/internal/handlers"
	"github.com/justsurfingit/eis/internal/location"
	"github.com/justsurfingit/eis/internal/mail"
	"github.com/justsurfingit/eis/internal/services"
)

type RunCmd struct {
	LookbackDays int `help:"Days of mail to scan (defaults to EIS_LOOKBACK_DAYS)." name:"lookback-days"`
}

func (c *RunCmd) Run(app *App) error {
	p, err := app.buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	lookback := c.LookbackDays
	if lookback <= 0 {
		lookback = app.Config.LookbackDays
	}
	stats := p.emails.RunScraping(app.Ctx, lookback)

	enc := json.NewEncoder(app.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return err
	}
	if !stats.IsSuccess {
		return fmt.Errorf("run %s failed: %s", stats.RunID, stats.ErrorMessage)
	}
	return nil
}

type ServeCmd struct {
	Addr    string `help:"Listen address (defaults to EIS_ADDR)."`
	NoStart bool   `help:"Do not start the scheduler on boot." name:"no-start"`
}

func (c *ServeCmd) Run(app *App) error {
	p, err := app.buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	log := app.Logger
	scheduler := services.NewSchedulerService(p.emails, app.Config.LookbackDays, log)
	if !c.NoStart {
		scheduler.Start(app.Config.Period())
	}
	defer scheduler.Stop()

	var extractor handlers.JobExtractor
	if p.llm != nil {
		extractor = p.llm
	}
	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(log,
		handlers.NewServiceHandler(scheduler, app.Config.Period()),
		handlers.NewJobHandler(extractor),
	)

	addr := c.Addr
	if addr == "" {
		addr = app.Config.Addr
	}
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("control api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-app.Ctx.Done():
	}

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

type AuthCmd struct{}

func (c *AuthCmd) Run(app *App) error {
	ga := app.gmailAuth()
	if err := ga.Authorize(app.Ctx, app.In, app.Out); err != nil {
		return err
	}

	client, err := ga.Client(app.Ctx)
	if err != nil {
		return err
	}
	gm, err := mail.NewGmail(app.Ctx, client, app.Logger)
	if err != nil {
		return err
	}
	address, err := gm.Profile(app.Ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Authorized as %s. Token saved to %s\n", address, ga.TokenFile)
	return nil
}

type ParseLocationCmd struct {
	Text string `arg:"" help:"Free-text location, e.g. \"Manchester, England M1 1AA\"."`
}

func (c *ParseLocationCmd) Run(app *App) error {
	loc := location.Parse(c.Text)
	fmt.Fprintln(app.Out, loc.String())
	return nil
}
