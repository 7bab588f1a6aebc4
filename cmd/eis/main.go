package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/justsurfingit/eis/internal/config"
)

type CLI struct {
	Verbose bool `help:"Enable debug logging." env:"EIS_VERBOSE"`
	Pretty  bool `help:"Human-readable console logs instead of JSON."`

	Run           RunCmd           `cmd:"" help:"Run one scraping pass and print its statistics."`
	Serve         ServeCmd         `cmd:"" help:"Run the scheduler and the control API."`
	Auth          AuthCmd          `cmd:"" help:"Authorize Gmail access and cache the token."`
	ParseLocation ParseLocationCmd `cmd:"" name:"parse-location" help:"Print the normalized form of a location string."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("eis"),
		kong.Description("Job alert email ingestion."),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{
		Ctx:    ctx,
		Config: cfg,
		Logger: newLogger(cfg.LogLevel, cli.Verbose, cli.Pretty),
		Out:    os.Stdout,
		In:     os.Stdin,
	}

	if err := kctx.Run(app); err != nil {
		app.Logger.Error().Err(err).Str("command", kctx.Command()).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func newLogger(level string, verbose, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}
