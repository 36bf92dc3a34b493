package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tnicklin/vigia/activity"
	"github.com/tnicklin/vigia/app"
	"github.com/tnicklin/vigia/clock"
	"github.com/tnicklin/vigia/config"
	"github.com/tnicklin/vigia/discord"
	"github.com/tnicklin/vigia/health"
	"github.com/tnicklin/vigia/logger"
	"github.com/tnicklin/vigia/mentions"
	"github.com/tnicklin/vigia/servermgmt"
	"github.com/tnicklin/vigia/store"
	"github.com/tnicklin/vigia/utilities"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	params, err := build()
	if err != nil {
		log.Printf("startup: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, params)
	stop()
	os.Exit(app.ExitCode(err))
}

type runParams struct {
	Config *config.AppConfig
	Logger *logger.DefaultLogger
	Token  string
}

func build() (runParams, error) {
	files := []string{"config/config.yaml", "config/secrets.yaml"}
	if p := strings.TrimSpace(os.Getenv(config.EnvConfigPath)); p != "" {
		files = append(files, p)
	}

	cfg, err := config.LoadWithDefaults(files...)
	if err != nil {
		return runParams{}, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return runParams{}, fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return runParams{}, fmt.Errorf("initialize logger: %w", err)
	}

	token := strings.TrimSpace(os.Getenv(config.EnvToken))
	if token == "" {
		token = cfg.Discord.Token
	}

	return runParams{Config: cfg, Logger: appLogger, Token: token}, nil
}

// run wires the components and blocks until shutdown.
func run(ctx context.Context, p runParams) error {
	defer p.Logger.Sync()
	cfg := p.Config

	clk, stopClock := clock.Start(ctx, cfg.Clock, p.Logger.Named("clock"))
	defer stopClock()

	st := store.NewSQLiteStore(store.Params{Path: cfg.Store.Path, Logger: p.Logger.Named("store")})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.Shutdown(shutdownCtx); err != nil {
			p.Logger.ErrorW("store shutdown", "error", err)
		}
	}()

	tiers := cfg.Tiers()

	a := app.New(app.Params{
		Logger: p.Logger,
		Health: health.New(health.Params{Config: cfg.Health, Logger: p.Logger.Named("health")}),
		Token:  p.Token,
		NewBot: func(token string) (app.Bot, error) {
			session, err := discord.New(discord.Params{
				Config: cfg.Discord,
				Token:  token,
				Store:  st,
				Logger: p.Logger.Named("discord"),
			})
			if err != nil {
				return nil, err
			}
			return session, nil
		},
		Modules: []app.ModuleFactory{
			func(b app.Bot) (discord.Module, error) {
				return mentions.New(mentions.Params{
					Config: cfg.Mentions,
					Prefix: cfg.Discord.Prefix,
					API:    b.API(),
					Store:  st,
					Clock:  clk,
					Colors: cfg.Colors,
					Tiers:  tiers,
					Logger: p.Logger.Named("mentions"),
				}), nil
			},
			func(b app.Bot) (discord.Module, error) {
				return servermgmt.New(servermgmt.Params{
					Media:      cfg.Media,
					API:        b.API(),
					Store:      st,
					Clock:      clk,
					Colors:     cfg.Colors,
					Tiers:      tiers,
					TimeFormat: cfg.TimeFormat,
					Logger:     p.Logger.Named("servermgmt"),
				}), nil
			},
			func(b app.Bot) (discord.Module, error) {
				return utilities.New(utilities.Params{
					API:        b.API(),
					Clock:      clk,
					Colors:     cfg.Colors,
					TimeFormat: cfg.TimeFormat,
					Commands:   b.Commands,
					Logger:     p.Logger.Named("utilities"),
				}), nil
			},
			func(b app.Bot) (discord.Module, error) {
				return activity.New(activity.Params{
					Config:     cfg.Activity,
					API:        b.API(),
					Store:      st,
					Clock:      clk,
					Colors:     cfg.Colors,
					Tiers:      tiers,
					TimeFormat: cfg.TimeFormat,
					Logger:     p.Logger.Named("activity"),
				}), nil
			},
		},
		ShutdownTimeout: shutdownTimeout,
	})

	return a.Run(ctx)
}
