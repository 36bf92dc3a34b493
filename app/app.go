// Package app sequences startup and shutdown: health endpoint, token
// check, module registration, gateway connection and cleanup.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tnicklin/vigia/discord"
	"github.com/tnicklin/vigia/logger"
	"golang.org/x/sync/errgroup"
)

// ErrMissingToken is returned when no bot token is configured.
var ErrMissingToken = errors.New("discord bot token is not set")

const defaultShutdownTimeout = 10 * time.Second

// HealthServer is the liveness endpoint.
type HealthServer interface {
	Listen() (int, error)
	Serve() error
	Close(ctx context.Context) error
}

// Bot is the gateway session modules are registered into.
type Bot interface {
	API() discord.API
	Commands() []*discord.Command
	AddModule(m discord.Module) error
	Run(ctx context.Context) error
}

// ModuleFactory builds a module bound to the session.
type ModuleFactory func(b Bot) (discord.Module, error)

// Lifecycle is implemented by modules with background work that runs
// while the bot is connected.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
}

type App struct {
	logger          logger.Logger
	health          HealthServer
	token           string
	newBot          func(token string) (Bot, error)
	modules         []ModuleFactory
	shutdownTimeout time.Duration

	releaseOnce sync.Once
	listening   bool
}

type Params struct {
	Logger logger.Logger
	// Health may be nil to run without a liveness endpoint.
	Health          HealthServer
	Token           string
	NewBot          func(token string) (Bot, error)
	Modules         []ModuleFactory
	ShutdownTimeout time.Duration
}

func New(p Params) *App {
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	timeout := p.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &App{
		logger:          log,
		health:          p.Health,
		token:           strings.TrimSpace(p.Token),
		newBot:          p.NewBot,
		modules:         p.Modules,
		shutdownTimeout: timeout,
	}
}

// Run blocks until ctx is cancelled or the bot fails. Cancellation is a
// clean shutdown and returns nil.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoW("Starting Discord bot application")

	g, gctx := errgroup.WithContext(ctx)
	a.startHealth(g)

	err := a.runBot(ctx, g, gctx)
	a.releaseHealth()
	if werr := g.Wait(); err == nil {
		err = werr
	}

	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil && !errors.Is(err, ErrMissingToken) {
		a.logger.ErrorW("error during bot startup", "error", err)
	}
	a.logger.InfoW("Discord bot application stopped")
	return err
}

func (a *App) startHealth(g *errgroup.Group) {
	if a.health == nil {
		return
	}
	port, err := a.health.Listen()
	if err != nil {
		a.logger.ErrorW("health endpoint unavailable", "error", err)
		return
	}
	a.listening = true
	a.logger.InfoW("health endpoint listening", "port", port)

	g.Go(func() error {
		if err := a.health.Serve(); err != nil {
			a.logger.ErrorW("health endpoint stopped", "error", err)
		}
		return nil
	})
}

func (a *App) releaseHealth() {
	a.releaseOnce.Do(func() {
		if !a.listening {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if err := a.health.Close(ctx); err != nil {
			a.logger.WarnW("failed to release health endpoint", "error", err)
			return
		}
		a.logger.InfoW("health endpoint released")
	})
}

// runBot authenticates, registers modules and runs the session inside g.
// It returns once the session task has been started and finished.
func (a *App) runBot(ctx context.Context, g *errgroup.Group, gctx context.Context) error {
	if a.token == "" {
		a.logger.ErrorW("Please set the DISCORD_BOT_TOKEN environment variable")
		return ErrMissingToken
	}

	bot, err := a.newBot(a.token)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	var started []Lifecycle
	defer func() {
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(); err != nil {
				a.logger.WarnW("failed to stop module", "error", err)
			}
		}
	}()

	for _, build := range a.modules {
		m, err := build(bot)
		if err != nil {
			return fmt.Errorf("build module: %w", err)
		}
		if err := bot.AddModule(m); err != nil {
			return fmt.Errorf("register %s: %w", m.Name(), err)
		}
		if lc, ok := m.(Lifecycle); ok {
			if err := lc.Start(gctx); err != nil {
				return fmt.Errorf("start %s: %w", m.Name(), err)
			}
			started = append(started, lc)
		}
		a.logger.InfoW("module loaded", "module", m.Name())
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	done := make(chan error, 1)
	g.Go(func() error {
		err := bot.Run(gctx)
		done <- err
		return err
	})
	return <-done
}

// ExitCode maps the result of Run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
