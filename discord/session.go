package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/vigia/logger"
)

// Intents requested at identify time.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsMessageContent

// Initializer prepares persistence once the gateway is ready.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Session owns the discordgo client, the command router and the
// registered modules.
type Session struct {
	cfg    Config
	dg     *discordgo.Session
	api    API
	router *Router
	store  Initializer
	logger logger.Logger

	mu         sync.Mutex
	modules    map[string]struct{}
	readyHooks []StoreReadyModule
	initOnce   sync.Once
}

type Params struct {
	Config Config
	Token  string
	Store  Initializer
	Logger logger.Logger
}

func New(p Params) (*Session, error) {
	cfg := p.Config
	cfg.Defaults()

	dg, err := discordgo.New("Bot " + p.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = Intents
	dg.StateEnabled = true
	dg.State.MaxMessageCount = cfg.MessageCacheSize

	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	api := NewAPI(dg)
	s := &Session{
		cfg:     cfg,
		dg:      dg,
		api:     api,
		router:  NewRouter(RouterParams{Prefix: cfg.Prefix, API: api, Logger: log}),
		store:   p.Store,
		logger:  log,
		modules: make(map[string]struct{}),
	}

	dg.AddHandler(s.onReady)
	dg.AddHandler(s.router.HandleMessageCreate)
	return s, nil
}

func (s *Session) API() API { return s.api }

func (s *Session) Router() *Router { return s.router }

// Commands returns every registered command.
func (s *Session) Commands() []*Command { return s.router.Commands() }

// AddModule registers m's commands and, for an EventModule, its
// gateway handlers. Module names must be unique.
func (s *Session) AddModule(m Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := m.Name()
	if _, ok := s.modules[name]; ok {
		return fmt.Errorf("module %q already registered", name)
	}

	for _, cmd := range m.Commands() {
		if err := s.router.Register(cmd); err != nil {
			return fmt.Errorf("module %s: %w", name, err)
		}
	}

	if em, ok := m.(EventModule); ok {
		for _, h := range em.Handlers() {
			s.dg.AddHandler(h)
		}
	}

	if rm, ok := m.(StoreReadyModule); ok {
		s.readyHooks = append(s.readyHooks, rm)
	}

	s.modules[name] = struct{}{}
	return nil
}

// Run connects to the gateway and blocks until ctx is cancelled, then
// disconnects.
func (s *Session) Run(ctx context.Context) error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	s.logger.InfoW("connected to discord gateway")

	<-ctx.Done()

	if err := s.dg.Close(); err != nil {
		return fmt.Errorf("close discord connection: %w", err)
	}
	s.logger.InfoW("disconnected from discord gateway")
	return nil
}

func (s *Session) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	s.ready(r.User)
}

// ready initializes persistence and notifies StoreReadyModules on the
// first ready event only, and sets the presence on every one.
func (s *Session) ready(u *discordgo.User) {
	if u != nil {
		s.logger.InfoW("bot is ready", "user", u.String(), "user_id", u.ID)
	}

	s.initOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if s.store != nil {
			if err := s.store.Initialize(ctx); err != nil {
				s.logger.ErrorW("failed to initialize database", "error", err)
				return
			}
		}

		s.mu.Lock()
		hooks := append([]StoreReadyModule(nil), s.readyHooks...)
		s.mu.Unlock()
		for _, h := range hooks {
			h.StoreReady(ctx)
		}
	})

	if err := s.api.SetWatching(s.cfg.Presence); err != nil {
		s.logger.WarnW("failed to set presence", "presence", s.cfg.Presence, "error", err)
	}
}
