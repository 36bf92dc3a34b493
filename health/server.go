package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tnicklin/vigia/logger"
)

// Body is the response text of every health route.
const Body = "Discord Bot is running"

// ErrNotListening is returned by Serve when Listen has not bound a port.
var ErrNotListening = errors.New("health server is not listening")

// Handler serves GET / and GET /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleHealth)
	mux.HandleFunc("GET /health", handleHealth)
	return mux
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(Body))
}

// Server is the liveness endpoint. Listen binds, Serve blocks until
// Close, and Close releases the socket exactly once.
type Server struct {
	cfg        Config
	negotiator *Negotiator
	logger     logger.Logger

	mu         sync.Mutex
	listener   net.Listener
	port       int
	httpServer *http.Server

	closeOnce sync.Once
	closeErr  error
}

type Params struct {
	Config Config
	Logger logger.Logger
	// Listen overrides net.Listen.
	Listen ListenFunc
}

func New(p Params) *Server {
	cfg := p.Config
	cfg.Defaults()
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		cfg: cfg,
		negotiator: NewNegotiator(NegotiatorParams{
			Host:   cfg.Host,
			Listen: p.Listen,
			Logger: log,
		}),
		logger: log,
		httpServer: &http.Server{
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Listen negotiates a port and binds it. It returns the bound port.
func (s *Server) Listen() (int, error) {
	preferred, err := s.cfg.PreferredPort()
	if err != nil {
		return 0, err
	}

	ln, port, err := s.negotiator.Bind(Candidates(preferred))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.listener = ln
	s.port = port
	s.mu.Unlock()

	s.logger.InfoW("web server listening", "addr", ln.Addr().String(), "port", port)
	return port, nil
}

// Port returns the bound port, or 0.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Addr returns the bound listener address, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve handles requests until Close is called.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts the server down and releases the listener. Later calls
// return the result of the first.
func (s *Server) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()

		err := s.httpServer.Shutdown(ctx)
		if ln != nil {
			if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
				err = cerr
			}
		}
		s.closeErr = err
	})
	return s.closeErr
}
