// Package hub is the coordination service: it owns the websocket endpoint,
// the peer registry, presence propagation, share fan-out and chat session
// negotiation, plus the small HTTP API fronting the content store.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"flowshare/internal/chat"
	"flowshare/internal/identity"
	"flowshare/internal/registry"
	"flowshare/internal/share"
	"flowshare/internal/store"
)

type Config struct {
	Addr   string
	Store  *store.Store
	Logger *slog.Logger
}

type Server struct {
	config   Config
	logger   *slog.Logger
	listener net.Listener
	httpSrv  *http.Server

	registry *registry.Registry
	sessions *chat.Sessions
	broker   *share.Broker
	store    *store.Store
}

func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	reg := registry.NewRegistry(identity.NewAssigner(), logger)
	sessions := chat.NewSessions(logger)
	reg.OnEvict(sessions.DropPeer)

	s := &Server{
		config:   cfg,
		logger:   logger,
		listener: listener,
		registry: reg,
		sessions: sessions,
		broker:   share.NewBroker(reg, logger),
		store:    cfg.Store,
	}
	s.httpSrv = &http.Server{Handler: s.routes()}

	return s, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Hub started", "addr", s.Addr())

	go func() {
		<-ctx.Done()
		_ = s.httpSrv.Close()
	}()

	err := s.httpSrv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	return err
}

func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down hub")
	return s.httpSrv.Close()
}
