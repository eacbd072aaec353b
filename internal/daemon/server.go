package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/matheus3301/chatsync/internal/remote"
	"go.uber.org/zap"
)

// DefaultAddr is where chatstubd listens unless told otherwise.
const DefaultAddr = "127.0.0.1:8080"

// Server manages the HTTP server lifecycle for the daemon.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// NewServer binds the listening socket right away so a busy port fails
// startup instead of surfacing later from a goroutine.
func NewServer(p Params, logger *zap.Logger, svc *remote.Service) (*Server, error) {
	addr := p.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Server{
		httpServer: &http.Server{Handler: svc.Handler()},
		listener:   listener,
		logger:     logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start begins serving HTTP requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.listener.Addr().String()))
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown. Hijacked WebSocket connections are
// not tracked by net/http and are closed by the broker.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
	_ = s.listener.Close()
}
