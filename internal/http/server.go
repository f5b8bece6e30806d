package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server HTTP server wrapper
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates a server bound to addr
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{httpServer: s, logger: logger}
}

// Start blocks serving requests; a graceful Stop is not an error
func (s *Server) Start() error {
	s.logger.Info("Starting couplecare-crisis HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping couplecare-crisis HTTP server")
	return s.httpServer.Shutdown(ctx)
}
