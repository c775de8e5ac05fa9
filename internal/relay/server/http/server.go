package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/solar-synergy/dockrelay/pkg/log"
	"github.com/solar-synergy/dockrelay/pkg/options"
)

type Server struct {
	server  *http.Server
	options *options.HttpOptions
}

func NewServer(opts *options.HttpOptions, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadHeaderTimeout: opts.Timeout,
			ReadTimeout:       opts.Timeout,
			// Websocket connections outlive a single write timeout.
			IdleTimeout: 2 * opts.Timeout,
		},
		options: opts,
	}
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen(s.options.Network, s.server.Addr)
	if err != nil {
		return err
	}
	log.Info("Starting HTTP server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeout := s.options.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		log.Info("Shutting down HTTP server")
		return s.server.Shutdown(shutdownCtx)
	}
}
