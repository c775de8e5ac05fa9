package relay

import (
	"context"

	"github.com/solar-synergy/dockrelay/internal/relay/core"
	"github.com/solar-synergy/dockrelay/internal/relay/server"
	"github.com/solar-synergy/dockrelay/pkg/log"
)

// RelayServer is the assembled daemon.
type RelayServer struct {
	serverManager *server.Manager
	store         core.Store
}

// Run blocks until ctx is done or a server fails.
func (s *RelayServer) Run(ctx context.Context) error {
	defer func() {
		if err := s.store.Close(); err != nil {
			log.Error(err, "Failed to close command store")
		}
	}()

	log.Info("Dock relay running")
	return s.serverManager.Start(ctx)
}
