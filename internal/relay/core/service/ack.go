package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/solar-synergy/dockrelay/internal/pkg/metrics"
	"github.com/solar-synergy/dockrelay/pkg/dock"
)

// AckInput is a controller's report of what it applied.
type AckInput struct {
	DockID  string
	State   dock.State
	Version uint64
	Source  string
}

// Ack records a controller acknowledgement. It returns the command after
// the update and whether the ack was recorded. Acks older than the last
// recorded one are ignored.
func (s *Service) Ack(ctx context.Context, in AckInput) (*dock.Command, bool, error) {
	if !in.State.Valid() {
		metrics.AcksTotal.WithLabelValues("invalid").Inc()
		return nil, false, fmt.Errorf("%w: state %q", dock.ErrInvalidCommand, in.State)
	}

	dockID, err := s.ResolveDockID(in.DockID)
	if err != nil {
		metrics.AcksTotal.WithLabelValues("invalid").Inc()
		return nil, false, err
	}

	cmd, recorded, err := s.store.Ack(ctx, dockID, dock.Ack{
		State:     in.State,
		Version:   in.Version,
		AppliedAt: s.cfg.Now().UTC(),
	})
	if err != nil {
		result := "error"
		if errors.Is(err, dock.ErrVersionConflict) {
			result = "conflict"
		}
		metrics.AcksTotal.WithLabelValues(result).Inc()
		return nil, false, fmt.Errorf("ack dock %s: %w", dockID, err)
	}

	if !recorded {
		metrics.AcksTotal.WithLabelValues("ignored").Inc()
		s.log.Debug("Ignored outdated ack", "dockId", dockID, "version", in.Version, "source", in.Source)
		return cmd, false, nil
	}

	metrics.AcksTotal.WithLabelValues("recorded").Inc()
	s.log.Info("Controller acknowledged command",
		"dockId", dockID,
		"state", cmd.Applied.State,
		"version", cmd.Applied.Version,
		"converged", cmd.Converged(),
		"source", in.Source,
	)

	s.enqueue(cmd)
	return cmd, true, nil
}
