package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/solar-synergy/dockrelay/internal/pkg/metrics"
	"github.com/solar-synergy/dockrelay/pkg/dock"
)

// SetCommandInput is one write as received from a client.
type SetCommandInput struct {
	DockID    string
	State     dock.State
	IfVersion *uint64
	RequestID string
	Caller    string
}

// SetCommandResult is the outcome of an accepted write.
type SetCommandResult struct {
	Command *dock.Command

	// Duplicate is set when RequestID was seen before and the recorded
	// result was returned without writing.
	Duplicate bool
}

// SetCommand overwrites the command of a dock. Writes are last-writer-wins
// unless IfVersion is given.
func (s *Service) SetCommand(ctx context.Context, in SetCommandInput) (*SetCommandResult, error) {
	if !in.State.Valid() {
		metrics.CommandsTotal.WithLabelValues(string(in.State), "invalid").Inc()
		return nil, fmt.Errorf("%w: state %q", dock.ErrInvalidCommand, in.State)
	}

	dockID, err := s.ResolveDockID(in.DockID)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(string(in.State), "invalid").Inc()
		return nil, err
	}
	in.DockID = dockID

	if in.RequestID == "" {
		return s.write(ctx, in)
	}

	key := dockID + "\x00" + in.RequestID
	if cmd, ok := s.dedupe.get(key, s.cfg.Now()); ok {
		return s.duplicate(in, cmd)
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if cmd, ok := s.dedupe.get(key, s.cfg.Now()); ok {
			return s.duplicate(in, cmd)
		}
		res, err := s.write(ctx, in)
		if err != nil {
			return nil, err
		}
		s.dedupe.put(key, res.Command, s.cfg.Now())
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(*SetCommandResult)
	// Callers sharing an in-flight write may have asked for another state.
	if res.Command.State != in.State {
		return s.duplicate(in, res.Command.Clone())
	}
	return &SetCommandResult{Command: res.Command.Clone(), Duplicate: res.Duplicate}, nil
}

// duplicate answers a replayed request id with the recorded result. A replay
// carrying a different command is rejected and changes nothing.
func (s *Service) duplicate(in SetCommandInput, cmd *dock.Command) (*SetCommandResult, error) {
	if cmd.State != in.State {
		metrics.CommandsTotal.WithLabelValues(string(in.State), "conflict").Inc()
		s.log.Warn("Request id reused for a different command",
			"dockId", in.DockID, "requestId", in.RequestID, "recorded", cmd.State.Token(), "requested", in.State.Token())
		return nil, fmt.Errorf("%w: request %s on dock %s was %s", dock.ErrRequestIDReused, in.RequestID, in.DockID, cmd.State.Token())
	}
	metrics.CommandsTotal.WithLabelValues(string(in.State), "duplicate").Inc()
	s.log.Info("Duplicate command request", "dockId", in.DockID, "requestId", in.RequestID, "version", cmd.Version)
	return &SetCommandResult{Command: cmd, Duplicate: true}, nil
}

func (s *Service) write(ctx context.Context, in SetCommandInput) (*SetCommandResult, error) {
	cmd, err := s.store.Set(ctx, dock.WriteRequest{
		DockID:    in.DockID,
		State:     in.State,
		IfVersion: in.IfVersion,
		RequestID: in.RequestID,
		Caller:    in.Caller,
		At:        s.cfg.Now().UTC(),
	})
	if err != nil {
		result := "error"
		if errors.Is(err, dock.ErrVersionConflict) {
			result = "conflict"
		}
		metrics.CommandsTotal.WithLabelValues(string(in.State), result).Inc()
		return nil, fmt.Errorf("set command for dock %s: %w", in.DockID, err)
	}

	metrics.CommandsTotal.WithLabelValues(string(in.State), "accepted").Inc()
	s.log.Info("Received command",
		"dockId", cmd.DockID,
		"command", cmd.State.Token(),
		"version", cmd.Version,
		"caller", cmd.UpdatedBy,
	)

	s.enqueue(cmd)
	return &SetCommandResult{Command: cmd}, nil
}

// GetCommand returns the current command of a dock. Docks never written
// read as locked at version 0.
func (s *Service) GetCommand(ctx context.Context, dockID string) (*dock.Command, error) {
	dockID, err := s.ResolveDockID(dockID)
	if err != nil {
		return nil, err
	}

	cmd, err := s.store.Get(ctx, dockID)
	if errors.Is(err, dock.ErrNotFound) {
		return dock.NewCommand(dockID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get command for dock %s: %w", dockID, err)
	}
	return cmd, nil
}

// ListCommands returns every dock that has been written or acknowledged,
// and refreshes the stale gauge.
func (s *Service) ListCommands(ctx context.Context) ([]*dock.Command, error) {
	cmds, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}

	now := s.cfg.Now()
	stale := 0
	for _, c := range cmds {
		if c.Stale(now, s.cfg.StaleAfter) {
			stale++
		}
	}
	metrics.StaleCommands.Set(float64(stale))

	return cmds, nil
}
