// Package memory keeps dock commands in process memory. Everything resets
// on restart, and every dock reads as locked again.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/solar-synergy/dockrelay/internal/relay/core"
	"github.com/solar-synergy/dockrelay/pkg/dock"
)

var _ core.Store = (*Store)(nil)

type Store struct {
	mu    sync.RWMutex
	docks map[string]*dock.Command
}

func New() *Store {
	return &Store{docks: make(map[string]*dock.Command)}
}

func (s *Store) Get(_ context.Context, dockID string) (*dock.Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cmd, ok := s.docks[dockID]
	if !ok {
		return nil, dock.ErrNotFound
	}
	return cmd.Clone(), nil
}

func (s *Store) Set(_ context.Context, req dock.WriteRequest) (*dock.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := core.ApplyWrite(s.current(req.DockID), req)
	if err != nil {
		return nil, err
	}
	s.docks[req.DockID] = next
	return next.Clone(), nil
}

func (s *Store) Ack(_ context.Context, dockID string, ack dock.Ack) (*dock.Command, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, recorded, err := core.ApplyAck(s.current(dockID), ack)
	if err != nil || !recorded {
		return next.Clone(), recorded, err
	}
	s.docks[dockID] = next
	return next.Clone(), true, nil
}

func (s *Store) List(_ context.Context) ([]*dock.Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*dock.Command, 0, len(s.docks))
	for _, cmd := range s.docks {
		out = append(out, cmd.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DockID < out[j].DockID })
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// current must be called with mu held.
func (s *Store) current(dockID string) *dock.Command {
	if cmd, ok := s.docks[dockID]; ok {
		return cmd
	}
	return dock.NewCommand(dockID)
}
