// Package s3 stores one JSON object per dock in an S3 compatible bucket.
// Writes are serialised inside the process, so a bucket must be owned by a
// single relay.
package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/solar-synergy/dockrelay/internal/relay/core"
	"github.com/solar-synergy/dockrelay/pkg/dock"
)

var _ core.Store = (*Store)(nil)

type Store struct {
	bucket Bucket
	prefix string

	mu sync.Mutex
}

func New(bucket Bucket, prefix string) *Store {
	return &Store{bucket: bucket, prefix: prefix}
}

func (s *Store) key(dockID string) string {
	return s.prefix + dockID + ".json"
}

func (s *Store) Get(ctx context.Context, dockID string) (*dock.Command, error) {
	data, err := s.bucket.Get(ctx, s.key(dockID))
	if errors.Is(err, errObjectNotFound) {
		return nil, dock.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dock %s: %w", dockID, err)
	}

	var cmd dock.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("decode dock %s: %w", dockID, err)
	}
	return &cmd, nil
}

func (s *Store) Set(ctx context.Context, req dock.WriteRequest) (*dock.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.current(ctx, req.DockID)
	if err != nil {
		return nil, err
	}
	next, err := core.ApplyWrite(cur, req)
	if err != nil {
		return nil, err
	}
	if err := s.put(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) Ack(ctx context.Context, dockID string, ack dock.Ack) (*dock.Command, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.current(ctx, dockID)
	if err != nil {
		return nil, false, err
	}
	next, recorded, err := core.ApplyAck(cur, ack)
	if err != nil || !recorded {
		return next, recorded, err
	}
	if err := s.put(ctx, next); err != nil {
		return nil, false, err
	}
	return next, true, nil
}

func (s *Store) List(ctx context.Context) ([]*dock.Command, error) {
	keys, err := s.bucket.List(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("list docks: %w", err)
	}

	out := make([]*dock.Command, 0, len(keys))
	for _, k := range keys {
		id, ok := strings.CutSuffix(strings.TrimPrefix(k, s.prefix), ".json")
		if !ok || id == "" {
			continue
		}
		cmd, err := s.Get(ctx, id)
		if errors.Is(err, dock.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DockID < out[j].DockID })
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.bucket.Ping(ctx); err != nil {
		return fmt.Errorf("ping bucket: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) current(ctx context.Context, dockID string) (*dock.Command, error) {
	cmd, err := s.Get(ctx, dockID)
	if errors.Is(err, dock.ErrNotFound) {
		return dock.NewCommand(dockID), nil
	}
	return cmd, err
}

func (s *Store) put(ctx context.Context, cmd *dock.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode dock %s: %w", cmd.DockID, err)
	}
	if err := s.bucket.Put(ctx, s.key(cmd.DockID), data); err != nil {
		return fmt.Errorf("put dock %s: %w", cmd.DockID, err)
	}
	return nil
}
