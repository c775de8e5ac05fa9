// Package storetest holds the behaviour every core.Store must show.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solar-synergy/dockrelay/internal/relay/core"
	"github.com/solar-synergy/dockrelay/pkg/dock"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) core.Store

// Run exercises newStore against the store contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s core.Store)
	}{
		{"unknown dock is not found", testNotFound},
		{"write increments version", testWriteIncrementsVersion},
		{"if-version conflict leaves store unchanged", testIfVersion},
		{"ack does not regress", testAck},
		{"list is ordered", testList},
		{"concurrent writes are serialised", testConcurrentWrites},
		{"ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

var at = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func write(t *testing.T, s core.Store, id string, st dock.State) *dock.Command {
	t.Helper()
	cmd, err := s.Set(context.Background(), dock.WriteRequest{DockID: id, State: st, Caller: "test", At: at})
	require.NoError(t, err)
	return cmd
}

func testNotFound(t *testing.T, s core.Store) {
	_, err := s.Get(context.Background(), "bay-x")
	assert.ErrorIs(t, err, dock.ErrNotFound)
}

func testWriteIncrementsVersion(t *testing.T, s core.Store) {
	ctx := context.Background()

	first := write(t, s, "bay-1", dock.StateUnlocked)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, dock.StateUnlocked, first.State)
	assert.Equal(t, "test", first.UpdatedBy)
	assert.True(t, at.Equal(first.UpdatedAt))

	second := write(t, s, "bay-1", dock.StateUnlocked)
	assert.Equal(t, uint64(2), second.Version)

	third := write(t, s, "bay-1", dock.StateLocked)
	assert.Equal(t, uint64(3), third.Version)

	got, err := s.Get(ctx, "bay-1")
	require.NoError(t, err)
	assert.Equal(t, dock.StateLocked, got.State)
	assert.Equal(t, uint64(3), got.Version)
}

func testIfVersion(t *testing.T, s core.Store) {
	ctx := context.Background()
	write(t, s, "bay-1", dock.StateUnlocked)

	wrong := uint64(7)
	_, err := s.Set(ctx, dock.WriteRequest{DockID: "bay-1", State: dock.StateLocked, IfVersion: &wrong, At: at})
	assert.ErrorIs(t, err, dock.ErrVersionConflict)

	got, err := s.Get(ctx, "bay-1")
	require.NoError(t, err)
	assert.Equal(t, dock.StateUnlocked, got.State)
	assert.Equal(t, uint64(1), got.Version)

	right := uint64(1)
	next, err := s.Set(ctx, dock.WriteRequest{DockID: "bay-1", State: dock.StateLocked, IfVersion: &right, At: at})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Version)

	zero := uint64(0)
	created, err := s.Set(ctx, dock.WriteRequest{DockID: "bay-new", State: dock.StateUnlocked, IfVersion: &zero, At: at})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.Version)
}

func testAck(t *testing.T, s core.Store) {
	ctx := context.Background()
	write(t, s, "bay-1", dock.StateUnlocked)
	write(t, s, "bay-1", dock.StateLocked)

	cmd, ok, err := s.Ack(ctx, "bay-1", dock.Ack{State: dock.StateLocked, Version: 2, AppliedAt: at})
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cmd.Converged())

	cmd, ok, err = s.Ack(ctx, "bay-1", dock.Ack{State: dock.StateUnlocked, Version: 1, AppliedAt: at})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(2), cmd.Applied.Version)

	_, _, err = s.Ack(ctx, "bay-1", dock.Ack{State: dock.StateLocked, Version: 9, AppliedAt: at})
	assert.ErrorIs(t, err, dock.ErrVersionConflict)

	got, err := s.Get(ctx, "bay-1")
	require.NoError(t, err)
	require.NotNil(t, got.Applied)
	assert.Equal(t, uint64(2), got.Applied.Version)
	assert.Equal(t, dock.StateLocked, got.Applied.State)
}

func testList(t *testing.T, s core.Store) {
	cmds, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cmds)

	write(t, s, "bay-2", dock.StateUnlocked)
	write(t, s, "bay-1", dock.StateLocked)

	cmds, err = s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "bay-1", cmds[0].DockID)
	assert.Equal(t, "bay-2", cmds[1].DockID)
}

func testConcurrentWrites(t *testing.T, s core.Store) {
	const n = 20

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := dock.StateLocked
			if i%2 == 0 {
				st = dock.StateUnlocked
			}
			_, err := s.Set(context.Background(), dock.WriteRequest{DockID: "bay-c", State: st, At: at})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(context.Background(), "bay-c")
	require.NoError(t, err)
	assert.Equal(t, uint64(n), got.Version)
}

func testPing(t *testing.T, s core.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}
