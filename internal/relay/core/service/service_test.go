package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solar-synergy/dockrelay/internal/relay/store/memory"
	"github.com/solar-synergy/dockrelay/pkg/dock"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu   sync.Mutex
	seen []*dock.Command
}

func (r *recorder) Notify(_ context.Context, cmd *dock.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, cmd)
	return nil
}

func (r *recorder) versions() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint64
	for _, c := range r.seen {
		out = append(out, c.Version)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	svc := New(memory.New(), Config{
		StaleAfter:   10 * time.Minute,
		DedupeWindow: 5 * time.Minute,
		Now:          clk.Now,
	})
	return svc, clk
}

func TestColdStartReadsLocked(t *testing.T) {
	svc, _ := newTestService(t)

	cmd, err := svc.GetCommand(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, dock.DefaultDockID, cmd.DockID)
	assert.Equal(t, dock.StateLocked, cmd.State)
	assert.Equal(t, uint64(0), cmd.Version)
	assert.Equal(t, dock.TokenLock, cmd.State.Token())
}

func TestSetThenGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.SetCommand(ctx, SetCommandInput{State: dock.StateUnlocked, Caller: "web"})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, uint64(1), res.Command.Version)
	assert.Equal(t, "web", res.Command.UpdatedBy)

	cmd, err := svc.GetCommand(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, dock.StateUnlocked, cmd.State)

	// Idempotent overwrite still bumps the version.
	res, err = svc.SetCommand(ctx, SetCommandInput{State: dock.StateUnlocked})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Command.Version)
	assert.Equal(t, dock.StateUnlocked, res.Command.State)
}

func TestSetCommandRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SetCommand(context.Background(), SetCommandInput{State: "OPEN"})
	assert.ErrorIs(t, err, dock.ErrInvalidCommand)

	_, err = svc.SetCommand(context.Background(), SetCommandInput{State: dock.StateLocked, DockID: "a/b"})
	assert.ErrorIs(t, err, dock.ErrInvalidDockID)

	cmds, err := svc.ListCommands(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestSetCommandIfVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetCommand(ctx, SetCommandInput{State: dock.StateUnlocked})
	require.NoError(t, err)

	v := uint64(0)
	_, err = svc.SetCommand(ctx, SetCommandInput{State: dock.StateLocked, IfVersion: &v})
	assert.ErrorIs(t, err, dock.ErrVersionConflict)

	cmd, err := svc.GetCommand(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, dock.StateUnlocked, cmd.State)
	assert.Equal(t, uint64(1), cmd.Version)
}

func TestSetCommandDedupe(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.SetCommand(ctx, SetCommandInput{State: dock.StateUnlocked, RequestID: "r-1"})
	require.NoError(t, err)

	again, err := svc.SetCommand(ctx, SetCommandInput{State: dock.StateUnlocked, RequestID: "r-1"})
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Command.Version, again.Command.Version)

	// Same id on another dock is a different request.
	other, err := svc.SetCommand(ctx, SetCommandInput{DockID: "bay-2", State: dock.StateUnlocked, RequestID: "r-1"})
	require.NoError(t, err)
	assert.False(t, other.Duplicate)

	clk.Advance(6 * time.Minute)
	later, err := svc.SetCommand(ctx, SetCommandInput{State: dock.StateUnlocked, RequestID: "r-1"})
	require.NoError(t, err)
	assert.False(t, later.Duplicate)
	assert.Equal(t, uint64(2), later.Command.Version)
}

func TestSetCommandRequestIDReusedForOtherCommand(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetCommand(ctx, SetCommandInput{State: dock.StateUnlocked, RequestID: "r-1"})
	require.NoError(t, err)

	_, err = svc.SetCommand(ctx, SetCommandInput{State: dock.StateLocked, RequestID: "r-1"})
	assert.ErrorIs(t, err, dock.ErrRequestIDReused)

	cmd, err := svc.GetCommand(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, dock.StateUnlocked, cmd.State)
	assert.Equal(t, uint64(1), cmd.Version)
}

func TestSetCommandDedupeConcurrent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SetCommand(ctx, SetCommandInput{State: dock.StateLocked, RequestID: "same"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cmd, err := svc.GetCommand(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cmd.Version)
}

func TestAck(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetCommand(ctx, SetCommandInput{State: dock.StateUnlocked})
	require.NoError(t, err)

	cmd, ok, err := svc.Ack(ctx, AckInput{State: dock.StateUnlocked, Version: 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, cmd.Converged())

	_, err = svc.SetCommand(ctx, SetCommandInput{State: dock.StateLocked})
	require.NoError(t, err)

	cmd, err = svc.GetCommand(ctx, "")
	require.NoError(t, err)
	assert.False(t, cmd.Converged())

	_, ok, err = svc.Ack(ctx, AckInput{State: dock.StateLocked, Version: 0})
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = svc.Ack(ctx, AckInput{State: dock.StateUnlocked, Version: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	cmd, err = svc.GetCommand(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cmd.Applied.Version)

	_, _, err = svc.Ack(ctx, AckInput{State: "HALF"})
	assert.ErrorIs(t, err, dock.ErrInvalidCommand)
}

func TestStaleView(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	res, err := svc.SetCommand(ctx, SetCommandInput{State: dock.StateUnlocked})
	require.NoError(t, err)
	assert.False(t, svc.View(res.Command).Stale)

	clk.Advance(11 * time.Minute)
	view := svc.View(res.Command)
	assert.True(t, view.Stale)
	assert.Equal(t, dock.TokenUnlock, view.Command, "staleness never changes the command")
}

func TestNotifiersReceiveChangesInOrder(t *testing.T) {
	svc, _ := newTestService(t)
	rec := &recorder{}
	svc.AddNotifier(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Start(ctx) }()

	for _, st := range []dock.State{dock.StateUnlocked, dock.StateLocked, dock.StateUnlocked} {
		_, err := svc.SetCommand(context.Background(), SetCommandInput{State: st})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return len(rec.versions()) == 3
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []uint64{1, 2, 3}, rec.versions())
}

func TestResolveDockID(t *testing.T) {
	svc := New(memory.New(), Config{DefaultDockID: "bay-9"})

	id, err := svc.ResolveDockID("")
	require.NoError(t, err)
	assert.Equal(t, "bay-9", id)

	id, err = svc.ResolveDockID(dock.DefaultDockID)
	require.NoError(t, err)
	assert.Equal(t, dock.DefaultDockID, id)
}

func TestDedupeCachePrunes(t *testing.T) {
	c := newDedupeCache(time.Minute)
	now := time.Now()
	c.put("a", dock.NewCommand("x"), now)
	c.put("b", dock.NewCommand("x"), now.Add(2*time.Minute))
	assert.Equal(t, 1, c.len())

	off := newDedupeCache(0)
	off.put("a", dock.NewCommand("x"), now)
	_, ok := off.get("a", now)
	assert.False(t, ok)
}
