package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solar-synergy/dockrelay/pkg/dock"
)

func TestApplyWrite(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	cur := dock.NewCommand("bay-1")

	next, err := ApplyWrite(cur, dock.WriteRequest{DockID: "bay-1", State: dock.StateUnlocked, At: at, Caller: "op"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next.Version)
	assert.Equal(t, dock.StateUnlocked, next.State)
	assert.Equal(t, at, next.UpdatedAt)
	assert.Equal(t, "op", next.UpdatedBy)
	assert.Equal(t, uint64(0), cur.Version, "input must not be mutated")

	stale := uint64(0)
	_, err = ApplyWrite(next, dock.WriteRequest{State: dock.StateLocked, IfVersion: &stale})
	assert.ErrorIs(t, err, dock.ErrVersionConflict)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, uint64(1), conflict.Current)
}

func TestApplyAck(t *testing.T) {
	cur := &dock.Command{DockID: "bay-1", State: dock.StateUnlocked, Version: 3}

	_, _, err := ApplyAck(cur, dock.Ack{State: dock.StateUnlocked, Version: 4})
	assert.ErrorIs(t, err, dock.ErrVersionConflict)

	next, ok, err := ApplyAck(cur, dock.Ack{State: dock.StateUnlocked, Version: 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), next.Applied.Version)

	_, ok, err = ApplyAck(cur, dock.Ack{State: dock.StateLocked, Version: 0})
	require.NoError(t, err)
	assert.False(t, ok)

	older, ok, err := ApplyAck(next, dock.Ack{State: dock.StateLocked, Version: 2})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(3), older.Applied.Version)
}
