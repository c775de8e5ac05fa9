package dock

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		token   string
		want    State
		wantErr bool
	}{
		{token: "LOCK", want: StateLocked},
		{token: "UNLOCK", want: StateUnlocked},
		{token: "lock", wantErr: true},
		{token: "OPEN", wantErr: true},
		{token: "", wantErr: true},
		{token: " LOCK", wantErr: true},
		{token: "LOCKED", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseToken(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidCommand))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.token, got.Token())
		})
	}
}

func TestIsUnlockSignal(t *testing.T) {
	for _, s := range []State{StateLocked, StateUnlocked} {
		assert.Equal(t, s == StateUnlocked, IsUnlockSignal(s.Token()), s)
	}
	assert.True(t, IsUnlockSignal("xxUNLOCKxx"))
	assert.False(t, IsUnlockSignal("<!doctype html>"))
	assert.False(t, IsUnlockSignal(""))
}

func TestNormalizeDockID(t *testing.T) {
	id, err := NormalizeDockID("  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultDockID, id)

	id, err = NormalizeDockID(" bay-7 ")
	require.NoError(t, err)
	assert.Equal(t, "bay-7", id)

	for _, bad := range []string{"a/b", "a+b", "a#", "a b", strings.Repeat("x", 65)} {
		_, err := NormalizeDockID(bad)
		assert.ErrorIs(t, err, ErrInvalidDockID, bad)
	}
}

func TestCommandConvergedAndStale(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	c := NewCommand(DefaultDockID)
	assert.True(t, c.Converged())
	assert.False(t, c.Stale(now, time.Minute))

	c.State = StateUnlocked
	c.Version = 3
	c.UpdatedAt = now.Add(-2 * time.Minute)
	assert.False(t, c.Converged())
	assert.True(t, c.Stale(now, time.Minute))
	assert.False(t, c.Stale(now, 0))

	c.Applied = &Ack{State: StateUnlocked, Version: 3, AppliedAt: now}
	assert.True(t, c.Converged())

	cp := c.Clone()
	cp.Applied.Version = 1
	assert.Equal(t, uint64(3), c.Applied.Version)
}
