package dock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State is the commanded position of a dock latch.
type State string

const (
	StateLocked   State = "LOCKED"
	StateUnlocked State = "UNLOCKED"
)

// Wire tokens. These are the literal strings exchanged with browsers and
// embedded pollers. Changing them breaks deployed firmware.
const (
	TokenLock   = "LOCK"
	TokenUnlock = "UNLOCK"
)

// DefaultDockID addresses the single dock known to legacy clients that do
// not send a dock identifier.
const DefaultDockID = "ETP-G17-HUB"

// DefaultState is what a dock reads as before any write.
const DefaultState = StateLocked

var (
	ErrInvalidCommand  = errors.New("invalid command")
	ErrInvalidDockID   = errors.New("invalid dock id")
	ErrVersionConflict = errors.New("version conflict")
	ErrNotFound        = errors.New("dock not found")

	// ErrRequestIDReused rejects a request id replayed with another command.
	ErrRequestIDReused = errors.New("request id already used for a different command")
)

// ParseToken maps a wire token to a State. Matching is exact: "lock",
// " LOCK" or "LOCKED" are rejected.
func ParseToken(token string) (State, error) {
	switch token {
	case TokenLock:
		return StateLocked, nil
	case TokenUnlock:
		return StateUnlocked, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCommand, token)
}

// Token renders the state as its wire token.
func (s State) Token() string {
	if s == StateUnlocked {
		return TokenUnlock
	}
	return TokenLock
}

func (s State) Valid() bool {
	return s == StateLocked || s == StateUnlocked
}

func (s State) String() string {
	return string(s)
}

// IsUnlockSignal reports whether a poll body would make the controller
// firmware release the latch. The firmware does a substring match, so this
// does too.
func IsUnlockSignal(body string) bool {
	return strings.Contains(body, TokenUnlock)
}

// NormalizeDockID trims the id and falls back to DefaultDockID when empty.
func NormalizeDockID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultDockID, nil
	}
	if len(id) > 64 {
		return "", fmt.Errorf("%w: longer than 64 characters", ErrInvalidDockID)
	}
	for _, r := range id {
		if r <= ' ' || r > '~' || r == '/' || r == '+' || r == '#' {
			return "", fmt.Errorf("%w: %q", ErrInvalidDockID, id)
		}
	}
	return id, nil
}

// Ack is the state a controller reports it has physically applied.
type Ack struct {
	State     State     `json:"state"`
	Version   uint64    `json:"version"`
	AppliedAt time.Time `json:"appliedAt"`
}

// Command is the stored command for one dock.
type Command struct {
	DockID    string    `json:"dockId"`
	State     State     `json:"state"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	Applied   *Ack      `json:"applied,omitempty"`
}

// NewCommand returns the cold-start command for a dock.
func NewCommand(dockID string) *Command {
	return &Command{
		DockID: dockID,
		State:  DefaultState,
	}
}

// Clone returns a deep copy safe to hand out of a store.
func (c *Command) Clone() *Command {
	if c == nil {
		return nil
	}
	out := *c
	if c.Applied != nil {
		ack := *c.Applied
		out.Applied = &ack
	}
	return &out
}

// Converged reports whether the controller acknowledged the latest write.
func (c *Command) Converged() bool {
	if c.Applied == nil {
		return c.Version == 0
	}
	return c.Applied.Version >= c.Version && c.Applied.State == c.State
}

// Stale reports whether the command is older than window. A zero window
// disables staleness. Docks never written are not stale.
func (c *Command) Stale(now time.Time, window time.Duration) bool {
	if window <= 0 || c.UpdatedAt.IsZero() {
		return false
	}
	return now.Sub(c.UpdatedAt) > window
}

// WriteRequest is a single set operation as seen by the store.
type WriteRequest struct {
	DockID    string
	State     State
	IfVersion *uint64
	RequestID string
	Caller    string
	At        time.Time
}
