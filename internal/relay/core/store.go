package core

import (
	"context"

	"github.com/solar-synergy/dockrelay/pkg/dock"
)

// Store persists the current command of every dock. Implementations must
// make Set and Ack atomic per dock.
type Store interface {
	// Get returns the stored command or dock.ErrNotFound.
	Get(ctx context.Context, dockID string) (*dock.Command, error)

	// Set applies a write. A dock with no record starts from
	// dock.NewCommand. When req.IfVersion is set and differs from the
	// current version the write fails with dock.ErrVersionConflict and
	// nothing changes. Otherwise the version is incremented.
	Set(ctx context.Context, req dock.WriteRequest) (*dock.Command, error)

	// Ack records what a controller applied. It returns the command after
	// the update and whether the ack was recorded; older acks are ignored.
	Ack(ctx context.Context, dockID string, ack dock.Ack) (*dock.Command, bool, error)

	// List returns every dock with a record, ordered by id.
	List(ctx context.Context) ([]*dock.Command, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// ApplyWrite is the write rule shared by every Store. cur must not be nil.
func ApplyWrite(cur *dock.Command, req dock.WriteRequest) (*dock.Command, error) {
	if req.IfVersion != nil && *req.IfVersion != cur.Version {
		return nil, &ConflictError{DockID: cur.DockID, Current: cur.Version, Expected: *req.IfVersion}
	}
	next := cur.Clone()
	next.State = req.State
	next.Version = cur.Version + 1
	next.UpdatedAt = req.At
	next.UpdatedBy = req.Caller
	return next, nil
}

// ApplyAck is the ack rule shared by every Store. A zero ack version means
// the controller does not track versions: it acknowledges the current
// version when the states agree and is ignored otherwise.
func ApplyAck(cur *dock.Command, ack dock.Ack) (*dock.Command, bool, error) {
	if ack.Version > cur.Version {
		return nil, false, &ConflictError{DockID: cur.DockID, Current: cur.Version, Expected: ack.Version}
	}
	if ack.Version == 0 {
		if ack.State != cur.State || cur.Version == 0 {
			return cur, false, nil
		}
		ack.Version = cur.Version
	}
	if cur.Applied != nil && ack.Version < cur.Applied.Version {
		return cur, false, nil
	}
	next := cur.Clone()
	next.Applied = &ack
	return next, true, nil
}
