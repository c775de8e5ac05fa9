package core

import (
	"fmt"

	"github.com/solar-synergy/dockrelay/pkg/dock"
)

// ConflictError reports a version mismatch. It matches dock.ErrVersionConflict.
type ConflictError struct {
	DockID   string
	Current  uint64
	Expected uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("dock %s: version conflict: current %d, expected %d", e.DockID, e.Current, e.Expected)
}

func (e *ConflictError) Is(target error) bool {
	return target == dock.ErrVersionConflict
}
