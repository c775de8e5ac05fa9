package core

import (
	"context"

	"github.com/solar-synergy/dockrelay/pkg/dock"
)

// Notifier is told about every accepted write and recorded ack. Failures are
// logged by the caller and never undo the change.
type Notifier interface {
	Notify(ctx context.Context, cmd *dock.Command) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, cmd *dock.Command) error

func (f NotifierFunc) Notify(ctx context.Context, cmd *dock.Command) error {
	return f(ctx, cmd)
}
