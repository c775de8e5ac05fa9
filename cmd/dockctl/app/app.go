package app

import (
	"errors"

	"github.com/solar-synergy/dockrelay/cmd/dockctl/app/options"
	"github.com/solar-synergy/dockrelay/internal/issuer"
	"github.com/solar-synergy/dockrelay/pkg/app"
	"github.com/solar-synergy/dockrelay/pkg/dock"
	"github.com/solar-synergy/dockrelay/pkg/log"
)

const (
	commandName = "dockctl"
	commandDesc = `dockctl commands charging docks through a dock relay.

Every write is sent exactly once with a fresh request id; a failed write is
reported and never retried automatically.`
)

func NewApp() *app.App {
	opts := options.NewCtlOptions()
	return app.NewApp(
		commandName,
		"Command charging docks through a dock relay",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithCommands(
			newCommandCmd(opts, dock.StateLocked),
			newCommandCmd(opts, dock.StateUnlocked),
			newGetCmd(opts),
			newStatusCmd(opts),
			newWatchCmd(opts),
			newAckCmd(opts),
			newTokenCmd(opts),
			newHealthCmd(opts),
		),
	)
}

func newClient(opts *options.CtlOptions, onTransition issuer.TransitionFunc) (*issuer.Client, error) {
	o := opts.ClientOptions
	return issuer.New(issuer.Config{
		BaseURL:      o.Server,
		Path:         o.Path,
		DockID:       o.DockID,
		Token:        o.Token,
		Timeout:      o.Timeout,
		LegacyProbe:  o.LegacyProbe,
		OnTransition: onTransition,
	})
}

// userError logs err in full and returns the short message for the person
// at the terminal.
func userError(err error, msg string) error {
	log.Debug(msg, "error", err)
	return errors.New(issuer.UserMessage(err))
}
