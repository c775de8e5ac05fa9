package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/solar-synergy/dockrelay/cmd/dock-relay/app/options"
	"github.com/solar-synergy/dockrelay/pkg/app"
	"github.com/solar-synergy/dockrelay/pkg/log"
)

const (
	commandName = "dock-relay"
	commandDesc = `The dock relay stores the latest LOCK/UNLOCK command for each charging
dock and serves it to web clients and polling dock controllers.

Clients POST {"command":"LOCK"|"UNLOCK"} to the relay path; controllers GET
the same path and receive the bare token. Commands are optionally pushed
over MQTT and websockets, and controllers may acknowledge what they applied.`
)

func NewApp() *app.App {
	opts := options.NewRelayOptions()
	return app.NewApp(
		commandName,
		"Launch the dock command relay",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.RelayOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewRelayServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create relay server: %w", err)
		}

		log.Info("Starting dock relay", "store", opts.StoreOptions.Backend, "path", opts.RelayOptions.Path)
		return server.Run(ctx)
	}
}
