package main

import (
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/solar-synergy/dockrelay/cmd/dockctl/app"
)

func main() {
	app.NewApp().RunContext(genericapiserver.SetupSignalContext())
}
