package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/solar-synergy/dockrelay/cmd/dock-relay/app"
)

func main() {
	app.NewApp().Run()
}
