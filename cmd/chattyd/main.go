package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/matheus3301/chatty/internal/daemon"
	"github.com/matheus3301/chatty/internal/logging"
	"github.com/matheus3301/chatty/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	levelFlag := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	sel, err := profile.Resolve(*profileFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	name := sel.Name

	app := fx.New(
		daemon.Module(daemon.Params{
			Profile: name,
			Paths:   profile.For(name),
			Logging: logging.Options{Level: logging.ParseLevel(*levelFlag)},
		}),
	)

	app.Run()
}
