// Command chattyctl inspects and administers a chatty profile.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/matheus3301/chatty/internal/profile"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "chattyctl",
		Usage: "inspect and administer a chatty profile",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profile",
				Usage:   "profile name (overrides config default)",
				EnvVars: []string{"CHATTY_PROFILE"},
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "output in JSON format",
			},
		},
		Before: func(c *cli.Context) error {
			_, err := profile.Resolve(c.String("profile"))
			return err
		},
		Commands: []*cli.Command{
			normalizeCommand,
			detectCommand,
			statusCommand,
			chatsCommand,
			enableCommand,
			pairCommand,
		},
	}
}

// profileName is only called after Before has checked the selection.
func profileName(c *cli.Context) string {
	sel, _ := profile.Resolve(c.String("profile"))
	return sel.Name
}
