package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sagespace/council/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "sagespace",
		Usage:   "Multi-agent council deliberation and voting engine",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: ./sagespace.toml)",
			},
		},
		Commands: []*cli.Command{
			cmd.APICommand(),
			cmd.RunCommand(),
			cmd.CollabCommand(),
			cmd.ConfigCommand(),
			cmd.EnvCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
