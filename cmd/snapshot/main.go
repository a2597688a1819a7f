package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx := context.Background()

	appl := &cli.Command{
		Name:   "trustcenter-snapshot",
		Usage:  "Load FedRAMP 20x validation artifacts once and print the normalized snapshot",
		Writer: os.Stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config.yaml (defaults to ./config.yaml or ./configs/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Read artifacts from a local directory instead of source.base_url",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Base URL the artifacts are published under",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: json, summary",
				Value:   formatJSON,
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Indent JSON output",
			},
			&cli.FloatFlag{
				Name:  "fail-under",
				Usage: "Exit with code 2 when the compliance score is below this value",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
				Value: "warn",
			},
		},
		Action: snapshotAction,
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		log.Printf("failed to run: %v", err)
		os.Exit(1)
	}
}
