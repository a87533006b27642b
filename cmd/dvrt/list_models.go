package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/deepviewml/deepview-go/internal/api"
)

func listModelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "list-models",
		Aliases: []string{"ls", "models"},
		Usage:   "List available .rtm models",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "models-path",
				Aliases:     []string{"path"},
				Usage:       "path to directory containing .rtm models",
				Destination: &modelsPath,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyRuntimeConfig(c, LoadConfig())

			dir := strings.TrimSpace(modelsPath)
			if dir == "" {
				dir = strings.TrimSpace(os.Getenv(envModelsDir))
			}
			if dir == "" {
				return cli.Exit(fmt.Sprintf("error: --models-path is required unless %s is set", envModelsDir), 1)
			}

			models, err := api.DiscoverModels(dir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(models) == 0 {
				fmt.Printf("no models found in %s\n", dir)
				return nil
			}

			fmt.Printf("Models in %s:\n\n", dir)
			for _, m := range models {
				name := filepath.Base(m)
				info, err := os.Stat(m)
				if err != nil {
					fmt.Printf("  %s\n", name)
					continue
				}
				fmt.Printf("  %-40s %10s\n", name, formatBytes(uint64(info.Size())))
			}
			fmt.Printf("\n%d model(s) found\n", len(models))
			return nil
		},
	}
}
