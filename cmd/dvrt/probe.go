package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/deepviewml/deepview-go/pkg/deepviewrt"
)

func probeCmd() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Check the runtime library and engine plugin",
		Flags: append(runtimeFlags(), loggingFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyRuntimeConfig(c, LoadConfig())
			log := newLogger()

			engine, rtctx, err := openContext()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer closeContext(engine, rtctx)

			library := deepviewrt.RuntimeLibrary()
			if library == "" {
				library = "(default)"
			}
			fmt.Printf("library: %s\n", library)
			fmt.Println("context: ok")

			if engine != nil {
				name, err := engine.Name()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: engine name: %v", err), 1)
				}
				version, err := engine.Version()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: engine version: %v", err), 1)
				}
				if name == "" {
					name = "(unnamed)"
				}
				fmt.Printf("engine:  %s %s\n", name, version)
			}

			log.Debug("probe complete", "library", library, "engine", enginePlugin)
			return nil
		},
	}
}
