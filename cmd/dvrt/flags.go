package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/deepviewml/deepview-go/internal/logger"
	"github.com/deepviewml/deepview-go/pkg/deepviewrt"
)

var (
	libraryPath  string
	enginePlugin string
	modelPath    string
	modelsPath   string
	memorySize   int64
	cacheSize    int64
	logLevel     string
	logFormat    string
	debug        bool
)

func runtimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "library",
			Aliases:     []string{"l"},
			Usage:       "path to the DeepViewRT shared library",
			Destination: &libraryPath,
		},
		&cli.StringFlag{
			Name:        "engine",
			Aliases:     []string{"e"},
			Usage:       "engine plugin to load (e.g. deepview-rt-opencl.so)",
			Destination: &enginePlugin,
		},
	}
}

func commonModelFlags() []cli.Flag {
	return append(runtimeFlags(),
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to .rtm file",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "path to directory containing .rtm models",
			Destination: &modelsPath,
		},
	)
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(logFormat)) {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.Text(os.Stderr, level)
	default:
		return logger.Pretty(os.Stderr, level)
	}
}

// openContext binds the runtime and builds the engine and context the
// command will work against. The caller owns both and releases them
// with closeContext.
func openContext() (*deepviewrt.Engine, *deepviewrt.Context, error) {
	if libraryPath != "" {
		if err := deepviewrt.LoadRuntime(libraryPath); err != nil {
			return nil, nil, err
		}
	}
	var engine *deepviewrt.Engine
	if enginePlugin != "" {
		e, err := deepviewrt.NewEngine(enginePlugin)
		if err != nil {
			return nil, nil, fmt.Errorf("engine %q: %w", enginePlugin, err)
		}
		engine = e
	}
	rtctx, err := deepviewrt.NewContext(engine, int(memorySize), int(cacheSize))
	if err != nil {
		if engine != nil {
			_ = engine.Close()
		}
		return nil, nil, err
	}
	return engine, rtctx, nil
}

func closeContext(engine *deepviewrt.Engine, rtctx *deepviewrt.Context) {
	if rtctx != nil {
		_ = rtctx.Close()
	}
	if engine != nil {
		_ = engine.Close()
	}
}
