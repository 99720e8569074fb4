package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	gspec "github.com/gspec/gspec"
	"github.com/gspec/gspec/exitcodes"
	"github.com/gspec/gspec/flags"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "gspec"
	app.Usage = "Spec runner with position-based traversal and memory sandboxing"
	app.ArgsUsage = "[file[:line]]"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			switch {
			case gspec.IsRuntimeError(err):
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			case gspec.IsTestFailureError(err):
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			default:
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			}
		}
	}

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up telemetry: %v\n", err)
		os.Exit(exitcodes.RuntimeErr)
	}
	defer otelShutdown()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcodes.RuntimeErr)
	}
}

func run(ctx *cli.Context) error {
	log := newLogger(ctx.Bool(flags.Debug.Name))

	cfg, err := gspec.NewConfig(ctx, log)
	if err != nil {
		return gspec.NewRuntimeError(err)
	}

	svc, err := gspec.New(cfg, Version, nil)
	if err != nil {
		return gspec.NewRuntimeError(err)
	}

	return svc.Run(ctx.Context)
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
