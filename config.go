package gspec

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/gspec/gspec/flags"
	"github.com/gspec/gspec/types"
)

// Config holds the application configuration.
type Config struct {
	File           string // filename suffix filter, empty runs everything
	Line           int    // target declaration line, zero runs everything
	Verbosity      types.Verbosity
	TabSize        int
	Padding        bool
	ForceFails     bool // run expected-failure tests as regular tests
	IgnoreMemory   bool // disable the memory sandbox
	ShowTypes      bool // print value types in failure output
	MaxDepth       int
	MemoryCapacity int
	List           bool
	Log            zerolog.Logger
}

// fileDefaults mirrors the YAML shape of a run-options file. Values
// from the file apply only where the corresponding flag is not set on
// the command line.
type fileDefaults struct {
	Verbosity      string `yaml:"verbosity"`
	TabSize        *int   `yaml:"tab_size"`
	Padding        *bool  `yaml:"padding"`
	ForceFails     *bool  `yaml:"force_fails"`
	IgnoreMemory   *bool  `yaml:"ignore_memory"`
	ShowTypes      *bool  `yaml:"show_types"`
	MaxDepth       *int   `yaml:"max_depth"`
	MemoryCapacity *int   `yaml:"memory_capacity"`
}

// NewConfig creates a Config from a cli context. The sole positional
// argument, when present, narrows the run: "file", "file:line", or
// ":line" to target a line in every matching file.
func NewConfig(ctx *cli.Context, log zerolog.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	cfg := &Config{
		Verbosity:      verbosityFromFlags(ctx),
		TabSize:        ctx.Int(flags.TabSize.Name),
		Padding:        ctx.Bool(flags.Padding.Name),
		ForceFails:     ctx.Bool(flags.ForceFails.Name),
		IgnoreMemory:   ctx.Bool(flags.IgnoreMemory.Name),
		ShowTypes:      ctx.Bool(flags.ShowTypes.Name),
		MaxDepth:       ctx.Int(flags.MaxDepth.Name),
		MemoryCapacity: ctx.Int(flags.MemoryCapacity.Name),
		List:           ctx.Bool(flags.List.Name),
		Log:            log,
	}

	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		if err := cfg.applyDefaultsFile(ctx, path); err != nil {
			return nil, err
		}
	}

	if ctx.Args().Len() > 1 {
		return nil, fmt.Errorf("expected at most one target argument, got %d", ctx.Args().Len())
	}
	if target := ctx.Args().First(); target != "" {
		if err := cfg.parseTarget(target); err != nil {
			return nil, err
		}
	}

	// A quiet targeted run would print nothing useful.
	if cfg.Line != 0 && cfg.Verbosity == types.VerbosityQuiet {
		cfg.Verbosity = types.VerbosityNotes
	}

	return cfg, nil
}

// parseTarget splits a "file[:line]" argument.
func (c *Config) parseTarget(arg string) error {
	file, lineStr, found := strings.Cut(arg, ":")
	c.File = file
	if !found {
		return nil
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil || line < 0 {
		return fmt.Errorf("invalid target line %q in %q", lineStr, arg)
	}
	c.Line = line
	return nil
}

// applyDefaultsFile folds a YAML options file under the command line:
// explicit flags win, file values fill the rest.
func (c *Config) applyDefaultsFile(ctx *cli.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read options file: %w", err)
	}
	var d fileDefaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("failed to parse options file %q: %w", path, err)
	}

	if d.Verbosity != "" && !verbositySetOnCLI(ctx) {
		v, err := types.ParseVerbosity(d.Verbosity)
		if err != nil {
			return fmt.Errorf("options file %q: %w", path, err)
		}
		c.Verbosity = v
	}
	if d.TabSize != nil && !ctx.IsSet(flags.TabSize.Name) {
		c.TabSize = *d.TabSize
	}
	if d.Padding != nil && !ctx.IsSet(flags.Padding.Name) {
		c.Padding = *d.Padding
	}
	if d.ForceFails != nil && !ctx.IsSet(flags.ForceFails.Name) {
		c.ForceFails = *d.ForceFails
	}
	if d.IgnoreMemory != nil && !ctx.IsSet(flags.IgnoreMemory.Name) {
		c.IgnoreMemory = *d.IgnoreMemory
	}
	if d.ShowTypes != nil && !ctx.IsSet(flags.ShowTypes.Name) {
		c.ShowTypes = *d.ShowTypes
	}
	if d.MaxDepth != nil && !ctx.IsSet(flags.MaxDepth.Name) {
		c.MaxDepth = *d.MaxDepth
	}
	if d.MemoryCapacity != nil && !ctx.IsSet(flags.MemoryCapacity.Name) {
		c.MemoryCapacity = *d.MemoryCapacity
	}
	return nil
}

func verbosityFromFlags(ctx *cli.Context) types.Verbosity {
	switch {
	case ctx.Bool(flags.VeryVerbose.Name):
		return types.VerbosityAll
	case ctx.Bool(flags.Verbose.Name):
		return types.VerbosityRun
	case ctx.Bool(flags.Notes.Name):
		return types.VerbosityNotes
	default:
		return types.VerbosityQuiet
	}
}

func verbositySetOnCLI(ctx *cli.Context) bool {
	return ctx.IsSet(flags.Verbose.Name) ||
		ctx.IsSet(flags.Notes.Name) ||
		ctx.IsSet(flags.VeryVerbose.Name)
}
