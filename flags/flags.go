// Package flags declares the CLI surface of the gspec test runner.
package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "GSPEC"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		EnvVars: prefixEnvVars("VERBOSE"),
		Usage:   "Print passing tests in addition to failures and warnings",
	}
	Notes = &cli.BoolFlag{
		Name:    "notes",
		Aliases: []string{"n"},
		EnvVars: prefixEnvVars("NOTES"),
		Usage:   "Print user notes in addition to failures and warnings",
	}
	VeryVerbose = &cli.BoolFlag{
		Name:    "very-verbose",
		Aliases: []string{"V"},
		EnvVars: prefixEnvVars("VERY_VERBOSE"),
		Usage:   "Print everything, including titles of tests that are not run",
	}
	Padding = &cli.BoolFlag{
		Name:    "padding",
		Aliases: []string{"p"},
		EnvVars: prefixEnvVars("PADDING"),
		Usage:   "Add empty lines around error output for readability",
	}
	TabSize = &cli.IntFlag{
		Name:    "tab-size",
		Aliases: []string{"t"},
		Value:   2,
		EnvVars: prefixEnvVars("TAB_SIZE"),
		Usage:   "Spaces per indent level in test output",
	}
	ForceFails = &cli.BoolFlag{
		Name:    "force-fails",
		Aliases: []string{"f"},
		EnvVars: prefixEnvVars("FORCE_FAILS"),
		Usage:   "Disable expected-failure declarations so their output prints",
	}
	IgnoreMemory = &cli.BoolFlag{
		Name:    "ignore-memory",
		Aliases: []string{"m"},
		EnvVars: prefixEnvVars("IGNORE_MEMORY"),
		Usage:   "Disable memory sandbox checking",
	}
	ShowTypes = &cli.BoolFlag{
		Name:    "show-types",
		Aliases: []string{"s"},
		EnvVars: prefixEnvVars("SHOW_TYPES"),
		Usage:   "Print value types in failure output",
	}
	MaxDepth = &cli.IntFlag{
		Name:    "max-depth",
		Value:   20,
		EnvVars: prefixEnvVars("MAX_DEPTH"),
		Usage:   "Maximum context nesting depth",
	}
	MemoryCapacity = &cli.IntFlag{
		Name:    "memory-capacity",
		Value:   4096,
		EnvVars: prefixEnvVars("MEMORY_CAPACITY"),
		Usage:   "Payload capacity of the memory sandbox arena, in bytes",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		EnvVars: prefixEnvVars("CONFIG"),
		Usage:   "Path to a YAML file with default run options",
	}
	List = &cli.BoolFlag{
		Name:    "list",
		Aliases: []string{"l"},
		EnvVars: prefixEnvVars("LIST"),
		Usage:   "List registered suites and exit",
	}
	Debug = &cli.BoolFlag{
		Name:    "debug",
		EnvVars: prefixEnvVars("DEBUG"),
		Usage:   "Enable debug logging",
	}
)

var Flags = []cli.Flag{
	Verbose,
	Notes,
	VeryVerbose,
	Padding,
	TabSize,
	ForceFails,
	IgnoreMemory,
	ShowTypes,
	MaxDepth,
	MemoryCapacity,
	ConfigFile,
	List,
	Debug,
}

// CheckRequired validates flag combinations that cli cannot express.
func CheckRequired(ctx *cli.Context) error {
	if ctx.Int(TabSize.Name) < 0 {
		return fmt.Errorf("flag %s must not be negative", TabSize.Name)
	}
	if ctx.Int(MaxDepth.Name) < 2 {
		return fmt.Errorf("flag %s must be at least 2", MaxDepth.Name)
	}
	if ctx.Int(MemoryCapacity.Name) < 64 {
		return fmt.Errorf("flag %s must be at least 64 bytes", MemoryCapacity.Name)
	}
	return nil
}
