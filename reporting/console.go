package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

var (
	suiteColor   = text.Colors{text.Bold, text.FgHiMagenta}
	groupColor   = text.Colors{text.Bold, text.FgHiCyan}
	contextColor = text.Colors{text.FgCyan}
	failColor    = text.Colors{text.FgRed}
	passColor    = text.Colors{text.FgGreen}
	skipColor    = text.Colors{text.FgBlue}
	logColor     = text.Colors{text.Bold, text.FgHiWhite}
	warnColor    = text.Colors{text.FgYellow}
	warnLoud     = text.Colors{text.Bold, text.FgHiYellow}
	purpleColor  = text.Colors{text.FgMagenta}
)

// ConsoleSinkConfig holds console rendering options.
type ConsoleSinkConfig struct {
	Out     io.Writer
	TabSize int  // spaces per indentation level
	Padding bool // blank lines around error output
}

// ConsoleSink renders run events as indented, colorized console lines.
type ConsoleSink struct {
	out     io.Writer
	tabSize int
	padding bool
}

var _ Sink = (*ConsoleSink)(nil)

// NewConsoleSink creates a console sink.
func NewConsoleSink(cfg ConsoleSinkConfig) *ConsoleSink {
	if cfg.TabSize <= 0 {
		cfg.TabSize = 2
	}
	return &ConsoleSink{out: cfg.Out, tabSize: cfg.TabSize, padding: cfg.Padding}
}

func (c *ConsoleSink) indent(level int) string {
	return strings.Repeat(" ", c.tabSize*level)
}

func (c *ConsoleSink) line(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *ConsoleSink) SuiteHeader(file string) {
	c.line(suiteColor.Sprintf("in file: %s", file))
}

func (c *ConsoleSink) SkippedSuite(file string) {
	c.line(purpleColor.Sprintf("skipping file: %s", file))
}

func (c *ConsoleSink) GroupHeader(line int, name string) {
	c.line(c.indent(1) + groupColor.Sprintf("in group (%d): %s", line, name))
}

func (c *ConsoleSink) ContextHeader(level, line int, desc string) {
	c.line(c.indent(level) + contextColor.Sprintf("context: [%d] %s", line, desc))
}

func (c *ConsoleSink) TestHeader(level int, desc string, kind Kind, note string) {
	color := failColor
	switch kind {
	case KindPass:
		color = passColor
	case KindSkip:
		color = skipColor
	case KindLog:
		color = logColor
	}
	c.line(c.indent(level) + color.Sprintf("test %s%s", desc, note))
}

func (c *ConsoleSink) PreTest(level int) {
	c.line(c.indent(level) + "pre-test")
}

func (c *ConsoleSink) Failure(level, line int, msg string, detail []string) {
	prefix := fmt.Sprintf("line %d: ", line)
	c.line(c.indent(level) + prefix + failColor.Sprint(msg))
	cont := c.indent(level) + strings.Repeat(" ", len(prefix))
	for _, d := range detail {
		for _, l := range strings.Split(d, "\n") {
			c.line(cont + l)
		}
	}
	if c.padding {
		c.line("")
	}
}

func (c *ConsoleSink) MemoryError(level int, msg string) {
	c.line(c.indent(level) + failColor.Sprint("memory error: "+msg))
	if c.padding {
		c.line("")
	}
}

func (c *ConsoleSink) Warning(level, line int, msg string, repeat bool) {
	color := warnLoud
	if repeat {
		color = warnColor
	}
	c.line(c.indent(level) + color.Sprintf("line %d: %s", line, msg))
}

func (c *ConsoleSink) Log(level, line int, msg string) {
	c.line(c.indent(level) + fmt.Sprintf("line %d: %s", line, msg))
}

func (c *ConsoleSink) MemoryDump(level int, rows []string) {
	if c.padding {
		c.line("")
	}
	for _, row := range rows {
		c.line(c.indent(level) + row)
	}
	if c.padding {
		c.line("")
	}
}

func (c *ConsoleSink) Summary(total, passed, warnings, rate int) {
	if total == 0 {
		c.line(warnLoud.Sprint("Tests passed: 0 out of 0"))
		return
	}
	color := passColor
	if passed < total {
		color = failColor
	} else if warnings > 0 {
		color = warnLoud
	}
	msg := fmt.Sprintf("Tests passed: %d out of %d, or %d%%", passed, total, rate)
	if warnings > 0 {
		msg += fmt.Sprintf(" - warnings: %d", warnings)
	}
	c.line(color.Sprint(msg))
}
