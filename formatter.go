package gspec

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"

	"github.com/gspec/gspec/runner"
)

// ResultFormatter is responsible for formatting and displaying run
// results.
type ResultFormatter interface {
	FormatResults(result *runner.Result) error
}

// TableResultFormatter renders results as a per-suite table.
type TableResultFormatter struct {
	out io.Writer
	log zerolog.Logger
}

// NewTableResultFormatter creates a new TableResultFormatter.
func NewTableResultFormatter(out io.Writer, log zerolog.Logger) *TableResultFormatter {
	return &TableResultFormatter{out: out, log: log}
}

// FormatResults formats and displays the run results.
func (f *TableResultFormatter) FormatResults(result *runner.Result) error {
	f.log.Debug().Str("run_id", result.RunID).Msg("printing results table")

	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Spec Results (%s)", formatDuration(result.Duration)))
	// keep the footer's pass/fail markers as written, not upcased
	t.Style().Format.Footer = text.FormatDefault

	t.AppendHeader(table.Row{"Type", "Name", "Line", "Passes", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "Name", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Line", Align: text.AlignRight},
		{Name: "Passes", Align: text.AlignRight},
	})

	for _, suite := range result.Suites {
		status := "run"
		if suite.Skipped {
			status = "skipped"
		}
		t.AppendRow(table.Row{"Suite", suite.File, "-", "-", status})
		for i, g := range suite.Groups {
			prefix := "├─"
			if i == len(suite.Groups)-1 {
				prefix = "└─"
			}
			t.AppendRow(table.Row{"Group", prefix + " " + g.Name, g.Line, g.Passes, ""})
		}
		t.AppendSeparator()
	}

	t.AppendFooter(table.Row{
		"", "Total", "",
		fmt.Sprintf("%d/%d passed", result.Stats.Passed, result.Stats.Total),
		getResultString(result.Stats.Status()),
	})

	t.Render()
	return nil
}

// formatDuration trims a duration for display.
func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
