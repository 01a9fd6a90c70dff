// Package renderer provides a way to render reports in different formats.
package renderer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ChainSafe/stm8dce/analyzer"
)

// TextRenderer formats the report as plain text.
type TextRenderer struct {
	verbose bool
}

// NewTextRenderer creates a new instance of TextRenderer. A verbose
// renderer also lists the kept functions and every removed symbol.
func NewTextRenderer(verbose bool) Renderer {
	return &TextRenderer{verbose: verbose}
}

// Render writes the report summary to output.
func (r *TextRenderer) Render(report *analyzer.Report, output io.Writer) error {
	var sb strings.Builder

	if r.verbose {
		sb.WriteString("Keeping functions:\n")
		for _, name := range report.Kept {
			fmt.Fprintf(&sb, "\t%s\n", name)
		}
		sb.WriteString("\n")

		// Group removals by file, the report is already sorted by file and line
		var file string
		for _, rm := range report.Removals {
			if rm.Kind != analyzer.KindFunction && rm.Kind != analyzer.KindConstant {
				continue
			}
			if rm.Path != file {
				file = rm.Path
				fmt.Fprintf(&sb, "Removing from %s:\n", fileLink(output, rm.Path, rm.File))
			}
			fmt.Fprintf(&sb, "\t%-8s %s (lines %d-%d)\n", rm.Kind, rm.Symbol, rm.Line, rm.EndLine-1)
		}
		if len(report.Unresolved) > 0 {
			fmt.Fprintf(&sb, "\nUnresolved references: %s\n", strings.Join(report.Unresolved, ", "))
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Detected and removed %d unused functions from a total of %d functions\n",
		report.Functions.Removed, report.Functions.Total)
	fmt.Fprintf(&sb, "Detected and removed %d unused constants from a total of %d constants\n",
		report.Constants.Removed, report.Constants.Total)

	_, err := output.Write([]byte(sb.String()))
	return err
}

// Format returns the format type.
func (r *TextRenderer) Format() string {
	return "text"
}

// RenderCallStack writes a trace one step per line, root first.
func RenderCallStack(source *analyzer.CallStack, output io.Writer) error {
	var sb strings.Builder
	for step := source; step != nil; step = step.CallStack {
		fileInfo := fmt.Sprintf("%s:%d", step.File, step.Line)
		if output == os.Stdout {
			fileInfo = fmt.Sprintf("\033[94m\033]8;;file://%s:%d\033\\%s:%d\033]8;;\033\\\033[0m",
				step.AbsPath, step.Line, step.File, step.Line)
		}
		fmt.Fprintf(&sb, "-> %s : (%s)\n", fileInfo, step.Function)
	}
	_, err := output.Write([]byte(sb.String()))
	return err
}

func fileLink(output io.Writer, path, file string) string {
	if output == os.Stdout {
		return fmt.Sprintf("\033]8;;file://%s\033\\%s\033]8;;\033\\", path, file)
	}
	return file
}
