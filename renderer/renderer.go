package renderer

import (
	"io"

	"github.com/ChainSafe/stm8dce/analyzer"
)

// Renderer defines the interface for rendering analysis reports in different formats.
type Renderer interface {
	// Render takes a report and outputs it in the desired format to the provided writer.
	Render(report *analyzer.Report, output io.Writer) error

	// Format returns the name of the output format (e.g., "json", "text").
	Format() string
}
