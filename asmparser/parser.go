// Package asmparser holds the symbol model shared by the assembly parsers,
// the linker and the dead-code analysis.
package asmparser

import "fmt"

// Parser holds interface for parsing a single assembly file
type Parser interface {
	Parse(path string) (*Unit, error)
}

// Location is a 1-indexed line within a file.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// ExportedLabel is a `.globl` declaration.
type ExportedLabel struct {
	Location
	Name string
}

// VectorEntry is one slot of the interrupt vector table. Its position in the
// file is significant and must survive a sweep.
type VectorEntry struct {
	Location
	Name string
}

// Function is a labelled block in a code section.
// The block spans the lines [Line, End).
type Function struct {
	Location
	ID        int
	Name      string
	End       int
	Calls     []string // distinct call/jump targets, first-seen order
	LabelRefs []string // distinct label-load operands, first-seen order
	IRQ       bool     // body contains an interrupt return
	Empty     bool     // body contains no executable instruction
}

// Lines returns the number of source lines the function occupies.
func (f *Function) Lines() int {
	return f.End - f.Line
}

// Constant is a labelled block in a constant section, spanning [Line, End).
type Constant struct {
	Location
	ID   int
	Name string
	End  int
}

// Lines returns the number of source lines the constant occupies.
func (c *Constant) Lines() int {
	return c.End - c.Line
}

// Unit is everything a parser extracted from one file.
type Unit struct {
	Path      string
	Lines     int
	Exports   []*ExportedLabel
	Vectors   []*VectorEntry
	Functions []*Function
	Constants []*Constant
}
