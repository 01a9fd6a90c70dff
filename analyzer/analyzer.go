// Package analyzer provides an interface for finding dead code in a set of
// assembly files and the report it produces.
package analyzer

import "context"

// Analyzer represents the interface for the analyzer.
type Analyzer interface {
	// Analyze parses the given files and reports every unreachable
	// definition. It never modifies the files.
	Analyze(ctx context.Context, paths []string) (*Report, error)

	// TraceStack explains why a symbol is kept: the call chain from a root
	// (entry, interrupt handler or exclusion) down to the symbol.
	TraceStack(ctx context.Context, paths []string, symbol string) (*CallStack, error)
}

// SymbolKind tells what a removal neutralizes.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindConstant SymbolKind = "constant"
	KindExport   SymbolKind = "export" // `.globl` declaration of a removed symbol
	KindVector   SymbolKind = "vector" // interrupt vector slot of a removed handler
)

// Removal is a dead region of a file. Functions and constants span
// [Line, EndLine); exports and vector slots are a single line.
type Removal struct {
	Kind    SymbolKind `json:"kind"`
	Symbol  string     `json:"symbol"`
	File    string     `json:"file"`
	Path    string     `json:"path"`
	Line    int        `json:"line"`
	EndLine int        `json:"endLine"`
}

// Totals counts removed definitions of one kind.
type Totals struct {
	Removed int `json:"removed"`
	Total   int `json:"total"`
}

// Report is the outcome of an analysis.
type Report struct {
	Entry      string     `json:"entry"`
	Functions  Totals     `json:"functions"`
	Constants  Totals     `json:"constants"`
	Kept       []string   `json:"kept,omitempty"`
	Removals   []*Removal `json:"removals"`
	Unresolved []string   `json:"unresolved,omitempty"` // references satisfied outside the analyzed files
}

// RemovalsOf returns the removals of the given kind, in report order.
func (r *Report) RemovalsOf(kind SymbolKind) []*Removal {
	var out []*Removal
	for _, rm := range r.Removals {
		if rm.Kind == kind {
			out = append(out, rm)
		}
	}
	return out
}

// CallStack represents one step of a chain of references.
type CallStack struct {
	File      string     `json:"file"`
	Line      int        `json:"line"`                // The line the symbol is defined at.
	Function  string     `json:"function"`            // The symbol at this step.
	AbsPath   string     `json:"absPath"`             // The absolute file path.
	CallStack *CallStack `json:"callStack,omitempty"` // The next step towards the traced symbol.
}

// AddCallStack appends a step at the end of the chain.
func (src *CallStack) AddCallStack(stack *CallStack) {
	if src.CallStack == nil {
		src.CallStack = stack
		return
	}
	src.CallStack.AddCallStack(stack)
}

// Depth is the number of steps in the chain.
func (src *CallStack) Depth() int {
	if src == nil {
		return 0
	}
	return 1 + src.CallStack.Depth()
}
