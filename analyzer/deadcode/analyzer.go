package deadcode

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"sort"

	"github.com/ChainSafe/stm8dce/analyzer"
	"github.com/ChainSafe/stm8dce/asmparser/stm8"
	"github.com/ChainSafe/stm8dce/common"
	"github.com/ChainSafe/stm8dce/linker"
)

// Options configures the analyzer.
type Options struct {
	Entry        string
	Exclusions   []string // `name` or `file:name`
	SkipEmptyIRQ bool
	Logger       *log.Logger // debug trace; nil disables it
}

type deadcodeAnalyzer struct {
	opts Options
}

// NewAnalyzer initializes a dead-code analyzer for SDCC STM8 assembly.
func NewAnalyzer(opts Options) analyzer.Analyzer {
	return &deadcodeAnalyzer{opts: opts}
}

// Analyze parses every file, resolves symbols across them and reports the
// unreachable definitions.
func (a *deadcodeAnalyzer) Analyze(ctx context.Context, paths []string) (*analyzer.Report, error) {
	prog, keep, err := a.mark(ctx, paths)
	if err != nil {
		return nil, err
	}
	return BuildReport(prog, keep, a.opts.Entry), nil
}

// TraceStack generates the chain of references keeping symbol alive.
func (a *deadcodeAnalyzer) TraceStack(ctx context.Context, paths []string, symbol string) (*analyzer.CallStack, error) {
	_, keep, err := a.mark(ctx, paths)
	if err != nil {
		return nil, err
	}
	return keep.Trace(symbol)
}

func (a *deadcodeAnalyzer) mark(ctx context.Context, paths []string) (*linker.Program, *KeepSet, error) {
	exclusions, err := common.ParseExclusions(a.opts.Exclusions)
	if err != nil {
		return nil, nil, err
	}

	units, err := stm8.ParseFiles(ctx, stm8.NewParser(a.opts.Logger), paths)
	if err != nil {
		return nil, nil, err
	}
	prog := linker.NewProgram(units)
	res, err := linker.Resolve(prog)
	if err != nil {
		return nil, nil, fmt.Errorf("error resolving symbols: %w", err)
	}
	for _, ref := range res.Unresolved {
		a.debugf("unresolved %s reference to %s in %s", ref.Kind, ref.Symbol, prog.Functions[ref.From].Name)
	}

	keep, err := Mark(prog, res, MarkOptions{
		Entry:        a.opts.Entry,
		Exclusions:   exclusions,
		SkipEmptyIRQ: a.opts.SkipEmptyIRQ,
		Logger:       a.opts.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return prog, keep, nil
}

func (a *deadcodeAnalyzer) debugf(format string, args ...any) {
	if a.opts.Logger != nil {
		a.opts.Logger.Printf(format, args...)
	}
}

// BuildReport turns a keep-set into a report. Removals are ordered by file
// and line.
func BuildReport(prog *linker.Program, keep *KeepSet, entry string) *analyzer.Report {
	dead := keep.Dead()
	report := &analyzer.Report{
		Entry:     entry,
		Functions: analyzer.Totals{Removed: len(dead.Functions), Total: len(prog.Functions)},
		Constants: analyzer.Totals{Removed: len(dead.Constants), Total: len(prog.Constants)},
		Removals:  make([]*analyzer.Removal, 0),
	}

	for _, fn := range prog.Functions {
		if keep.KeepsFunction(fn.ID) {
			report.Kept = append(report.Kept, fn.Name)
		}
	}
	sort.Strings(report.Kept)
	report.Kept = slices.Compact(report.Kept)

	add := func(kind analyzer.SymbolKind, name, path string, line, end int) {
		report.Removals = append(report.Removals, &analyzer.Removal{
			Kind:    kind,
			Symbol:  name,
			File:    filepath.Base(path),
			Path:    path,
			Line:    line,
			EndLine: end,
		})
	}
	for _, fn := range dead.Functions {
		add(analyzer.KindFunction, fn.Name, fn.Path, fn.Line, fn.End)
	}
	for _, c := range dead.Constants {
		add(analyzer.KindConstant, c.Name, c.Path, c.Line, c.End)
	}
	for _, g := range dead.Exports {
		add(analyzer.KindExport, g.Name, g.Path, g.Line, g.Line+1)
	}
	for _, v := range dead.Vectors {
		add(analyzer.KindVector, v.Name, v.Path, v.Line, v.Line+1)
	}
	sort.SliceStable(report.Removals, func(i, j int) bool {
		if report.Removals[i].Path != report.Removals[j].Path {
			return report.Removals[i].Path < report.Removals[j].Path
		}
		return report.Removals[i].Line < report.Removals[j].Line
	})

	for _, ref := range keep.res.Unresolved {
		if keep.KeepsFunction(ref.From) {
			report.Unresolved = append(report.Unresolved, ref.Symbol)
		}
	}
	sort.Strings(report.Unresolved)
	report.Unresolved = slices.Compact(report.Unresolved)
	return report
}
