// Package dce runs the whole dead-code elimination: parse, resolve, mark
// and sweep. Every fatal condition is detected before the first file is
// written, so a failed run leaves its inputs untouched.
package dce

import (
	"context"
	"fmt"
	"log"

	"github.com/ChainSafe/stm8dce/analyzer"
	"github.com/ChainSafe/stm8dce/analyzer/deadcode"
	"github.com/ChainSafe/stm8dce/sweeper"
)

// DefaultEntry is the entry symbol SDCC emits for main().
const DefaultEntry = "_main"

// Options of a run.
type Options struct {
	Files        []string
	Entry        string
	Exclusions   []string // `name` or `file:name`
	SkipEmptyIRQ bool     // remove interrupt handlers with an empty body
	DryRun       bool
	Logger       *log.Logger
}

// Result summarizes a run.
type Result struct {
	RemovedFunctions int
	TotalFunctions   int
	RemovedConstants int
	TotalConstants   int
	Report           *analyzer.Report
	Files            []*sweeper.FileResult
}

// Summary is the human readable outcome of the run.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Detected and removed %d unused functions from a total of %d functions\n"+
			"Detected and removed %d unused constants from a total of %d constants",
		r.RemovedFunctions, r.TotalFunctions, r.RemovedConstants, r.TotalConstants)
}

// Run eliminates dead code from opts.Files in place.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Files) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	entry := opts.Entry
	if entry == "" {
		entry = DefaultEntry
	}

	report, err := deadcode.NewAnalyzer(deadcode.Options{
		Entry:        entry,
		Exclusions:   opts.Exclusions,
		SkipEmptyIRQ: opts.SkipEmptyIRQ,
		Logger:       opts.Logger,
	}).Analyze(ctx, opts.Files)
	if err != nil {
		return nil, err
	}
	if opts.Logger != nil {
		opts.Logger.Printf("keeping functions: %v", report.Kept)
		for _, rm := range report.RemovalsOf(analyzer.KindFunction) {
			opts.Logger.Printf("removing function %s (%s:%d)", rm.Symbol, rm.File, rm.Line)
		}
	}

	files, err := sweeper.Sweep(ctx, sweeper.NewPlan(report.Removals), sweeper.Options{DryRun: opts.DryRun})
	if err != nil {
		return nil, err
	}
	return &Result{
		RemovedFunctions: report.Functions.Removed,
		TotalFunctions:   report.Functions.Total,
		RemovedConstants: report.Constants.Removed,
		TotalConstants:   report.Constants.Total,
		Report:           report,
		Files:            files,
	}, nil
}
