// Package sweeper neutralizes dead code in place. Lines are only ever
// overwritten, never inserted or deleted, so every line number recorded by
// the parser stays valid.
package sweeper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ChainSafe/stm8dce/analyzer"
)

// NullVector replaces the vector slot of a removed handler. Vector slots are
// positional, so the slot is kept and pointed at address zero.
const NullVector = "\tint 0x000000"

const commentPrefix = ";"

// Options configures a sweep.
type Options struct {
	DryRun bool // compute the edits without writing
}

// FileResult describes the edits applied to one file.
type FileResult struct {
	Path    string
	Edited  int // number of overwritten lines
	Content []byte
}

// Plan groups removals by file so each file is read and written once.
type Plan map[string][]*analyzer.Removal

// NewPlan groups removals by path.
func NewPlan(removals []*analyzer.Removal) Plan {
	plan := make(Plan)
	for _, rm := range removals {
		plan[rm.Path] = append(plan[rm.Path], rm)
	}
	return plan
}

// Files returns the affected paths, sorted.
func (p Plan) Files() []string {
	files := make([]string, 0, len(p))
	for path := range p {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Sweep rewrites every file of the plan. Files are disjoint, so each one is
// handled by its own goroutine.
func Sweep(ctx context.Context, plan Plan, opts Options) ([]*FileResult, error) {
	files := plan.Files()
	results := make([]*FileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := sweepFile(path, plan[path], opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func sweepFile(path string, removals []*analyzer.Removal, opts Options) (*FileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	lines := SplitLines(content)
	edited, err := Apply(lines, removals)
	if err != nil {
		return nil, fmt.Errorf("error sweeping %s: %w", path, err)
	}

	out := []byte(strings.Join(lines, ""))
	if !opts.DryRun && !bytes.Equal(out, content) {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error reading file: %w", err)
		}
		if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
			return nil, fmt.Errorf("failed to write to output file: %w", err)
		}
	}
	return &FileResult{Path: path, Edited: edited, Content: out}, nil
}

// SplitLines splits content into lines that keep their terminators, so
// joining them restores the content byte for byte.
func SplitLines(content []byte) []string {
	lines := strings.SplitAfter(string(content), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Apply edits lines in place and returns the number of lines changed.
func Apply(lines []string, removals []*analyzer.Removal) (int, error) {
	edited := 0
	for _, rm := range removals {
		if rm.Line < 1 || rm.EndLine > len(lines)+1 || rm.EndLine < rm.Line {
			return edited, fmt.Errorf("%s %s spans lines %d-%d outside of a %d line file",
				rm.Kind, rm.Symbol, rm.Line, rm.EndLine, len(lines))
		}
		switch rm.Kind {
		case analyzer.KindVector:
			idx := rm.Line - 1
			lines[idx] = NullVector + terminator(lines[idx])
			edited++
		default:
			for idx := rm.Line - 1; idx < rm.EndLine-1; idx++ {
				lines[idx] = commentPrefix + lines[idx]
				edited++
			}
		}
	}
	return edited, nil
}

func terminator(line string) string {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(line, "\n"):
		return "\n"
	default:
		return ""
	}
}
