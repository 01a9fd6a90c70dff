package deadcode

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ChainSafe/stm8dce/asmparser"
	"github.com/ChainSafe/stm8dce/common"
	"github.com/ChainSafe/stm8dce/linker"
)

// ErrEntryNotFound is returned when no function carries the entry name.
var ErrEntryNotFound = errors.New("entry label not found")

// AmbiguousError reports a name that matches more than one definition
// where exactly one is required.
type AmbiguousError struct {
	What  string // "entry" or "exclusion"
	Name  string
	Sites []asmparser.Location
}

func (e *AmbiguousError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "multiple definitions for %s %s:", e.What, e.Name)
	for _, site := range e.Sites {
		fmt.Fprintf(&sb, "\n\t%s", site)
	}
	if e.What == "exclusion" {
		fmt.Fprintf(&sb, "\nqualify the exclusion with its file name, e.g. %s:%s",
			filepath.Base(e.Sites[0].Path), e.Name)
	}
	return sb.String()
}

// RootReason tells why a root is kept.
type RootReason string

const (
	RootEntry     RootReason = "entry"
	RootInterrupt RootReason = "interrupt"
	RootExclusion RootReason = "exclusion"
)

// Root is a function kept unconditionally, or a constant kept by exclusion
// when Constant is set.
type Root struct {
	ID       int
	Constant bool
	Reason   RootReason
}

// MarkOptions configures Mark.
type MarkOptions struct {
	Entry        string
	Exclusions   []common.Exclusion
	SkipEmptyIRQ bool // do not keep interrupt handlers with an empty body
	Logger       *log.Logger
}

// KeepSet is the outcome of the mark phase.
type KeepSet struct {
	Functions *roaring.Bitmap
	Constants *roaring.Bitmap
	Roots     []Root

	prog *linker.Program
	res  *linker.Resolution
}

// Mark computes the definitions to keep.
func Mark(prog *linker.Program, res *linker.Resolution, opts MarkOptions) (*KeepSet, error) {
	k := &KeepSet{
		Functions: roaring.New(),
		Constants: roaring.New(),
		prog:      prog,
		res:       res,
	}
	debugf := func(format string, args ...any) {
		if opts.Logger != nil {
			opts.Logger.Printf(format, args...)
		}
	}

	entries := prog.FunctionsNamed(opts.Entry)
	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, opts.Entry)
	case 1:
	default:
		return nil, &AmbiguousError{What: "entry", Name: opts.Entry, Sites: functionSites(prog, entries)}
	}
	debugf("traversing entry function %s", opts.Entry)
	k.keepFunction(entries[0], RootEntry)

	for _, fn := range prog.Functions {
		if !fn.IRQ && !res.IsInterruptHandler(fn.ID) {
			continue
		}
		if opts.SkipEmptyIRQ && fn.Empty {
			debugf("skipping empty IRQ handler %s", fn.Name)
			continue
		}
		debugf("traversing IRQ handler %s", fn.Name)
		k.keepFunction(fn.ID, RootInterrupt)
	}

	for _, ex := range opts.Exclusions {
		if err := k.keepExclusion(ex, debugf); err != nil {
			return nil, err
		}
	}

	// A constant lives as long as a kept function loads it.
	k.Functions.Iterate(func(id uint32) bool {
		for _, c := range res.Refs[id] {
			k.Constants.Add(uint32(c)) //nolint:gosec
		}
		return true
	})
	return k, nil
}

func (k *KeepSet) keepFunction(id int, reason RootReason) {
	k.Roots = append(k.Roots, Root{ID: id, Reason: reason})
	k.Functions.Add(uint32(id)) //nolint:gosec
	reach := ReachableFrom(k.res, id)
	for _, fn := range reach.Functions {
		k.Functions.Add(uint32(fn)) //nolint:gosec
	}
	for _, c := range reach.Constants {
		k.Constants.Add(uint32(c)) //nolint:gosec
	}
}

func (k *KeepSet) keepExclusion(ex common.Exclusion, debugf func(string, ...any)) error {
	var functions []int
	for _, id := range k.prog.FunctionsNamed(ex.Name) {
		if ex.Matches(k.prog.Functions[id].Path, ex.Name) {
			functions = append(functions, id)
		}
	}
	if len(functions) > 1 {
		return &AmbiguousError{What: "exclusion", Name: ex.String(), Sites: functionSites(k.prog, functions)}
	}
	if len(functions) == 1 {
		if !k.Functions.Contains(uint32(functions[0])) { //nolint:gosec
			debugf("traversing excluded function %s", ex)
			k.keepFunction(functions[0], RootExclusion)
		}
		return nil
	}

	var constants []int
	for _, id := range k.prog.ConstantsNamed(ex.Name) {
		if ex.Matches(k.prog.Constants[id].Path, ex.Name) {
			constants = append(constants, id)
		}
	}
	switch len(constants) {
	case 0:
		debugf("excluded symbol %s not found", ex)
	case 1:
		k.Roots = append(k.Roots, Root{ID: constants[0], Constant: true, Reason: RootExclusion})
		k.Constants.Add(uint32(constants[0])) //nolint:gosec
	default:
		sites := make([]asmparser.Location, 0, len(constants))
		for _, id := range constants {
			sites = append(sites, k.prog.Constants[id].Location)
		}
		return &AmbiguousError{What: "exclusion", Name: ex.String(), Sites: sites}
	}
	return nil
}

// KeepsFunction reports whether the function is kept.
func (k *KeepSet) KeepsFunction(id int) bool {
	return k.Functions.Contains(uint32(id)) //nolint:gosec
}

// KeepsConstant reports whether the constant is kept.
func (k *KeepSet) KeepsConstant(id int) bool {
	return k.Constants.Contains(uint32(id)) //nolint:gosec
}

// Dead lists everything the sweep has to neutralize.
type Dead struct {
	Functions []*asmparser.Function
	Constants []*asmparser.Constant
	Exports   []*asmparser.ExportedLabel
	Vectors   []*asmparser.VectorEntry
}

// Dead returns the complement of the keep-set, in program order. Export and
// vector lines shared with a kept definition of the same name are left alone.
func (k *KeepSet) Dead() *Dead {
	dead := &Dead{}
	exports, keptExports := roaring.New(), roaring.New()
	vectors, keptVectors := roaring.New(), roaring.New()
	for _, fn := range k.prog.Functions {
		g, v := exports, vectors
		if k.KeepsFunction(fn.ID) {
			g, v = keptExports, keptVectors
		} else {
			dead.Functions = append(dead.Functions, fn)
		}
		addAll(g, k.res.FunctionExports[fn.ID])
		addAll(v, k.res.Vectors[fn.ID])
	}
	for _, c := range k.prog.Constants {
		g := exports
		if k.KeepsConstant(c.ID) {
			g = keptExports
		} else {
			dead.Constants = append(dead.Constants, c)
		}
		addAll(g, k.res.ConstantExports[c.ID])
	}
	exports.AndNot(keptExports)
	vectors.AndNot(keptVectors)

	exports.Iterate(func(i uint32) bool {
		dead.Exports = append(dead.Exports, k.prog.Exports[i])
		return true
	})
	vectors.Iterate(func(i uint32) bool {
		dead.Vectors = append(dead.Vectors, k.prog.Vectors[i])
		return true
	})
	return dead
}

func addAll(bm *roaring.Bitmap, ids []int) {
	for _, id := range ids {
		bm.Add(uint32(id)) //nolint:gosec
	}
}

func functionSites(prog *linker.Program, ids []int) []asmparser.Location {
	sites := make([]asmparser.Location, 0, len(ids))
	for _, id := range ids {
		sites = append(sites, prog.Functions[id].Location)
	}
	return sites
}
