package linker

import (
	"fmt"
	"strings"

	"github.com/ChainSafe/stm8dce/asmparser"
)

// LinkageKind classifies a linkage ambiguity.
type LinkageKind int

const (
	// ConflictingExported means a `.globl` name is defined more than once.
	ConflictingExported LinkageKind = iota + 1
	// MultipleStatic means a file-local name is defined twice in one file.
	MultipleStatic
)

// LinkageError reports every definition site of an ambiguous symbol.
type LinkageError struct {
	Symbol string
	Kind   LinkageKind
	Sites  []asmparser.Location
}

func (e *LinkageError) Error() string {
	var sb strings.Builder
	switch e.Kind {
	case ConflictingExported:
		fmt.Fprintf(&sb, "conflicting definitions for exported symbol %s:", e.Symbol)
	default:
		fmt.Fprintf(&sb, "multiple static definitions for %s:", e.Symbol)
	}
	for _, site := range e.Sites {
		fmt.Fprintf(&sb, "\n\t%s", site)
	}
	return sb.String()
}

// ReferenceKind tells whether an unresolved reference was a call or a load.
type ReferenceKind string

const (
	ReferenceCall  ReferenceKind = "call"
	ReferenceLabel ReferenceKind = "label"
)

// Reference is a call or label load that matched no definition.
type Reference struct {
	From   int // function ID
	Symbol string
	Kind   ReferenceKind
}

// Resolution holds the cross references of a Program. It is indexed by
// definition ID and stores IDs only; parsed records are never modified.
type Resolution struct {
	Calls           [][]int // function ID -> callee function IDs
	Refs            [][]int // function ID -> referenced constant IDs
	FunctionExports [][]int // function ID -> indices into Program.Exports
	ConstantExports [][]int // constant ID -> indices into Program.Exports
	Vectors         [][]int // function ID -> indices into Program.Vectors
	Unresolved      []Reference
}

// IsInterruptHandler reports whether the function is named by a vector slot.
func (r *Resolution) IsInterruptHandler(fn int) bool {
	return len(r.Vectors[fn]) > 0
}

// Resolve links every call and label load of prog. It must only run once
// every file has been parsed, since exported names need a global view.
func Resolve(prog *Program) (*Resolution, error) {
	res := &Resolution{
		Calls:           make([][]int, len(prog.Functions)),
		Refs:            make([][]int, len(prog.Functions)),
		FunctionExports: make([][]int, len(prog.Functions)),
		ConstantExports: make([][]int, len(prog.Constants)),
		Vectors:         make([][]int, len(prog.Functions)),
	}
	exported := resolveExports(prog, res)
	resolveVectors(prog, res)
	if err := resolveCalls(prog, res, exported); err != nil {
		return nil, err
	}
	if err := resolveLabelReferences(prog, res, exported); err != nil {
		return nil, err
	}
	return res, nil
}

// resolveExports attaches `.globl` declarations to the definitions that
// share their name and returns the set of exported names.
func resolveExports(prog *Program, res *Resolution) map[string]bool {
	exported := make(map[string]bool)
	for i, g := range prog.Exports {
		exported[g.Name] = true
		for _, id := range prog.FunctionsNamed(g.Name) {
			res.FunctionExports[id] = append(res.FunctionExports[id], i)
		}
		for _, id := range prog.ConstantsNamed(g.Name) {
			res.ConstantExports[id] = append(res.ConstantExports[id], i)
		}
	}
	return exported
}

func resolveVectors(prog *Program, res *Resolution) {
	for i, v := range prog.Vectors {
		for _, id := range prog.FunctionsNamed(v.Name) {
			res.Vectors[id] = append(res.Vectors[id], i)
		}
	}
}

func resolveCalls(prog *Program, res *Resolution, exported map[string]bool) error {
	for _, fn := range prog.Functions {
		for _, name := range fn.Calls {
			candidates := prog.FunctionsNamed(name)
			id, err := pick(fn, name, candidates, exported[name], func(id int) asmparser.Location {
				return prog.Functions[id].Location
			})
			if err != nil {
				return err
			}
			if id < 0 {
				res.Unresolved = append(res.Unresolved, Reference{From: fn.ID, Symbol: name, Kind: ReferenceCall})
				continue
			}
			res.Calls[fn.ID] = append(res.Calls[fn.ID], id)
		}
	}
	return nil
}

func resolveLabelReferences(prog *Program, res *Resolution, exported map[string]bool) error {
	for _, fn := range prog.Functions {
		for _, name := range fn.LabelRefs {
			candidates := prog.ConstantsNamed(name)
			id, err := pick(fn, name, candidates, exported[name], func(id int) asmparser.Location {
				return prog.Constants[id].Location
			})
			if err != nil {
				return err
			}
			if id < 0 {
				res.Unresolved = append(res.Unresolved, Reference{From: fn.ID, Symbol: name, Kind: ReferenceLabel})
				continue
			}
			res.Refs[fn.ID] = append(res.Refs[fn.ID], id)
		}
	}
	return nil
}

// pick selects the definition a reference from caller binds to, or -1.
func pick(
	caller *asmparser.Function,
	name string,
	candidates []int,
	global bool,
	location func(id int) asmparser.Location,
) (int, error) {
	if len(candidates) == 0 {
		return -1, nil
	}
	if global {
		if len(candidates) > 1 {
			return -1, linkageError(name, ConflictingExported, candidates, location)
		}
		return candidates[0], nil
	}

	var local []int
	for _, id := range candidates {
		if location(id).Path == caller.Path {
			local = append(local, id)
		}
	}
	switch len(local) {
	case 0:
		return -1, nil
	case 1:
		return local[0], nil
	default:
		return -1, linkageError(name, MultipleStatic, local, location)
	}
}

func linkageError(name string, kind LinkageKind, ids []int, location func(id int) asmparser.Location) error {
	sites := make([]asmparser.Location, 0, len(ids))
	for _, id := range ids {
		sites = append(sites, location(id))
	}
	return &LinkageError{Symbol: name, Kind: kind, Sites: sites}
}
