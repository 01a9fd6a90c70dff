// Package deadcode implements analyzer.Analyzer with a mark pass over the
// resolved call graph: everything reachable from the entry, the interrupt
// handlers and the user exclusions is kept, the rest is dead.
package deadcode

import (
	"golang.org/x/tools/container/intsets"

	"github.com/ChainSafe/stm8dce/common/lifo"
	"github.com/ChainSafe/stm8dce/linker"
)

// Reach is the set of definitions reachable from one root function.
type Reach struct {
	Functions []int // function IDs, ascending; the root only if it is part of a cycle
	Constants []int // constant IDs, ascending
}

// ReachableFrom walks the resolved calls and label loads of root. Nodes are
// tracked by ID, so file-local functions sharing a name stay distinct and
// cycles of any length are visited once.
func ReachableFrom(res *linker.Resolution, root int) Reach {
	var visited, functions, constants intsets.Sparse
	visited.Insert(root)

	stack := lifo.New(root)
	for !stack.IsEmpty() {
		fn, _ := stack.Pop()
		for _, c := range res.Refs[fn] {
			constants.Insert(c)
		}
		for _, callee := range res.Calls[fn] {
			functions.Insert(callee)
			if visited.Insert(callee) {
				stack.Push(callee)
			}
		}
	}
	return Reach{
		Functions: functions.AppendTo(nil),
		Constants: constants.AppendTo(nil),
	}
}
