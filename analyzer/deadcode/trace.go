package deadcode

import (
	"fmt"
	"path/filepath"

	"github.com/ChainSafe/stm8dce/analyzer"
	"github.com/ChainSafe/stm8dce/asmparser"
)

type node struct {
	id       int
	constant bool
}

// Trace returns the shortest chain of references from a root to a kept
// definition called symbol. Roots are tried in the order they were kept.
func (k *KeepSet) Trace(symbol string) (*analyzer.CallStack, error) {
	parent := make(map[node]node)
	seen := make(map[node]bool)
	var queue []node
	for _, root := range k.Roots {
		n := node{id: root.ID, constant: root.Constant}
		if !seen[n] {
			seen[n] = true
			queue = append(queue, n)
		}
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if k.name(n) == symbol {
			return k.callStack(n, parent), nil
		}
		if n.constant {
			continue
		}
		next := make([]node, 0, len(k.res.Calls[n.id])+len(k.res.Refs[n.id]))
		for _, id := range k.res.Calls[n.id] {
			next = append(next, node{id: id})
		}
		for _, id := range k.res.Refs[n.id] {
			next = append(next, node{id: id, constant: true})
		}
		for _, m := range next {
			if seen[m] {
				continue
			}
			seen[m] = true
			parent[m] = n
			queue = append(queue, m)
		}
	}

	if len(k.prog.FunctionsNamed(symbol)) == 0 && len(k.prog.ConstantsNamed(symbol)) == 0 {
		return nil, fmt.Errorf("could not find %s", symbol)
	}
	return nil, fmt.Errorf("%s is not reachable from any root and will be removed", symbol)
}

func (k *KeepSet) callStack(n node, parent map[node]node) *analyzer.CallStack {
	var stack *analyzer.CallStack
	for {
		loc := k.location(n)
		absPath, err := filepath.Abs(loc.Path)
		if err != nil {
			absPath = loc.Path
		}
		stack = &analyzer.CallStack{
			File:      filepath.Base(loc.Path),
			Line:      loc.Line,
			Function:  k.name(n),
			AbsPath:   absPath,
			CallStack: stack,
		}
		p, ok := parent[n]
		if !ok {
			return stack
		}
		n = p
	}
}

func (k *KeepSet) name(n node) string {
	if n.constant {
		return k.prog.Constants[n.id].Name
	}
	return k.prog.Functions[n.id].Name
}

func (k *KeepSet) location(n node) asmparser.Location {
	if n.constant {
		return k.prog.Constants[n.id].Location
	}
	return k.prog.Functions[n.id].Location
}
