// Package linker resolves symbol references across all parsed units the
// way the linker would: `.globl` names must have exactly one definition,
// every other name is local to the file that defines it.
package linker

import (
	"github.com/ChainSafe/stm8dce/asmparser"
)

// Program is the union of every parsed unit. Definitions are addressed by
// their ID, which is their index in Functions or Constants.
type Program struct {
	Units     []*asmparser.Unit
	Functions []*asmparser.Function
	Constants []*asmparser.Constant
	Exports   []*asmparser.ExportedLabel
	Vectors   []*asmparser.VectorEntry

	functionsByName map[string][]int
	constantsByName map[string][]int
}

// NewProgram collects units in order and assigns definition IDs.
func NewProgram(units []*asmparser.Unit) *Program {
	prog := &Program{
		Units:           units,
		functionsByName: make(map[string][]int),
		constantsByName: make(map[string][]int),
	}
	for _, unit := range units {
		for _, fn := range unit.Functions {
			fn.ID = len(prog.Functions)
			prog.Functions = append(prog.Functions, fn)
			prog.functionsByName[fn.Name] = append(prog.functionsByName[fn.Name], fn.ID)
		}
		for _, c := range unit.Constants {
			c.ID = len(prog.Constants)
			prog.Constants = append(prog.Constants, c)
			prog.constantsByName[c.Name] = append(prog.constantsByName[c.Name], c.ID)
		}
		prog.Exports = append(prog.Exports, unit.Exports...)
		prog.Vectors = append(prog.Vectors, unit.Vectors...)
	}
	return prog
}

// FunctionsNamed returns the IDs of every function called name.
func (p *Program) FunctionsNamed(name string) []int {
	return p.functionsByName[name]
}

// ConstantsNamed returns the IDs of every constant called name.
func (p *Program) ConstantsNamed(name string) []int {
	return p.constantsByName[name]
}
