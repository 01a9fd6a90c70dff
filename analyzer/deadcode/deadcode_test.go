package deadcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChainSafe/stm8dce/analyzer"
	"github.com/ChainSafe/stm8dce/asmparser/stm8"
	"github.com/ChainSafe/stm8dce/common"
	"github.com/ChainSafe/stm8dce/linker"
)

const mainAsm = `	.globl _main
	.globl _foo
	.area HOME
	int s_GSINIT
	int _TIM1_IRQHandler
	int _EXTI_IRQHandler
	.area CODE
_main:
	call	_foo
	ret
_foo:
	call	_bar
	ret
_bar:
	ldw	x, #(_msg+0)
	ret
_baz:
	call	_qux
	ret
_qux:
	ret
_ping:
	call	_pong
	ret
_pong:
	call	_ping
	ret
_TIM1_IRQHandler:
	call	_ping
	iret
_EXTI_IRQHandler:
	iret
	.area CONST
_msg:
	.ascii "hello"
_unused_msg:
	.ascii "bye"
`

func load(t *testing.T, files map[string]string) (*linker.Program, *linker.Resolution, []string) {
	t.Helper()
	dir := t.TempDir()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(files))
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(files[name]), 0600))
		paths = append(paths, path)
	}
	units, err := stm8.ParseFiles(context.Background(), stm8.NewParser(nil), paths)
	require.NoError(t, err)
	prog := linker.NewProgram(units)
	res, err := linker.Resolve(prog)
	require.NoError(t, err)
	return prog, res, paths
}

func functionNames(prog *linker.Program, ids []int) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, prog.Functions[id].Name)
	}
	sort.Strings(names)
	return names
}

func keptNames(prog *linker.Program, keep *KeepSet) []string {
	var names []string
	for _, fn := range prog.Functions {
		if keep.KeepsFunction(fn.ID) {
			names = append(names, fn.Name)
		}
	}
	sort.Strings(names)
	return names
}

func TestReachableFrom(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"main.asm": mainAsm})

	main := prog.FunctionsNamed("_main")[0]
	reach := ReachableFrom(res, main)
	assert.Equal(t, []string{"_bar", "_foo"}, functionNames(prog, reach.Functions))
	assert.Equal(t, prog.ConstantsNamed("_msg"), reach.Constants)
}

func TestReachableFromCycle(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"main.asm": mainAsm})

	ping := prog.FunctionsNamed("_ping")[0]
	reach := ReachableFrom(res, ping)
	assert.Equal(t, []string{"_ping", "_pong"}, functionNames(prog, reach.Functions),
		"mutual recursion terminates and includes the root")
}

func TestMark(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"main.asm": mainAsm})

	keep, err := Mark(prog, res, MarkOptions{Entry: "_main"})
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"_EXTI_IRQHandler", "_TIM1_IRQHandler", "_bar", "_foo", "_main", "_ping", "_pong"},
		keptNames(prog, keep))

	dead := keep.Dead()
	var deadNames []string
	for _, fn := range dead.Functions {
		deadNames = append(deadNames, fn.Name)
	}
	assert.Equal(t, []string{"_baz", "_qux"}, deadNames)
	require.Len(t, dead.Constants, 1)
	assert.Equal(t, "_unused_msg", dead.Constants[0].Name)
	assert.Empty(t, dead.Exports)
	assert.Empty(t, dead.Vectors)
}

func TestMarkSkipEmptyIRQ(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"main.asm": mainAsm})

	keep, err := Mark(prog, res, MarkOptions{Entry: "_main", SkipEmptyIRQ: true})
	require.NoError(t, err)
	assert.NotContains(t, keptNames(prog, keep), "_EXTI_IRQHandler")
	assert.Contains(t, keptNames(prog, keep), "_TIM1_IRQHandler", "handlers with a body are kept")

	dead := keep.Dead()
	require.Len(t, dead.Vectors, 1)
	assert.Equal(t, "_EXTI_IRQHandler", dead.Vectors[0].Name)
}

func TestMarkEmptyIRQCalledElsewhereIsKept(t *testing.T) {
	src := "\t.area HOME\n\tint _isr\n\t.area CODE\n_main:\n\tcall _isr\n\tret\n_isr:\n\tiret\n"
	prog, res, _ := load(t, map[string]string{"main.asm": src})

	keep, err := Mark(prog, res, MarkOptions{Entry: "_main", SkipEmptyIRQ: true})
	require.NoError(t, err)
	assert.Contains(t, keptNames(prog, keep), "_isr")
	assert.Empty(t, keep.Dead().Vectors)
}

func TestMarkDeadExports(t *testing.T) {
	lib := "\t.globl _used\n\t.globl _unused\n\t.globl _unused_tbl\n\t.area CODE\n_used:\n\tret\n_unused:\n\tret\n\t.area CONST\n_unused_tbl:\n\t.db 1\n"
	main := "\t.globl _main\n\t.globl _used\n\t.globl _unused\n\t.area CODE\n_main:\n\tcall _used\n\tret\n"
	prog, res, paths := load(t, map[string]string{"lib.asm": lib, "main.asm": main})

	keep, err := Mark(prog, res, MarkOptions{Entry: "_main"})
	require.NoError(t, err)

	dead := keep.Dead()
	var exports []string
	for _, g := range dead.Exports {
		exports = append(exports, filepath.Base(g.Path)+":"+g.Name)
	}
	assert.Equal(t, []string{"lib.asm:_unused", "lib.asm:_unused_tbl", "main.asm:_unused"}, exports,
		"import declarations of removed symbols in other files are removed too")
	assert.Equal(t, paths[0], dead.Functions[0].Path)
}

func TestMarkEntryErrors(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"main.asm": mainAsm})
	_, err := Mark(prog, res, MarkOptions{Entry: "_start"})
	assert.ErrorIs(t, err, ErrEntryNotFound)

	dup := "\t.area CODE\n_main:\n\tret\n"
	prog, res, _ = load(t, map[string]string{"a.asm": dup, "b.asm": dup})
	_, err = Mark(prog, res, MarkOptions{Entry: "_main"})
	var ambiguous *AmbiguousError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, "entry", ambiguous.What)
	assert.Len(t, ambiguous.Sites, 2)
}

const helperA = "\t.area CODE\n_a_main:\n\tret\n_helper:\n\tcall _a_only\n\tret\n_a_only:\n\tret\n"
const helperB = "\t.area CODE\n_main:\n\tret\n_helper:\n\tcall _b_only\n\tret\n_b_only:\n\tret\n"

func TestMarkStaticExclusion(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"fileA.asm": helperA, "fileB.asm": helperB})

	keep, err := Mark(prog, res, MarkOptions{
		Entry:      "_main",
		Exclusions: []common.Exclusion{{File: "fileA.asm", Name: "_helper"}},
	})
	require.NoError(t, err)

	var kept []string
	for _, fn := range prog.Functions {
		if keep.KeepsFunction(fn.ID) {
			kept = append(kept, filepath.Base(fn.Path)+":"+fn.Name)
		}
	}
	assert.Equal(t, []string{"fileA.asm:_helper", "fileA.asm:_a_only", "fileB.asm:_main"}, kept)
}

func TestMarkAmbiguousExclusion(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"fileA.asm": helperA, "fileB.asm": helperB})

	_, err := Mark(prog, res, MarkOptions{
		Entry:      "_main",
		Exclusions: []common.Exclusion{{Name: "_helper"}},
	})
	var ambiguous *AmbiguousError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, "exclusion", ambiguous.What)
	assert.Contains(t, err.Error(), "fileA.asm:_helper")
}

func TestMarkUnknownExclusionIsIgnored(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"main.asm": mainAsm})
	_, err := Mark(prog, res, MarkOptions{
		Entry:      "_main",
		Exclusions: []common.Exclusion{{Name: "_nothing"}},
	})
	assert.NoError(t, err)
}

func TestMarkConstantExclusion(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"main.asm": mainAsm})
	keep, err := Mark(prog, res, MarkOptions{
		Entry:      "_main",
		Exclusions: []common.Exclusion{{Name: "_unused_msg"}},
	})
	require.NoError(t, err)
	assert.Empty(t, keep.Dead().Constants)
}

// Every kept function has a path from a root and nothing kept calls a
// removed function.
func TestMarkSoundAndComplete(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"main.asm": mainAsm})
	keep, err := Mark(prog, res, MarkOptions{Entry: "_main"})
	require.NoError(t, err)

	for _, fn := range prog.Functions {
		if !keep.KeepsFunction(fn.ID) {
			continue
		}
		_, err := keep.Trace(fn.Name)
		assert.NoError(t, err, fn.Name)
		for _, callee := range res.Calls[fn.ID] {
			assert.True(t, keep.KeepsFunction(callee), "%s calls removed %s", fn.Name, prog.Functions[callee].Name)
		}
		for _, c := range res.Refs[fn.ID] {
			assert.True(t, keep.KeepsConstant(c))
		}
	}
}

func TestTrace(t *testing.T) {
	prog, res, _ := load(t, map[string]string{"main.asm": mainAsm})
	keep, err := Mark(prog, res, MarkOptions{Entry: "_main"})
	require.NoError(t, err)

	stack, err := keep.Trace("_msg")
	require.NoError(t, err)
	var steps []string
	for s := stack; s != nil; s = s.CallStack {
		steps = append(steps, s.Function)
	}
	assert.Equal(t, []string{"_main", "_foo", "_bar", "_msg"}, steps)
	assert.Equal(t, "main.asm", stack.File)
	assert.Equal(t, 4, stack.Depth())

	stack, err = keep.Trace("_pong")
	require.NoError(t, err)
	assert.Equal(t, "_TIM1_IRQHandler", stack.Function)

	_, err = keep.Trace("_baz")
	assert.ErrorContains(t, err, "not reachable")
	_, err = keep.Trace("_missing")
	assert.ErrorContains(t, err, "could not find")
}

func TestAnalyze(t *testing.T) {
	_, _, paths := load(t, map[string]string{"main.asm": mainAsm})

	report, err := NewAnalyzer(Options{Entry: "_main"}).Analyze(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, analyzer.Totals{Removed: 2, Total: 9}, report.Functions)
	assert.Equal(t, analyzer.Totals{Removed: 1, Total: 2}, report.Constants)

	removals := report.RemovalsOf(analyzer.KindFunction)
	require.Len(t, removals, 2)
	assert.Equal(t, "_baz", removals[0].Symbol)
	assert.Equal(t, "main.asm", removals[0].File)
	assert.Equal(t, removals[0].Line+3, removals[0].EndLine)

	_, err = NewAnalyzer(Options{Entry: "_main", Exclusions: []string{"a.asm:"}}).Analyze(context.Background(), paths)
	assert.Error(t, err)
}

func TestTraceStack(t *testing.T) {
	_, _, paths := load(t, map[string]string{"main.asm": mainAsm})

	stack, err := NewAnalyzer(Options{Entry: "_main"}).TraceStack(context.Background(), paths, "_bar")
	require.NoError(t, err)
	assert.Equal(t, 3, stack.Depth())
}
