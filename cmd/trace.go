// Package cmd defines all the commands for the cli
package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ChainSafe/stm8dce/analyzer/deadcode"
	"github.com/ChainSafe/stm8dce/common"
	"github.com/ChainSafe/stm8dce/renderer"
)

var (
	FunctionNameFlag = &cli.StringFlag{
		Name:     "function",
		Aliases:  []string{"f"},
		Usage:    "Name of the function or constant to trace. Ex: _uart_write",
		Required: true,
	}
)

func CreateTraceCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:        "trace",
		Usage:       "Shows why a function is kept",
		Description: "Prints the chain of calls from the entry, an interrupt handler or an exclusion down to the given function. Files are not modified",
		ArgsUsage:   "FILE...",
		Action:      action,
		Flags: []cli.Flag{
			ProfileFlag,
			EntryFlag,
			ExcludeFlag,
			OptIRQFlag,
			FunctionNameFlag,
			DebugFlag,
		},
	}
}

var TraceCommand = CreateTraceCommand(TraceCaller)

func TraceCaller(ctx *cli.Context) error {
	prof, err := loadProfile(ctx)
	if err != nil {
		return err
	}
	files, err := common.CollectAsmFiles(prof.Inputs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no input files")
	}

	analyzer := deadcode.NewAnalyzer(deadcode.Options{
		Entry:        prof.Entry,
		Exclusions:   prof.Exclude,
		SkipEmptyIRQ: prof.OptIRQ,
		Logger:       newLogger(prof.Debug),
	})
	callStack, err := analyzer.TraceStack(ctx.Context, files, ctx.String(FunctionNameFlag.Name))
	if err != nil {
		return err
	}
	return renderer.RenderCallStack(callStack, os.Stdout)
}
