package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ChainSafe/stm8dce/common"
	"github.com/ChainSafe/stm8dce/dce"
	"github.com/ChainSafe/stm8dce/profile"
	"github.com/ChainSafe/stm8dce/renderer"
)

var (
	ProfileFlag = &cli.PathFlag{
		Name:  "profile",
		Usage: "Path to a YAML run profile. Flags override its values",
	}
	OutputFlag = &cli.PathFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output directory the input files are copied to before processing. It must exist",
	}
	EntryFlag = &cli.StringFlag{
		Name:        "entry",
		Aliases:     []string{"e"},
		Usage:       "Entry function",
		DefaultText: dce.DefaultEntry,
	}
	ExcludeFlag = &cli.StringSliceFlag{
		Name:    "exclude",
		Aliases: []string{"x"},
		Usage:   "Keep a function or constant and everything it references. Use file.asm:name for static symbols",
	}
	OptIRQFlag = &cli.BoolFlag{
		Name:  "opt-irq",
		Usage: "Remove unused IRQ handlers (Caution: removes iret's for unused interrupts!)",
	}
	DryRunFlag = &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Report what would be removed without rewriting any file",
	}
	FormatFlag = &cli.StringFlag{
		Name:        "format",
		Usage:       "format of the output. Options: json, text",
		DefaultText: "text",
	}
	ReportOutputPathFlag = &cli.PathFlag{
		Name:  "report-output-path",
		Usage: "output file path for report. Default: stdout",
	}
	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Verbose output",
	}
	DebugFlag = &cli.BoolFlag{
		Name:    "debug",
		Aliases: []string{"d"},
		Usage:   "Debug output",
	}
)

func CreateSweepCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:        "sweep",
		Usage:       "Removes unused functions and constants from SDCC STM8 assembly files",
		Description: "Copies the input files to the output directory and comments out every function and constant unreachable from the entry, the interrupt handlers and the exclusions",
		ArgsUsage:   "FILE...",
		Action:      action,
		Flags: []cli.Flag{
			ProfileFlag,
			OutputFlag,
			EntryFlag,
			ExcludeFlag,
			OptIRQFlag,
			DryRunFlag,
			FormatFlag,
			ReportOutputPathFlag,
			VerboseFlag,
			DebugFlag,
		},
	}
}

var SweepCommand = CreateSweepCommand(SweepDeadCode)

func SweepDeadCode(ctx *cli.Context) error {
	prof, err := loadProfile(ctx)
	if err != nil {
		return err
	}
	if prof.Output == "" {
		return fmt.Errorf("output directory is required")
	}

	inputs, err := common.CollectAsmFiles(prof.Inputs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no input files")
	}
	files, err := common.CopyToDir(inputs, prof.Output)
	if err != nil {
		return fmt.Errorf("error copying input files: %w", err)
	}

	result, err := dce.Run(ctx.Context, dce.Options{
		Files:        files,
		Entry:        prof.Entry,
		Exclusions:   prof.Exclude,
		SkipEmptyIRQ: prof.OptIRQ,
		DryRun:       ctx.Bool(DryRunFlag.Name),
		Logger:       newLogger(prof.Debug),
	})
	if err != nil {
		return err
	}

	return writeReport(result, prof)
}

// loadProfile merges the optional profile file with the command line.
func loadProfile(ctx *cli.Context) (*profile.Profile, error) {
	prof := &profile.Profile{}
	if path := ctx.Path(ProfileFlag.Name); path != "" {
		var err error
		prof, err = profile.LoadProfile(path)
		if err != nil {
			return nil, fmt.Errorf("error loading profile: %w", err)
		}
	}

	if ctx.IsSet(OutputFlag.Name) {
		prof.Output = ctx.Path(OutputFlag.Name)
	}
	if ctx.IsSet(EntryFlag.Name) {
		prof.Entry = ctx.String(EntryFlag.Name)
	}
	if prof.Entry == "" {
		prof.Entry = dce.DefaultEntry
	}
	if ctx.IsSet(ExcludeFlag.Name) {
		prof.Exclude = ctx.StringSlice(ExcludeFlag.Name)
	}
	if ctx.IsSet(OptIRQFlag.Name) {
		prof.OptIRQ = ctx.Bool(OptIRQFlag.Name)
	}
	if ctx.IsSet(FormatFlag.Name) {
		prof.Format = ctx.String(FormatFlag.Name)
	}
	if prof.Format == "" {
		prof.Format = "text"
	}
	if prof.Format != "text" && prof.Format != "json" {
		return nil, fmt.Errorf("invalid format: %s", prof.Format)
	}
	if ctx.IsSet(ReportOutputPathFlag.Name) {
		prof.ReportOutput = ctx.Path(ReportOutputPathFlag.Name)
	}
	if ctx.IsSet(VerboseFlag.Name) {
		prof.Verbose = ctx.Bool(VerboseFlag.Name)
	}
	if ctx.IsSet(DebugFlag.Name) {
		prof.Debug = ctx.Bool(DebugFlag.Name)
	}
	if ctx.Args().Present() {
		prof.Inputs = ctx.Args().Slice()
	}
	return prof, nil
}

func newLogger(debug bool) *log.Logger {
	if !debug {
		return nil
	}
	return log.New(os.Stderr, "", 0)
}

// writeReport outputs the results in the specified format.
func writeReport(result *dce.Result, prof *profile.Profile) error {
	rendererInstance, err := newRenderer(prof.Format, prof.Verbose || prof.Debug)
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(prof.ReportOutput)
	if err != nil {
		return err
	}
	defer closeOutput()

	return rendererInstance.Render(result.Report, output)
}

func newRenderer(format string, verbose bool) (renderer.Renderer, error) {
	switch format {
	case "text":
		return renderer.NewTextRenderer(verbose), nil
	case "json":
		return renderer.NewJSONRenderer(), nil
	default:
		return nil, fmt.Errorf("invalid format: %s", format)
	}
}

func openOutput(outputPath string) (io.Writer, func(), error) {
	if outputPath == "" {
		return os.Stdout, func() {}, nil
	}
	absPath, err := filepath.Abs(outputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to determine absolute path: %w", err)
	}
	output, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open output file: %w", err)
	}
	return output, func() {
		_ = output.Close()
	}, nil
}
