package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ChainSafe/stm8dce/cmd"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = os.Args[0]
	app.Usage = "SDCC STM8 dead code elimination tool"
	app.Description = "Removes unused functions and constants from SDCC generated STM8 assembly files"
	app.Version = version
	app.Commands = []*cli.Command{
		cmd.SweepCommand,
		cmd.TraceCommand,
	}
	err := app.RunContext(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
