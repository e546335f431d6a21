// Command fusegen is a development aid, not part of the compiler core: a
// thin CLI front end over package compiler for poking at the scheduling
// and lowering pipeline from a shell.
package main

import (
	"context"
	"log"
	"os"

	"github.com/zerfoo/fusegen/cmd/cli"
)

func main() {
	ctx := context.Background()

	cliApp := cli.NewCLI()
	cliApp.RegisterCommand(cli.NewCompileCommand())

	if err := cliApp.Run(ctx, os.Args[1:]); err != nil {
		log.Printf("CLI execution failed: %v", err)
		os.Exit(1)
	}
}
