package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"portfolio-ledger/cmd"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range cmd.Commands {
		commander.Register(c, "")
	}

	flag.Parse()
	// with no subcommand the binary runs the server
	if flag.NArg() == 0 {
		flag.CommandLine.Parse([]string{"serve"})
	}
	os.Exit(int(commander.Execute(context.Background())))
}
