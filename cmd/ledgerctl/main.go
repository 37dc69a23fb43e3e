// Command ledgerctl drives the ledger services from the shell: syncing journal rows,
// printing holdings, recording index points and loading baselines or history.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var commands = []subcommands.Command{
	&syncCmd{},
	&reviewCmd{},
	&runsCmd{},
	&holdingsCmd{},
	&snapshotCmd{},
	&seriesCmd{},
	&importHistoryCmd{},
	&baselineCmd{},
	&masterCmd{},
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
