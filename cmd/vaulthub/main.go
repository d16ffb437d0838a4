package main

import (
	"context"

	"github.com/stvaults/vaulthub/cmd/vaulthub/commands"
	"github.com/stvaults/vaulthub/config"
	"github.com/stvaults/vaulthub/libs/log"
	tmos "github.com/stvaults/vaulthub/libs/os"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf := config.DefaultConfig()
	logger, err := log.NewDefaultLogger(log.LogFormatPlain, log.LogLevelInfo)
	if err != nil {
		panic(err)
	}

	// cancel the command context on SIGINT or SIGTERM
	tmos.TrapSignal(logger, cancel)

	rcmd := commands.RootCommand(conf, logger)
	rcmd.AddCommand(
		commands.MakeInitFilesCommand(conf, logger),
		commands.MakeTreeCommand(),
		commands.MakeVaultCommand(conf),
		commands.VersionCmd,
	)

	rcmd.SilenceErrors = true
	if err := rcmd.ExecuteContext(ctx); err != nil {
		tmos.Exit(err.Error())
	}
}
