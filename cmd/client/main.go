package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/Wa4h1h/go-tftp-loader/internal/cli"
	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
	"github.com/pterm/pterm"
)

var (
	logLevel   = utils.GetEnv[string]("TFTP_LOG_LEVEL", "info", false)
	configPath = utils.GetEnv[string]("TFTP_CONFIG", "", false)
)

func main() {
	l := utils.NewLogger(logLevel).Sugar()

	defer func() {
		_ = l.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand(l, logLevel, configPath).ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err.Error())
		stop()
		os.Exit(1)
	}
}
