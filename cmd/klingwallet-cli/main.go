// klingwallet-cli is a command-line client for a klingwalletd daemon.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal("%v", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "klingwallet-cli"
	app.Usage = "Command line interface for the klingwalletd daemon"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    flagRPC,
			Value:   "http://127.0.0.1:9545",
			Usage:   "Daemon RPC endpoint",
			EnvVars: []string{"KLINGWALLET_CLI_RPC"},
		},
		&cli.DurationFlag{
			Name:  flagTimeout,
			Usage: "RPC request timeout (0 = client default)",
		},
	}
	app.Commands = []*cli.Command{
		&walletCmd,
		&addressCmd,
		&viewKeyCmd,
		&balanceCmd,
		&historyCmd,
		&outputsCmd,
		&sendCmd,
		&waitCmd,
		&syncCmd,
		&devnetCmd,
	}
	return app
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
