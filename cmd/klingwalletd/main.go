// Klingwallet wallet daemon.
//
// Usage:
//
//	klingwalletd [--devnet] [--node=http://...]  Run daemon
//	klingwalletd --help                          Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Klingon-tech/klingwallet/config"
	"github.com/Klingon-tech/klingwallet/internal/daemon"
)

func main() {
	app := cli.NewApp()
	app.Name = "klingwalletd"
	app.Usage = "HD wallet daemon: ledger, sync engine and JSON-RPC API"
	app.Flags = config.Flags()
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadFromCLI(c)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}

	if err := d.Start(); err != nil {
		d.Stop()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	d.Stop()
	return nil
}
