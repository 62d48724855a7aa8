package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Klingon-tech/klingwallet/internal/rpc"
)

var sendCmd = cli.Command{
	Name:  "send",
	Usage: "pay an amount to an address",
	Flags: []cli.Flag{
		handleFlag,
		&cli.StringFlag{Name: "to", Usage: "Recipient transfer address", Required: true},
		&cli.StringFlag{Name: "amount", Usage: "Amount in base units", Required: true},
		&cli.StringSliceFlag{Name: "view-key", Usage: "Recipient view key (repeatable)"},
		&cli.BoolFlag{Name: "wait", Usage: "Wait for the transaction to confirm"},
		&cli.DurationFlag{Name: "wait-timeout", Value: time.Minute, Usage: "Confirmation timeout with --wait"},
	},
	Action: sendAction,
}

var waitCmd = cli.Command{
	Name:  "wait",
	Usage: "wait until a transaction confirms",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "txid", Usage: "Transaction id", Required: true},
		&cli.DurationFlag{Name: "wait-timeout", Value: time.Minute, Usage: "Give up after this long"},
	},
	Action: func(c *cli.Context) error {
		return call(c, "wallet_waitConfirmed", rpc.WaitConfirmedParam{
			TxID:      c.String("txid"),
			TimeoutMS: c.Duration("wait-timeout").Milliseconds(),
		})
	},
}

var syncCmd = cli.Command{
	Name:  "sync",
	Usage: "synchronize one wallet, or every unlocked wallet",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: flagHandle, Aliases: []string{"w"}, Usage: "Wallet handle (all wallets when omitted)"},
	},
	Action: func(c *cli.Context) error {
		return call(c, "sync", rpc.SyncParam{Handle: c.String(flagHandle)})
	},
}

func sendAction(c *cli.Context) error {
	client := getClient(c)
	var txid string
	err := client.Call(c.Context, "wallet_sendToAddress", rpc.SendParam{
		Handle:   c.String(flagHandle),
		Address:  c.String("to"),
		Amount:   c.String("amount"),
		ViewKeys: c.StringSlice("view-key"),
	}, &txid)
	if err != nil {
		return err
	}
	if !c.Bool("wait") {
		return printJSON(c, txid)
	}

	var res rpc.WaitConfirmedResult
	err = client.Call(c.Context, "wallet_waitConfirmed", rpc.WaitConfirmedParam{
		TxID:      txid,
		TimeoutMS: c.Duration("wait-timeout").Milliseconds(),
	}, &res)
	if err != nil {
		return err
	}
	return printJSON(c, res)
}
