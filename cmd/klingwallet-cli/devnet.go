package main

import (
	"github.com/urfave/cli/v2"

	"github.com/Klingon-tech/klingwallet/internal/rpc"
)

var devnetCmd = cli.Command{
	Name:  "devnet",
	Usage: "faucet and block production on a daemon running --devnet",
	Subcommands: []*cli.Command{
		{
			Name:  "fund",
			Usage: "pay faucet coins to an address",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "address", Usage: "Recipient transfer address", Required: true},
				&cli.StringFlag{Name: "amount", Usage: "Amount in base units", Required: true},
				&cli.StringSliceFlag{Name: "view-key", Usage: "Recipient view key (repeatable)", Required: true},
			},
			Action: func(c *cli.Context) error {
				return call(c, "devnet_fund", rpc.DevnetFundParam{
					Address:  c.String("address"),
					Amount:   c.String("amount"),
					ViewKeys: c.StringSlice("view-key"),
				})
			},
		},
		{
			Name:  "mine",
			Usage: "produce a block from the mempool",
			Action: func(c *cli.Context) error {
				return call(c, "devnet_mine", nil)
			},
		},
	},
}
