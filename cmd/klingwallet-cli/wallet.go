package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/Klingon-tech/klingwallet/internal/rpc"
)

var walletCmd = cli.Command{
	Name:  "wallet",
	Usage: "create, restore and manage wallets",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "create a wallet with a fresh 24-word mnemonic",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Usage: "Wallet name", Required: true},
				passphraseFlag,
			},
			Action: walletCreateAction,
		},
		{
			Name:  "restore",
			Usage: "restore a wallet from its mnemonic",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Usage: "Wallet name", Required: true},
				&cli.StringFlag{Name: "mnemonic", Usage: "BIP-39 mnemonic", Required: true},
				passphraseFlag,
			},
			Action: walletRestoreAction,
		},
		{
			Name:  "open",
			Usage: "open a wallet; with --locked no passphrase is needed",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Usage: "Wallet name", Required: true},
				&cli.BoolFlag{Name: "locked", Usage: "Open without unlocking"},
				passphraseFlag,
			},
			Action: walletOpenAction,
		},
		{
			Name:   "close",
			Usage:  "close an open wallet",
			Flags:  []cli.Flag{handleFlag},
			Action: handleAction("wallet_close"),
		},
		{
			Name:   "lock",
			Usage:  "drop the key material of an open wallet",
			Flags:  []cli.Flag{handleFlag},
			Action: handleAction("wallet_lock"),
		},
		{
			Name:   "unlock",
			Usage:  "unlock an open wallet",
			Flags:  []cli.Flag{handleFlag, passphraseFlag},
			Action: walletUnlockAction,
		},
		{
			Name:  "list",
			Usage: "list wallets known to the daemon",
			Action: func(c *cli.Context) error {
				return call(c, "wallet_list", nil)
			},
		},
	},
}

var addressCmd = cli.Command{
	Name:  "address",
	Usage: "allocate and list addresses",
	Subcommands: []*cli.Command{
		{
			Name:  "new",
			Usage: "allocate the next transfer (or staking) address",
			Flags: []cli.Flag{
				handleFlag,
				&cli.BoolFlag{Name: "staking", Usage: "Allocate a staking address"},
			},
			Action: func(c *cli.Context) error {
				method := "wallet_createTransferAddress"
				if c.Bool("staking") {
					method = "wallet_createStakingAddress"
				}
				return call(c, method, rpc.HandleParam{Handle: c.String(flagHandle)})
			},
		},
		{
			Name:   "list",
			Usage:  "list allocated addresses",
			Flags:  []cli.Flag{handleFlag},
			Action: handleAction("wallet_listAddresses"),
		},
	},
}

var viewKeyCmd = cli.Command{
	Name:  "viewkey",
	Usage: "export the wallet view key",
	Flags: []cli.Flag{
		handleFlag,
		&cli.BoolFlag{Name: "full", Usage: "Include the secret half"},
	},
	Action: func(c *cli.Context) error {
		redacted := !c.Bool("full")
		return call(c, "wallet_getViewKey", rpc.ViewKeyParam{Handle: c.String(flagHandle), Redacted: &redacted})
	},
}

var balanceCmd = cli.Command{
	Name:   "balance",
	Usage:  "show total, pending and available balance",
	Flags:  []cli.Flag{handleFlag},
	Action: handleAction("wallet_balance"),
}

var historyCmd = cli.Command{
	Name:  "history",
	Usage: "list confirmed transactions",
	Flags: []cli.Flag{
		handleFlag,
		&cli.IntFlag{Name: "offset", Usage: "Records to skip"},
		&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum records (0 = all)"},
		&cli.BoolFlag{Name: "reverse", Usage: "Most recent first"},
	},
	Action: func(c *cli.Context) error {
		return call(c, "wallet_transactions", rpc.TransactionsParam{
			Handle:  c.String(flagHandle),
			Offset:  c.Int("offset"),
			Limit:   c.Int("limit"),
			Reverse: c.Bool("reverse"),
		})
	},
}

var outputsCmd = cli.Command{
	Name:   "outputs",
	Usage:  "list tracked outputs and their states",
	Flags:  []cli.Flag{handleFlag},
	Action: handleAction("wallet_outputs"),
}

func handleAction(method string) cli.ActionFunc {
	return func(c *cli.Context) error {
		return call(c, method, rpc.HandleParam{Handle: c.String(flagHandle)})
	}
}

func walletCreateAction(c *cli.Context) error {
	pw, err := passphrase(c, true)
	if err != nil {
		return err
	}
	var res rpc.WalletCreateResult
	if err := getClient(c).Call(c.Context, "wallet_create", rpc.WalletCreateParam{Name: c.String("name"), Passphrase: pw}, &res); err != nil {
		return err
	}
	fmt.Fprintln(c.App.ErrWriter, "Mnemonic (write this down!):")
	fmt.Fprintf(c.App.ErrWriter, "  %s\n\n", res.Mnemonic)
	return printJSON(c, rpc.HandleResult{Handle: res.Handle})
}

func walletRestoreAction(c *cli.Context) error {
	pw, err := passphrase(c, true)
	if err != nil {
		return err
	}
	return call(c, "wallet_restore", rpc.WalletRestoreParam{
		Name:       c.String("name"),
		Passphrase: pw,
		Mnemonic:   c.String("mnemonic"),
	})
}

func walletOpenAction(c *cli.Context) error {
	params := rpc.WalletOpenParam{Name: c.String("name")}
	if !c.Bool("locked") {
		pw, err := passphrase(c, false)
		if err != nil {
			return err
		}
		params.Passphrase = pw
	}
	return call(c, "wallet_open", params)
}

func walletUnlockAction(c *cli.Context) error {
	pw, err := passphrase(c, false)
	if err != nil {
		return err
	}
	return call(c, "wallet_unlock", rpc.UnlockParam{Handle: c.String(flagHandle), Passphrase: pw})
}
