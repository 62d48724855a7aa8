package main

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/Klingon-tech/klingwallet/internal/rpcclient"
)

const (
	flagRPC        = "rpc"
	flagTimeout    = "timeout"
	flagHandle     = "handle"
	flagPassphrase = "passphrase"
)

// handleFlag selects the open wallet a command acts on.
var handleFlag = &cli.StringFlag{
	Name:     flagHandle,
	Aliases:  []string{"w"},
	Usage:    "Wallet handle returned by 'wallet open'",
	EnvVars:  []string{"KLINGWALLET_HANDLE"},
	Required: true,
}

var passphraseFlag = &cli.StringFlag{
	Name:  flagPassphrase,
	Usage: "Wallet passphrase (prompted when omitted)",
}

func getClient(c *cli.Context) *rpcclient.Client {
	return rpcclient.New(c.String(flagRPC), rpcclient.WithTimeout(c.Duration(flagTimeout)))
}

// call invokes method and prints the result as indented JSON.
func call(c *cli.Context, method string, params interface{}) error {
	var result json.RawMessage
	if err := getClient(c).Call(c.Context, method, params, &result); err != nil {
		return err
	}
	return printJSON(c, result)
}

func printJSON(c *cli.Context, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}

// passphrase returns the --passphrase flag or prompts for it. With confirm
// the prompt is repeated and both entries must match.
func passphrase(c *cli.Context, confirm bool) (string, error) {
	if c.IsSet(flagPassphrase) {
		return c.String(flagPassphrase), nil
	}
	pw, err := readPassword("Enter passphrase: ")
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if confirm {
		again, err := readPassword("Confirm passphrase: ")
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		if string(pw) != string(again) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return string(pw), nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}
