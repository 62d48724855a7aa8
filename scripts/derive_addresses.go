// derive_addresses.go prints the view key and first transfer addresses of a
// mnemonic read from stdin, without touching a daemon or keystore.
// Usage: echo "<mnemonic>" | go run scripts/derive_addresses.go [count] [testnet]
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

func main() {
	count := 5
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || n <= 0 {
			fmt.Fprintln(os.Stderr, "usage: derive_addresses [count] [testnet]")
			os.Exit(1)
		}
		count = n
	}
	if len(os.Args) > 2 && os.Args[2] == "testnet" {
		types.SetNetwork(types.Testnet)
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	acct, seed, err := wallet.RestoreAccount(line, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for i := range seed {
		seed[i] = 0
	}

	fmt.Printf("viewkey=%s\n", hex.EncodeToString(acct.ViewPublicKey()))
	for i := 0; i < count; i++ {
		addr, err := acct.Address(wallet.ChangeExternal, uint32(i))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		path := wallet.KeyPath{Change: wallet.ChangeExternal, Index: uint32(i)}
		fmt.Printf("%s %s\n", path.Derivation(), addr.String())
	}
}
