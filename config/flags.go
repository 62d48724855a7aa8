package config

import (
	"strings"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

// Flag names shared by the daemon and its tests.
const (
	FlagConfig  = "config"
	FlagEnvFile = "env-file"
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"network":           "network",
	"datadir":           "datadir",
	"rpc":               "rpc.enabled",
	"rpc-addr":          "rpc.addr",
	"rpc-port":          "rpc.port",
	"rpc-allowed":       "rpc.allowed",
	"rpc-cors":          "rpc.cors",
	"node":              "node.endpoint",
	"node-timeout":      "node.timeout",
	"devnet":            "devnet.enabled",
	"devnet-block-time": "devnet.block_interval",
	"fee-policy":        "fee.policy",
	"fee-base":          "fee.base",
	"fee-per-byte":      "fee.per_byte",
	"sync-interval":     "sync.poll_interval",
	"sync-concurrency":  "sync.concurrency",
	"db-sync":           "storage.sync_writes",
	"log-level":         "log.level",
	"log-file":          "log.file",
	"log-json":          "log.json",
}

// Flags returns the daemon command-line flags.
func Flags() []cli.Flag {
	return []cli.Flag{
		// Core
		&cli.StringFlag{Name: FlagConfig, Aliases: []string{"c"}, Usage: "Config file path"},
		&cli.StringFlag{Name: FlagEnvFile, Value: ".env", Usage: "Dotenv file loaded before the environment"},
		&cli.StringFlag{Name: "network", Usage: "Network type (mainnet or testnet)"},
		&cli.StringFlag{Name: "datadir", Usage: "Data directory path"},

		// RPC
		&cli.BoolFlag{Name: "rpc", Value: true, Usage: "Enable RPC server"},
		&cli.StringFlag{Name: "rpc-addr", Usage: "RPC listen address"},
		&cli.IntFlag{Name: "rpc-port", Usage: "RPC listen port"},
		&cli.StringFlag{Name: "rpc-allowed", Usage: "Allowed IPs for RPC (comma-separated)"},
		&cli.StringFlag{Name: "rpc-cors", Usage: "Allowed CORS origins for RPC (comma-separated)"},

		// Node
		&cli.StringFlag{Name: "node", Usage: "Node JSON-RPC endpoint"},
		&cli.DurationFlag{Name: "node-timeout", Usage: "Node request timeout"},
		&cli.BoolFlag{Name: "devnet", Usage: "Run an in-process development chain instead of a remote node"},
		&cli.DurationFlag{Name: "devnet-block-time", Usage: "Devnet block interval (0 = mine on request)"},

		// Fees and sync
		&cli.StringFlag{Name: "fee-policy", Usage: "Fee policy (zero or linear)"},
		&cli.Uint64Flag{Name: "fee-base", Usage: "Linear fee base"},
		&cli.Uint64Flag{Name: "fee-per-byte", Usage: "Linear fee per byte"},
		&cli.DurationFlag{Name: "sync-interval", Usage: "Background sync interval"},
		&cli.IntFlag{Name: "sync-concurrency", Usage: "Wallets synced in parallel"},

		&cli.BoolFlag{Name: "db-sync", Usage: "Fsync every database commit"},

		// Logging
		&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)"},
		&cli.StringFlag{Name: "log-file", Usage: "Log file path"},
		&cli.BoolFlag{Name: "log-json", Usage: "Output logs as JSON"},
	}
}

// BindFlags copies explicitly set flags into v, where they override every
// other source.
func BindFlags(c *cli.Context, v *viper.Viper) {
	for flag, key := range flagKeys {
		if !c.IsSet(flag) {
			continue
		}
		switch flag {
		case "rpc-allowed", "rpc-cors":
			v.Set(key, splitList(c.String(flag)))
		default:
			v.Set(key, c.Value(flag))
		}
	}
}

// LoadFromCLI loads the configuration for a cli command.
func LoadFromCLI(c *cli.Context) (*Config, error) {
	v := NewViper()
	BindFlags(c, v)
	return Load(v, LoadOptions{
		ConfigFile: c.String(FlagConfig),
		EnvFile:    c.String(FlagEnvFile),
	})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
