// Package config handles wallet daemon configuration.
//
// Settings come, in increasing priority, from built-in defaults, the config
// file, a .env file, KLINGWALLET_* environment variables and command-line
// flags.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Fee policy names.
const (
	FeeZero   = "zero"
	FeeLinear = "linear"
)

// Config holds the daemon runtime configuration.
type Config struct {
	// Core
	Network NetworkType `mapstructure:"network"`
	DataDir string      `mapstructure:"datadir"`

	// RPC server
	RPC RPCConfig `mapstructure:"rpc"`

	// Remote node, used unless the devnet is enabled
	Node NodeConfig `mapstructure:"node"`

	// In-process development chain
	Devnet DevnetConfig `mapstructure:"devnet"`

	Fee      FeeConfig      `mapstructure:"fee"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Keystore KeystoreConfig `mapstructure:"keystore"`
	Storage  StorageConfig  `mapstructure:"storage"`

	// Logging
	Log LogConfig `mapstructure:"log"`
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Addr        string   `mapstructure:"addr"`
	Port        int      `mapstructure:"port"`
	AllowedIPs  []string `mapstructure:"allowed"`
	CORSOrigins []string `mapstructure:"cors"` // Allowed CORS origins ("*" = all).
}

// ListenAddr returns addr:port.
func (r RPCConfig) ListenAddr() string {
	return net.JoinHostPort(r.Addr, strconv.Itoa(r.Port))
}

// NodeConfig points at a remote node's JSON-RPC endpoint.
type NodeConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DevnetConfig holds in-process chain settings.
type DevnetConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BlockInterval time.Duration `mapstructure:"block_interval"` // 0 = mine only on request
}

// FeeConfig selects the fee policy applied to sends.
type FeeConfig struct {
	Policy  string `mapstructure:"policy"` // zero or linear
	Base    uint64 `mapstructure:"base"`
	PerByte uint64 `mapstructure:"per_byte"`
}

// SyncConfig holds background synchronization settings.
type SyncConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
}

// KeystoreConfig holds Argon2id parameters for new keystore files.
type KeystoreConfig struct {
	Memory      uint32 `mapstructure:"memory"` // KiB
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
}

// StorageConfig tunes the Badger databases.
type StorageConfig struct {
	SyncWrites bool `mapstructure:"sync_writes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	JSON  bool   `mapstructure:"json"`
}

// FeePolicy returns the configured fee policy.
func (c *Config) FeePolicy() tx.FeePolicy {
	if c.Fee.Policy == FeeLinear {
		return tx.LinearFee{Base: c.Fee.Base, PerByte: c.Fee.PerByte}
	}
	return tx.ZeroFee{}
}

// KDF returns the keystore encryption parameters.
func (c *Config) KDF() wallet.EncryptionParams {
	return wallet.EncryptionParams{
		Memory:      c.Keystore.Memory,
		Iterations:  c.Keystore.Iterations,
		Parallelism: c.Keystore.Parallelism,
	}
}

// AddressNetwork returns the bech32 prefixes of the configured network.
func (c *Config) AddressNetwork() types.Network {
	if c.Network == Testnet {
		return types.Testnet
	}
	return types.Mainnet
}

func (c *Config) String() string {
	return fmt.Sprintf("network=%s datadir=%s devnet=%t fee=%s", c.Network, c.DataDir, c.Devnet.Enabled, c.FeePolicy())
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingwallet
//	macOS:   ~/Library/Application Support/Klingwallet
//	Windows: %APPDATA%\Klingwallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingwallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Klingwallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Klingwallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "Klingwallet")
	default:
		return filepath.Join(home, ".klingwallet")
	}
}

// ExpandPath resolves a leading "~" or "~/" to the user's home directory.
// Other paths, and "~user" forms, are returned unchanged.
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LedgerDir returns the ledger database directory.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.NetworkDataDir(), "ledger")
}

// DevnetDir returns the devnet block database directory.
func (c *Config) DevnetDir() string {
	return filepath.Join(c.NetworkDataDir(), "devnet")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "klingwallet.conf")
}
