package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. KLINGWALLET_RPC_PORT.
const EnvPrefix = "KLINGWALLET"

// LoadOptions says where Load looks for optional inputs.
type LoadOptions struct {
	// ConfigFile overrides <datadir>/klingwallet.conf.
	ConfigFile string
	// EnvFile is a dotenv file loaded before the environment is read.
	// Variables already set in the environment win. Defaults to ".env".
	EnvFile string
}

// NewViper returns a viper instance reading KLINGWALLET_* variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load builds the configuration. Values already Set on v (flags) take
// priority over the environment, the config file and the defaults of the
// selected network.
func Load(v *viper.Viper, opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	path := ExpandPath(opts.ConfigFile)
	if path == "" {
		dir := v.GetString("datadir")
		if dir == "" {
			dir = DefaultDataDir()
		}
		dir = ExpandPath(dir)
		path = (&Config{DataDir: dir}).ConfigFile()
	}
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Network defaults apply below every explicit source.
	network := NetworkType(v.GetString("network"))
	if network == "" {
		network = Mainnet
	}
	cfg := Default(network)
	setDefaults(v, cfg)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir = ExpandPath(cfg.DataDir)
	cfg.Log.File = ExpandPath(cfg.Log.File)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err)
}

// setDefaults registers every key so environment variables are seen by
// Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("network", string(cfg.Network))
	v.SetDefault("datadir", cfg.DataDir)

	v.SetDefault("rpc.enabled", cfg.RPC.Enabled)
	v.SetDefault("rpc.addr", cfg.RPC.Addr)
	v.SetDefault("rpc.port", cfg.RPC.Port)
	v.SetDefault("rpc.allowed", cfg.RPC.AllowedIPs)
	v.SetDefault("rpc.cors", cfg.RPC.CORSOrigins)

	v.SetDefault("node.endpoint", cfg.Node.Endpoint)
	v.SetDefault("node.timeout", cfg.Node.Timeout)

	v.SetDefault("devnet.enabled", cfg.Devnet.Enabled)
	v.SetDefault("devnet.block_interval", cfg.Devnet.BlockInterval)

	v.SetDefault("fee.policy", cfg.Fee.Policy)
	v.SetDefault("fee.base", cfg.Fee.Base)
	v.SetDefault("fee.per_byte", cfg.Fee.PerByte)

	v.SetDefault("sync.poll_interval", cfg.Sync.PollInterval)
	v.SetDefault("sync.concurrency", cfg.Sync.Concurrency)

	v.SetDefault("keystore.memory", cfg.Keystore.Memory)
	v.SetDefault("keystore.iterations", cfg.Keystore.Iterations)
	v.SetDefault("keystore.parallelism", cfg.Keystore.Parallelism)

	v.SetDefault("storage.sync_writes", cfg.Storage.SyncWrites)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.json", cfg.Log.JSON)
}
