package config

import (
	"fmt"
	"net/url"
	"strings"

	klog "github.com/Klingon-tech/klingwallet/internal/log"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is required")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}

	if !cfg.Devnet.Enabled {
		if cfg.Node.Endpoint == "" {
			return fmt.Errorf("node.endpoint is required unless devnet.enabled is set")
		}
		u, err := url.Parse(cfg.Node.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("node.endpoint %q must be an http(s) URL", cfg.Node.Endpoint)
		}
	}
	if cfg.Devnet.BlockInterval < 0 {
		return fmt.Errorf("devnet.block_interval must not be negative")
	}

	cfg.Fee.Policy = strings.ToLower(strings.TrimSpace(cfg.Fee.Policy))
	switch cfg.Fee.Policy {
	case FeeZero:
	case FeeLinear:
		if cfg.Fee.Base == 0 && cfg.Fee.PerByte == 0 {
			return fmt.Errorf("fee.policy=linear needs fee.base or fee.per_byte")
		}
	default:
		return fmt.Errorf("fee.policy must be %q or %q", FeeZero, FeeLinear)
	}

	if cfg.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive")
	}
	if cfg.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be positive")
	}
	if err := cfg.KDF().Validate(); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	if _, err := klog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
