package config

import "time"

// networkPorts holds the values that differ between networks.
var networkPorts = map[NetworkType]struct {
	rpc  int
	node string
}{
	Mainnet: {rpc: 9545, node: "http://127.0.0.1:8545"},
	Testnet: {rpc: 9645, node: "http://127.0.0.1:8645"},
}

// Default returns the built-in configuration for network. Unknown networks
// get the mainnet values, and Validate rejects them later.
func Default(network NetworkType) *Config {
	ports, ok := networkPorts[network]
	if !ok {
		network = Mainnet
		ports = networkPorts[Mainnet]
	}
	return &Config{
		Network: network,
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       ports.rpc,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Node:   NodeConfig{Endpoint: ports.node, Timeout: 10 * time.Second},
		Devnet: DevnetConfig{BlockInterval: 2 * time.Second},
		Fee:    FeeConfig{Policy: FeeLinear, Base: 1000, PerByte: 10},
		Sync:   SyncConfig{PollInterval: 5 * time.Second, Concurrency: 4},
		// 64 MiB, 3 passes, 4 lanes.
		Keystore: KeystoreConfig{Memory: 64 * 1024, Iterations: 3, Parallelism: 4},
		Log:      LogConfig{Level: "info"},
	}
}

// DefaultMainnet returns Default(Mainnet).
func DefaultMainnet() *Config { return Default(Mainnet) }
