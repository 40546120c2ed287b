package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const (
	defaultNetwork   = "sepolia"
	defaultAlgorithm = "fastest"
	defaultInterval  = 25
	defaultCallMS    = 5000

	configFile  = "config.json"
	walletsFile = "wallets.json"
	txlogFile   = "txlog.json"
	syncFile    = "sync.json"
)

// DefaultDir returns ~/.w3sale.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home dir: %w", err)
	}
	return filepath.Join(home, ".w3sale"), nil
}

// Load reads config from dir (or creates defaults). dir defaults to ~/.w3sale.
func Load(dir string) (*Config, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	path := filepath.Join(dir, configFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.configDir = dir
	if cfg.CustomRPCs == nil {
		cfg.CustomRPCs = make(map[string][]string)
	}
	if cfg.Sales == nil {
		cfg.Sales = make(map[string]SaleEntry)
	}

	return cfg, nil
}

// Save writes the config to disk. Environment overrides are not persisted.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// TxLogPath returns the path of the submitted-transaction journal.
func (c *Config) TxLogPath() string {
	return filepath.Join(c.configDir, txlogFile)
}

// Network returns the target network name: the environment override if set,
// otherwise the configured default.
func (c *Config) Network() string {
	if c.env.Network != "" {
		return c.env.Network
	}
	return c.DefaultNetwork
}

// ChainIDOverride returns the CHAIN_ID override, or 0 to use the registry.
func (c *Config) ChainIDOverride() int64 {
	return c.env.ChainID
}

// Overrides returns the environment overrides in effect.
func (c *Config) Overrides() Overrides {
	return c.env
}

// AddRPC adds a custom fallback RPC URL for a network.
func (c *Config) AddRPC(network, url string) error {
	if c.CustomRPCs == nil {
		c.CustomRPCs = make(map[string][]string)
	}
	if slices.Contains(c.CustomRPCs[network], url) {
		return fmt.Errorf("RPC %s already exists for network %s", url, network)
	}
	c.CustomRPCs[network] = append(c.CustomRPCs[network], url)
	return nil
}

// RemoveRPC removes a custom fallback RPC URL for a network.
func (c *Config) RemoveRPC(network, url string) error {
	rpcs := c.CustomRPCs[network]
	idx := slices.Index(rpcs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s not found for network %s", url, network)
	}
	c.CustomRPCs[network] = slices.Delete(rpcs, idx, idx+1)
	return nil
}

// GetRPCs returns custom RPCs for a network.
func (c *Config) GetRPCs(network string) []string {
	return c.CustomRPCs[network]
}

// FallbackRPCs returns the read-only RPC URLs for network in preference
// order: FALLBACK_RPC, custom RPCs, then the built-in list. Duplicates are
// dropped.
func (c *Config) FallbackRPCs(network string, builtin []string) []string {
	var out []string
	add := func(urls ...string) {
		for _, u := range urls {
			if u != "" && !slices.Contains(out, u) {
				out = append(out, u)
			}
		}
	}
	add(c.env.FallbackRPC)
	add(c.CustomRPCs[network]...)
	add(builtin...)
	return out
}

// Sale returns the stored sale entry for network.
func (c *Config) Sale(network string) SaleEntry {
	return c.Sales[network]
}

// SetSale stores the sale entry for network.
func (c *Config) SetSale(network string, e SaleEntry) {
	if c.Sales == nil {
		c.Sales = make(map[string]SaleEntry)
	}
	c.Sales[network] = e
}

// CallTimeout is the deadline for a single timeboxed read.
func (c *Config) CallTimeout() time.Duration {
	if c.CallTimeoutMS <= 0 {
		return DefaultCallTimeout
	}
	return time.Duration(c.CallTimeoutMS) * time.Millisecond
}

// WatchEvery is the dashboard auto-refresh period.
func (c *Config) WatchEvery() time.Duration {
	if c.WatchInterval <= 0 {
		return DefaultWatchInterval
	}
	return time.Duration(c.WatchInterval) * time.Second
}

// ScanBudget is the wall-clock limit for a receipt log scan; 0 means none.
func (c *Config) ScanBudget() time.Duration {
	if c.ScanBudgetSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ScanBudgetSeconds) * time.Second
}

// LoadWallets reads wallets.json.
func (c *Config) LoadWallets() (*WalletsFile, error) {
	return loadJSON[WalletsFile](filepath.Join(c.configDir, walletsFile))
}

// SaveWallets writes wallets.json.
func (c *Config) SaveWallets(wf *WalletsFile) error {
	return saveJSON(filepath.Join(c.configDir, walletsFile), wf)
}

// LoadSync reads sync.json.
func (c *Config) LoadSync() (*SyncConfig, error) {
	return loadJSON[SyncConfig](filepath.Join(c.configDir, syncFile))
}

// SaveSync writes sync.json.
func (c *Config) SaveSync(sc *SyncConfig) error {
	return saveJSON(filepath.Join(c.configDir, syncFile), sc)
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		DefaultNetwork: defaultNetwork,
		RPCAlgorithm:   defaultAlgorithm,
		WatchInterval:  defaultInterval,
		CallTimeoutMS:  defaultCallMS,
		CustomRPCs:     make(map[string][]string),
		Sales:          make(map[string]SaleEntry),
		configDir:      dir,
	}
}

func loadJSON[T any](path string) (*T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &zero, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
