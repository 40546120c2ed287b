package config

// Config holds all w3sale configuration.
type Config struct {
	DefaultNetwork    string               `json:"default_network"`
	DefaultWallet     string               `json:"default_wallet"`
	RPCAlgorithm      string               `json:"rpc_algorithm"`       // "fastest" | "round-robin" | "failover"
	WatchInterval     int                  `json:"watch_interval"`      // seconds
	CallTimeoutMS     int                  `json:"call_timeout_ms"`     // per remote read
	ScanBudgetSeconds int                  `json:"scan_budget_seconds"` // 0 = scan to head
	CustomRPCs        map[string][]string  `json:"custom_rpcs"`
	Sales             map[string]SaleEntry `json:"sales"` // keyed by network name

	// internal: config dir path used for Save()
	configDir string
	// internal: process environment overrides, never persisted
	env Overrides
}

// SaleEntry is the deployment of the sale on one network. Addresses are hex
// strings; empty means not configured.
type SaleEntry struct {
	Sale        string `json:"sale"`
	Token       string `json:"token,omitempty"`
	Receipt     string `json:"receipt,omitempty"`
	DeployBlock uint64 `json:"deploy_block,omitempty"`
}

// Overrides are values taken from the environment for this process only.
type Overrides struct {
	Network     string
	ChainID     int64
	Sale        string
	Token       string
	Receipt     string
	FallbackRPC string
	DeployBlock *uint64
}

// Wallet represents a stored wallet entry.
type Wallet struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Type      string `json:"type"`              // "watch-only" | "signing"
	KeyRef    string `json:"key_ref,omitempty"` // keychain reference for signing wallets
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at"`
}

// WalletsFile is the structure of wallets.json.
type WalletsFile struct {
	Wallets []Wallet `json:"wallets"`
}

// SyncConfig is the structure of sync.json: where deployment manifests are
// imported from.
type SyncConfig struct {
	Source     string `json:"source"`
	LastSynced string `json:"last_synced,omitempty"`
}
