package chain

import (
	"errors"
	"strings"
)

// ErrNetworkNotFound is returned when a network is not in the registry.
var ErrNetworkNotFound = errors.New("network not found")

// Network holds the metadata w3sale needs for one EVM network.
type Network struct {
	Name           string   `json:"name"`
	DisplayName    string   `json:"display_name"`
	ChainID        int64    `json:"chain_id"`
	NativeCurrency string   `json:"native_currency"`
	RPCs           []string `json:"rpcs"`
	Explorer       string   `json:"explorer"`
	Testnet        bool     `json:"testnet"`
}

// TxURL returns the explorer link for a transaction hash, or "" when the
// network has no explorer (local devnets).
func (n *Network) TxURL(hash string) string {
	if n.Explorer == "" || hash == "" {
		return ""
	}
	return n.Explorer + "/tx/" + hash
}

// Registry is the set of networks a sale can be deployed on.
type Registry struct {
	networks []Network
	byName   map[string]*Network
	byID     map[int64]*Network
}

// NewRegistry returns the built-in network registry.
func NewRegistry() *Registry {
	networks := allNetworks()
	r := &Registry{
		networks: networks,
		byName:   make(map[string]*Network, len(networks)+2),
		byID:     make(map[int64]*Network, len(networks)),
	}
	for i := range r.networks {
		n := &r.networks[i]
		r.byName[n.Name] = n
		r.byID[n.ChainID] = n
	}
	// Hardhat and anvil share a chain ID and are addressed interchangeably.
	r.byName["localhost"] = r.byName["anvil"]
	r.byName["hardhat"] = r.byName["anvil"]
	return r
}

// All returns every network in the registry.
func (r *Registry) All() []Network {
	return r.networks
}

// GetByName finds a network by its slug name (e.g. "sepolia").
func (r *Registry) GetByName(name string) (*Network, error) {
	n, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	return n, nil
}

// GetByChainID finds a network by its numeric chain ID.
func (r *Registry) GetByChainID(id int64) (*Network, error) {
	n, ok := r.byID[id]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	return n, nil
}

// --- network data ---

func allNetworks() []Network {
	return []Network{
		{
			Name: "ethereum", DisplayName: "Ethereum", ChainID: 1, NativeCurrency: "ETH",
			RPCs:     []string{"https://eth.llamarpc.com", "https://ethereum-rpc.publicnode.com"},
			Explorer: "https://etherscan.io",
		},
		{
			Name: "sepolia", DisplayName: "Sepolia", ChainID: 11155111, NativeCurrency: "ETH",
			RPCs:     []string{"https://rpc.sepolia.org", "https://sepolia.gateway.tenderly.co", "https://ethereum-sepolia-rpc.publicnode.com"},
			Explorer: "https://sepolia.etherscan.io",
			Testnet:  true,
		},
		{
			Name: "holesky", DisplayName: "Holesky", ChainID: 17000, NativeCurrency: "ETH",
			RPCs:     []string{"https://ethereum-holesky-rpc.publicnode.com"},
			Explorer: "https://holesky.etherscan.io",
			Testnet:  true,
		},
		{
			Name: "base", DisplayName: "Base", ChainID: 8453, NativeCurrency: "ETH",
			RPCs:     []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			Explorer: "https://basescan.org",
		},
		{
			Name: "base-sepolia", DisplayName: "Base Sepolia", ChainID: 84532, NativeCurrency: "ETH",
			RPCs:     []string{"https://sepolia.base.org"},
			Explorer: "https://sepolia.basescan.org",
			Testnet:  true,
		},
		{
			Name: "polygon", DisplayName: "Polygon", ChainID: 137, NativeCurrency: "POL",
			RPCs:     []string{"https://polygon-rpc.com", "https://polygon.llamarpc.com"},
			Explorer: "https://polygonscan.com",
		},
		{
			Name: "anvil", DisplayName: "Local devnet", ChainID: 31337, NativeCurrency: "ETH",
			RPCs:    []string{"http://127.0.0.1:8545"},
			Testnet: true,
		},
	}
}
