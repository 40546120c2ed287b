package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names, most specific first. The VITE_ names are
// accepted so a frontend's .env can be reused as is.
var (
	envSale        = []string{"SALE_ADDRESS", "CROWDSALE_ADDRESS", "VITE_CROWDSALE_ADDRESS", "VITE_CROWDSALE_ADDR"}
	envToken       = []string{"TOKEN_ADDRESS", "VITE_TOKEN_ADDRESS"}
	envReceipt     = []string{"NFT_ADDRESS", "RECEIPT_ADDRESS", "VITE_NFT_ADDRESS"}
	envFallbackRPC = []string{"FALLBACK_RPC", "VITE_FALLBACK_RPC"}
	envNetwork     = []string{"NETWORK"}
	envChainID     = []string{"CHAIN_ID", "VITE_CHAIN_ID"}
	envDeployBlock = []string{"DEPLOY_BLOCK"}
)

// LoadEnvFiles loads .env and then .env.local from the working directory into
// the process environment. Missing files are ignored.
func LoadEnvFiles() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
}

// ApplyEnv reads overrides through lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	first := func(names []string) (string, string) {
		for _, n := range names {
			if v, ok := lookup(n); ok && strings.TrimSpace(v) != "" {
				return n, strings.TrimSpace(v)
			}
		}
		return "", ""
	}

	var o Overrides
	_, o.Sale = first(envSale)
	_, o.Token = first(envToken)
	_, o.Receipt = first(envReceipt)
	_, o.FallbackRPC = first(envFallbackRPC)
	_, o.Network = first(envNetwork)

	if name, v := first(envChainID); v != "" {
		id, err := parseChainID(v)
		if err != nil {
			return Invalid(name, v)
		}
		o.ChainID = id
	}
	if name, v := first(envDeployBlock); v != "" {
		b, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Invalid(name, v)
		}
		o.DeployBlock = &b
	}

	c.env = o
	return nil
}

// parseChainID accepts decimal or 0x-prefixed hex.
func parseChainID(s string) (int64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
