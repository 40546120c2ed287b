package config

import (
	"github.com/ethereum/go-ethereum/common"
)

// AddressBook is the resolved set of contract addresses for one network.
// A nil address is not configured.
type AddressBook struct {
	Network     string
	Sale        *common.Address
	Token       *common.Address
	Receipt     *common.Address
	DeployBlock uint64
}

// AddressBook merges the stored sale entry for network with environment
// overrides. Malformed addresses are reported; missing ones are left nil and
// only become errors when a caller requires them.
func (c *Config) AddressBook(network string) (AddressBook, error) {
	e := c.Sale(network)
	book := AddressBook{Network: network, DeployBlock: e.DeployBlock}

	pick := func(override, stored string) string {
		if override != "" {
			return override
		}
		return stored
	}

	var err error
	if book.Sale, err = parseAddress("sale address", pick(c.env.Sale, e.Sale)); err != nil {
		return book, err
	}
	if book.Token, err = parseAddress("token address", pick(c.env.Token, e.Token)); err != nil {
		return book, err
	}
	if book.Receipt, err = parseAddress("receipt address", pick(c.env.Receipt, e.Receipt)); err != nil {
		return book, err
	}
	if c.env.DeployBlock != nil {
		book.DeployBlock = *c.env.DeployBlock
	}
	return book, nil
}

// RequireSale returns the sale address or a *Error explaining how to set it.
func (b AddressBook) RequireSale() (common.Address, error) {
	if b.Sale == nil {
		return common.Address{}, Missing("sale address",
			"set SALE_ADDRESS or run `w3sale config set-sale --network "+b.Network+" <address>`")
	}
	return *b.Sale, nil
}

func parseAddress(key, s string) (*common.Address, error) {
	if s == "" {
		return nil, nil
	}
	if !common.IsHexAddress(s) {
		return nil, Invalid(key, s)
	}
	a := common.HexToAddress(s)
	return &a, nil
}
