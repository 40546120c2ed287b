// Package sale binds the token-sale, token and receipt contracts to a node.
package sale

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

// ErrUnexpectedOutput is returned when a call returns data of the wrong shape,
// typically because the address is not the expected contract.
var ErrUnexpectedOutput = errors.New("unexpected call output")

// Contract is a typed read handle on one deployed contract.
type Contract struct {
	Address common.Address
	abi     abi.ABI
	node    chain.Node
}

// Bind returns a Contract for addr using parsed.
func Bind(node chain.Node, addr common.Address, parsed abi.ABI) *Contract {
	return &Contract{Address: addr, abi: parsed, node: node}
}

// NewCrowdsale binds the sale contract.
func NewCrowdsale(node chain.Node, addr common.Address) *Contract {
	return Bind(node, addr, CrowdsaleABI)
}

// NewToken binds an ERC-20 token.
func NewToken(node chain.Node, addr common.Address) *Contract {
	return Bind(node, addr, ERC20ABI)
}

// NewReceipt binds the receipt NFT.
func NewReceipt(node chain.Node, addr common.Address) *Contract {
	return Bind(node, addr, ReceiptABI)
}

// Pack encodes calldata for method.
func (c *Contract) Pack(method string, args ...any) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", method, err)
	}
	return data, nil
}

// Call runs a read-only call of method and returns the decoded outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := c.node.CallContract(ctx, ethereum.CallMsg{To: &c.Address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", method, err)
	}
	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w: %v", method, ErrUnexpectedOutput, err)
	}
	return values, nil
}

// CallBig calls a method returning a single uint256.
func (c *Contract) CallBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	values, err := c.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := single[*big.Int](values)
	if !ok {
		return nil, fmt.Errorf("%s(): %w", method, ErrUnexpectedOutput)
	}
	return v, nil
}

// CallAddress calls a method returning a single address.
func (c *Contract) CallAddress(ctx context.Context, method string) (common.Address, error) {
	values, err := c.Call(ctx, method)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := single[common.Address](values)
	if !ok {
		return common.Address{}, fmt.Errorf("%s(): %w", method, ErrUnexpectedOutput)
	}
	return v, nil
}

// Decimals reads an ERC-20 decimals().
func (c *Contract) Decimals(ctx context.Context) (int, error) {
	values, err := c.Call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	v, ok := single[uint8](values)
	if !ok {
		return 0, fmt.Errorf("decimals(): %w", ErrUnexpectedOutput)
	}
	return int(v), nil
}

// Symbol reads an ERC-20 symbol(), accepting the bytes32 encoding used by
// some early tokens.
func (c *Contract) Symbol(ctx context.Context) (string, error) {
	data, err := c.Pack("symbol")
	if err != nil {
		return "", err
	}
	out, err := c.node.CallContract(ctx, ethereum.CallMsg{To: &c.Address, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("symbol(): %w", err)
	}
	if values, uerr := c.abi.Unpack("symbol", out); uerr == nil {
		if s, ok := single[string](values); ok {
			return s, nil
		}
	}
	if len(out) == 32 {
		s := string(bytes.TrimRight(out, "\x00"))
		if s != "" && utf8.ValidString(s) {
			return strings.TrimSpace(s), nil
		}
	}
	return "", fmt.Errorf("symbol(): %w", ErrUnexpectedOutput)
}

func single[T any](values []any) (T, bool) {
	var zero T
	if len(values) != 1 {
		return zero, false
	}
	v, ok := values[0].(T)
	return v, ok
}
