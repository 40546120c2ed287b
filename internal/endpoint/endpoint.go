// Package endpoint resolves the node connections the sale client talks
// through: a wallet-backed one for writes and, when no wallet is attached, a
// read-only fallback.
package endpoint

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

var (
	ErrNoConnection = errors.New("no connection available")
	ErrNoWallet     = errors.New("no wallet connected")
)

// Kind distinguishes how an Endpoint was obtained.
type Kind int

const (
	ReadOnly Kind = iota
	WalletBacked
)

func (k Kind) String() string {
	if k == WalletBacked {
		return "wallet"
	}
	return "read-only"
}

// Wallet is the signing boundary. Implementations own the private key and any
// user prompts; the client only sees the account and signed transactions.
type Wallet interface {
	Account(ctx context.Context) (common.Address, error)
	RPCURL() string
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Endpoint is an immutable connection handle.
type Endpoint struct {
	kind    Kind
	node    chain.Node
	url     string
	account common.Address
	wallet  Wallet
}

func (e *Endpoint) Kind() Kind       { return e.kind }
func (e *Endpoint) Node() chain.Node { return e.node }
func (e *Endpoint) URL() string      { return e.url }

// Account returns the wallet account; ok is false for read-only endpoints.
func (e *Endpoint) Account() (common.Address, bool) {
	return e.account, e.kind == WalletBacked
}

// SignTx signs through the wallet boundary.
func (e *Endpoint) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if e.wallet == nil {
		return nil, ErrNoWallet
	}
	return e.wallet.SignTx(ctx, tx, chainID)
}

// Source hands out read endpoints. *Resolver implements it.
type Source interface {
	ReadEndpoint(ctx context.Context) (*Endpoint, error)
}

var _ Source = (*Resolver)(nil)
