package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

// DisclosePrompt asks the user whether to reveal the account to the client.
// It is consulted once per Signer.
type DisclosePrompt func(ctx context.Context, w *Wallet) (bool, error)

// ApprovePrompt asks the user to approve one transaction before it is signed.
type ApprovePrompt func(ctx context.Context, w *Wallet, tx *types.Transaction) (bool, error)

// Signer is the wallet boundary: it discloses an account and signs
// transactions for a signing wallet. Private keys never leave this package.
type Signer struct {
	wallet   *Wallet
	ks       KeyBackend
	rpcURL   string
	disclose DisclosePrompt
	approve  ApprovePrompt

	mu        sync.Mutex
	disclosed bool
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithRPCURL sets the node URL the wallet connects through.
func WithRPCURL(url string) SignerOption {
	return func(s *Signer) { s.rpcURL = url }
}

// WithDisclosure sets the one-time account disclosure prompt.
func WithDisclosure(p DisclosePrompt) SignerOption {
	return func(s *Signer) { s.disclose = p }
}

// WithApproval sets the per-transaction approval prompt.
func WithApproval(p ApprovePrompt) SignerOption {
	return func(s *Signer) { s.approve = p }
}

// NewSigner creates a signer for the given wallet. Without prompts every
// disclosure and signature is approved.
func NewSigner(w *Wallet, ks KeyBackend, opts ...SignerOption) *Signer {
	s := &Signer{wallet: w, ks: ks}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Wallet returns the wallet metadata.
func (s *Signer) Wallet() *Wallet { return s.wallet }

// RPCURL returns the node URL the wallet connects through.
func (s *Signer) RPCURL() string { return s.rpcURL }

// Account returns the wallet address, asking for disclosure on first use.
// A declined disclosure returns chain.ErrUserRejected and is asked again next
// time.
func (s *Signer) Account(ctx context.Context) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.disclosed && s.disclose != nil {
		ok, err := s.disclose(ctx, s.wallet)
		if err != nil {
			return common.Address{}, err
		}
		if !ok {
			return common.Address{}, fmt.Errorf("account disclosure: %w", chain.ErrUserRejected)
		}
	}
	s.disclosed = true
	return s.wallet.Addr(), nil
}

// SignTx asks for approval and signs tx for chainID.
func (s *Signer) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if s.wallet.Type != TypeSigning {
		return nil, fmt.Errorf("%w: %q", ErrWatchOnly, s.wallet.Name)
	}

	if s.approve != nil {
		ok, err := s.approve(ctx, s.wallet, tx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("signature: %w", chain.ErrUserRejected)
		}
	}

	hexKey, err := s.ks.Retrieve(s.wallet.KeyRef)
	if err != nil {
		return nil, fmt.Errorf("retrieving key: %w", err)
	}
	privKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if from := crypto.PubkeyToAddress(privKey.PublicKey); !strings.EqualFold(from.Hex(), s.wallet.Address) {
		return nil, fmt.Errorf("stored key belongs to %s, not %s", from.Hex(), s.wallet.Address)
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), privKey)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}
