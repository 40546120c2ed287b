package dispatch_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/chain/chaintest"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/dispatch"
	"github.com/Mohsinsiddi/w3sale/internal/endpoint"
	"github.com/Mohsinsiddi/w3sale/internal/txlog"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
)

// Well-known Hardhat/Anvil test account #0.
const buyerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const sepoliaID = 11155111

var (
	buyer    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	stranger = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	saleAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// connect returns a resolver whose wallet signs as buyer through node.
func connect(t *testing.T, node *chaintest.Node, opts ...wallet.SignerOption) *endpoint.Resolver {
	t.Helper()
	ks := wallet.NewInMemoryKeystore()
	ref, err := ks.Store("buyer", buyerKey)
	require.NoError(t, err)

	w := &wallet.Wallet{Name: "buyer", Address: buyer.Hex(), Type: wallet.TypeSigning, KeyRef: ref}
	signer := wallet.NewSigner(w, ks, append([]wallet.SignerOption{wallet.WithRPCURL("wallet://node")}, opts...)...)

	r := endpoint.NewResolver(endpoint.Options{
		ChainID: sepoliaID,
		Network: "sepolia",
		Dial:    func(context.Context, string) (chain.Node, error) { return node, nil },
	})
	r.SetWallet(signer)
	return r
}

func book() config.AddressBook {
	return config.AddressBook{Network: "sepolia", Sale: &saleAddr}
}

func ok(common.Address) []byte { return nil }

func selector(sig string) []byte { return crypto.Keccak256([]byte(sig))[:4] }

func fastOpts() dispatch.Options {
	return dispatch.Options{Network: "sepolia", ReceiptPoll: 5 * time.Millisecond}
}

func buyNode() *chaintest.Node {
	return chaintest.New(sepoliaID, 100)
}

// ---------------------------------------------------------------------------
// Buy
// ---------------------------------------------------------------------------

func TestBuyFirstCandidateConfirmed(t *testing.T) {
	node := buyNode().Returns(saleAddr, "buyTokens()", ok(buyer))
	journal := txlog.Open(filepath.Join(t.TempDir(), "txlog.json"))

	var submitted []dispatch.Attempt
	opts := fastOpts()
	opts.Recorder = journal
	opts.OnSubmitted = func(a dispatch.Attempt) { submitted = append(submitted, a) }

	amount := chaintest.Wei(1)
	res, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), opts).Buy(context.Background(), amount, buyer)
	require.NoError(t, err)

	assert.Equal(t, dispatch.Confirmed, res.Final.Outcome)
	assert.Equal(t, "buyTokens()", res.Final.Candidate)
	require.Len(t, res.Attempts, 1)
	assert.True(t, res.Attempts[0].Validated)
	assert.True(t, res.Attempts[0].Submitted)
	require.NotNil(t, res.Final.Receipt)

	sent := node.Sent()
	require.Len(t, sent, 1)
	tx := sent[0]
	assert.Equal(t, saleAddr, *tx.To())
	assert.Equal(t, 0, tx.Value().Cmp(amount))
	assert.Equal(t, selector("buyTokens()"), tx.Data())
	assert.Equal(t, *res.Final.Hash, tx.Hash())

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	require.NoError(t, err)
	assert.Equal(t, buyer, from)
	assert.Equal(t, int64(sepoliaID), tx.ChainId().Int64())
	assert.Equal(t, int64(1e9), tx.GasTipCap().Int64())
	assert.Equal(t, int64(5e9), tx.GasFeeCap().Int64(), "2 × base price + tip")

	require.Len(t, submitted, 1)
	assert.Equal(t, dispatch.Pending, submitted[0].Outcome)

	entries, err := journal.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, txlog.TypePurchase, entries[0].Type)
	assert.Equal(t, tx.Hash().Hex(), entries[0].Hash)
	assert.Equal(t, "buyTokens()", entries[0].Candidate)
	assert.Equal(t, amount.String(), entries[0].Value)
}

func TestBuySkipsFailingCandidate(t *testing.T) {
	node := buyNode().
		Fails(saleAddr, "buyTokens()", errors.New("execution reverted")).
		Returns(saleAddr, "buyTokens(address)", ok(buyer))

	res, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).
		Buy(context.Background(), chaintest.Wei(1), buyer)
	require.NoError(t, err)

	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "buyTokens()", res.Attempts[0].Candidate)
	assert.Equal(t, dispatch.Failed, res.Attempts[0].Outcome)
	assert.False(t, res.Attempts[0].Validated)
	assert.False(t, res.Attempts[0].Submitted)

	assert.Equal(t, "buyTokens(address)", res.Final.Candidate)
	assert.Equal(t, dispatch.Confirmed, res.Final.Outcome)

	sent := node.Sent()
	require.Len(t, sent, 1)
	want := append(selector("buyTokens(address)"), common.LeftPadBytes(buyer.Bytes(), 32)...)
	assert.Equal(t, want, sent[0].Data())
}

func TestBuySubmitsAtMostOnce(t *testing.T) {
	node := buyNode()
	for _, sig := range []string{"buyTokens()", "buyTokens(address)", "buy()", "purchase()", ""} {
		node.Returns(saleAddr, sig, nil)
	}

	res, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).
		Buy(context.Background(), chaintest.Wei(1), buyer)
	require.NoError(t, err)

	assert.Len(t, node.Sent(), 1)
	assert.Len(t, res.Attempts, 1)
	n := 0
	for _, a := range res.Attempts {
		if a.Submitted {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestBuyFallsBackToTransfer(t *testing.T) {
	node := buyNode().Returns(saleAddr, "", nil)

	res, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).
		Buy(context.Background(), chaintest.Wei(2), buyer)
	require.NoError(t, err)

	assert.Len(t, res.Attempts, len(dispatch.PurchaseStrategies))
	assert.Equal(t, "transfer", res.Final.Candidate)
	assert.Equal(t, dispatch.Confirmed, res.Final.Outcome)

	sent := node.Sent()
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].Data())
	assert.Equal(t, 0, sent[0].Value().Cmp(chaintest.Wei(2)))
}

func TestBuyAllCandidatesFail(t *testing.T) {
	tests := []struct {
		name    string
		errs    map[string]error
		class   chain.ErrorClass
		message string
	}{
		{
			name: "insufficient funds wins",
			errs: map[string]error{
				"buyTokens()":        errors.New("execution reverted"),
				"buyTokens(address)": errors.New("insufficient funds for gas * price + value"),
				"buy()":              errors.New("execution reverted: Crowdsale: cap exceeded"),
			},
			class:   chain.ClassInsufficientFunds,
			message: "Insufficient funds. Top up ETH.",
		},
		{
			name: "revert reason beats bare revert",
			errs: map[string]error{
				"buyTokens()": errors.New("execution reverted"),
				"buy()":       errors.New("execution reverted: Crowdsale: cap exceeded"),
			},
			class:   chain.ClassReverted,
			message: "Transaction reverted: Crowdsale: cap exceeded",
		},
		{
			name:    "nothing but bare reverts",
			errs:    map[string]error{},
			class:   chain.ClassReverted,
			message: "Transaction reverted.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := buyNode()
			for sig, err := range tt.errs {
				node.Fails(saleAddr, sig, err)
			}

			res, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).
				Buy(context.Background(), chaintest.Wei(1), buyer)
			require.NoError(t, err)

			assert.Empty(t, node.Sent())
			assert.Len(t, res.Attempts, len(dispatch.PurchaseStrategies))
			assert.Equal(t, dispatch.Failed, res.Final.Outcome)
			assert.Equal(t, tt.class, res.Final.Class)
			assert.Equal(t, tt.message, res.Final.Message)
			assert.ErrorIs(t, res.Final.Err, dispatch.ErrAllCandidatesFailed)
			_, submitted := res.Submitted()
			assert.False(t, submitted)
		})
	}
}

func TestBuyUserRejectsSignature(t *testing.T) {
	node := buyNode().Returns(saleAddr, "buyTokens()", nil)
	decline := wallet.WithApproval(func(context.Context, *wallet.Wallet, *types.Transaction) (bool, error) {
		return false, nil
	})

	res, err := dispatch.NewPurchaseDispatcher(connect(t, node, decline), book(), fastOpts()).
		Buy(context.Background(), chaintest.Wei(1), buyer)
	require.NoError(t, err)

	assert.Equal(t, dispatch.Rejected, res.Final.Outcome)
	assert.Equal(t, chain.ClassUserRejected, res.Final.Class)
	assert.Equal(t, "Action canceled.", res.Final.Message)
	assert.False(t, res.Final.Submitted)
	assert.Len(t, res.Attempts, 1, "a cancellation does not move on to other candidates")
	assert.Empty(t, node.Sent())
}

func TestBuyRevertedOnChain(t *testing.T) {
	node := buyNode().Returns(saleAddr, "buyTokens()", nil)
	node.ReceiptFn = func(hash common.Hash) (*types.Receipt, error) {
		return &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: hash}, nil
	}

	res, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).
		Buy(context.Background(), chaintest.Wei(1), buyer)
	require.NoError(t, err)

	assert.True(t, res.Final.Submitted)
	assert.Equal(t, dispatch.Failed, res.Final.Outcome)
	assert.Equal(t, chain.ClassReverted, res.Final.Class)
	assert.ErrorIs(t, res.Final.Err, chain.ErrReverted)
}

func TestBuyUnconfirmedIsPending(t *testing.T) {
	node := buyNode().Returns(saleAddr, "buyTokens()", nil)
	node.ReceiptFn = func(common.Hash) (*types.Receipt, error) { return nil, ethereum.NotFound }

	opts := fastOpts()
	opts.ConfirmTimeout = 30 * time.Millisecond
	res, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), opts).
		Buy(context.Background(), chaintest.Wei(1), buyer)
	require.NoError(t, err)

	assert.Equal(t, dispatch.Pending, res.Final.Outcome)
	assert.True(t, res.Final.Submitted)
	require.NotNil(t, res.Final.Hash)
	assert.ErrorIs(t, res.Final.Err, chain.ErrReceiptTimeout)
}

func TestBuyBroadcastFailure(t *testing.T) {
	node := buyNode().Returns(saleAddr, "buyTokens()", nil)
	node.SendFn = func(*types.Transaction) error {
		return errors.New("insufficient funds for gas * price + value: balance 0")
	}

	res, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).
		Buy(context.Background(), chaintest.Wei(1), buyer)
	require.NoError(t, err)

	assert.False(t, res.Final.Submitted)
	assert.Equal(t, dispatch.Failed, res.Final.Outcome)
	assert.Equal(t, "Insufficient funds. Top up ETH.", res.Final.Message)
}

func TestBuyGasFallback(t *testing.T) {
	node := buyNode().Returns(saleAddr, "buyTokens()", nil)
	node.EstimateGasFn = func(ethereum.CallMsg) (uint64, error) { return 0, errors.New("gas required exceeds allowance") }

	_, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).
		Buy(context.Background(), chaintest.Wei(1), buyer)
	require.NoError(t, err)

	sent := node.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, config.GasLimitPurchase, sent[0].Gas())
}

func TestBuyDryRunCarriesValueAndSender(t *testing.T) {
	var seen ethereum.CallMsg
	node := buyNode().On(saleAddr, "buyTokens()", func(msg ethereum.CallMsg) ([]byte, error) {
		seen = msg
		return nil, nil
	})

	_, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).
		Buy(context.Background(), chaintest.Wei(3), common.Address{})
	require.NoError(t, err)
	assert.Equal(t, buyer, seen.From, "zero identity means the connected wallet")
	assert.Equal(t, 0, seen.Value.Cmp(chaintest.Wei(3)))
}

func TestBuyPreconditions(t *testing.T) {
	noSale := config.AddressBook{Network: "sepolia"}

	t.Run("zero amount", func(t *testing.T) {
		node := buyNode()
		_, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).Buy(context.Background(), big.NewInt(0), buyer)
		assert.ErrorIs(t, err, dispatch.ErrInvalidAmount)
	})
	t.Run("no sale address", func(t *testing.T) {
		_, err := dispatch.NewPurchaseDispatcher(connect(t, buyNode()), noSale, fastOpts()).Buy(context.Background(), big.NewInt(1), buyer)
		assert.ErrorIs(t, err, config.ErrConfig)
	})
	t.Run("no wallet", func(t *testing.T) {
		r := endpoint.NewResolver(endpoint.Options{FallbackURLs: []string{"https://fallback"}})
		_, err := dispatch.NewPurchaseDispatcher(r, book(), fastOpts()).Buy(context.Background(), big.NewInt(1), buyer)
		assert.ErrorIs(t, err, endpoint.ErrNoWallet)
	})
	t.Run("wrong network", func(t *testing.T) {
		node := chaintest.New(1, 100).Returns(saleAddr, "buyTokens()", nil)
		_, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).Buy(context.Background(), big.NewInt(1), buyer)
		assert.ErrorIs(t, err, chain.ErrWrongNetwork)
		assert.Empty(t, node.Sent())
		assert.Empty(t, node.Calls(), "no dry-run on the wrong network")
	})
	t.Run("identity mismatch", func(t *testing.T) {
		node := buyNode().Returns(saleAddr, "buyTokens()", nil)
		_, err := dispatch.NewPurchaseDispatcher(connect(t, node), book(), fastOpts()).Buy(context.Background(), big.NewInt(1), stranger)
		assert.ErrorIs(t, err, dispatch.ErrIdentityMismatch)
		assert.Empty(t, node.Sent())
	})
}

// ---------------------------------------------------------------------------
// Withdraw
// ---------------------------------------------------------------------------

func withdrawCalls(n *chaintest.Node) int {
	count := 0
	for _, c := range n.Calls() {
		if bytes.HasPrefix(c.Data, selector("withdraw()")) {
			count++
		}
	}
	return count
}

func TestWithdrawByNonOwner(t *testing.T) {
	node := buyNode().
		Returns(saleAddr, "owner()", chaintest.Address(buyer)).
		Returns(saleAddr, "withdraw()", nil)

	var prompts atomic.Int32
	approve := wallet.WithApproval(func(context.Context, *wallet.Wallet, *types.Transaction) (bool, error) {
		prompts.Add(1)
		return true, nil
	})

	res, err := dispatch.NewWithdrawDispatcher(connect(t, node, approve), book(), fastOpts()).
		Withdraw(context.Background(), stranger)
	require.NoError(t, err)

	assert.Equal(t, dispatch.Rejected, res.Final.Outcome)
	assert.Equal(t, chain.ClassNotOwner, res.Final.Class)
	assert.Equal(t, "Only the sale owner can withdraw.", res.Final.Message)
	assert.ErrorIs(t, res.Final.Err, chain.ErrNotOwner)

	assert.Empty(t, node.Sent())
	assert.Zero(t, withdrawCalls(node), "not even a dry-run")
	assert.Zero(t, prompts.Load(), "signer never prompted")
}

func TestWithdrawByOwner(t *testing.T) {
	node := buyNode().
		Returns(saleAddr, "owner()", chaintest.Address(buyer)).
		Returns(saleAddr, "withdraw()", nil)

	res, err := dispatch.NewWithdrawDispatcher(connect(t, node), book(), fastOpts()).
		Withdraw(context.Background(), buyer)
	require.NoError(t, err)

	assert.Equal(t, dispatch.Confirmed, res.Final.Outcome)
	sent := node.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, selector("withdraw()"), sent[0].Data())
	assert.Zero(t, sent[0].Value().Sign())
}

func TestWithdrawDefaultsToWalletIdentity(t *testing.T) {
	node := buyNode().
		Returns(saleAddr, "owner()", chaintest.Address(buyer)).
		Returns(saleAddr, "withdraw()", nil)

	res, err := dispatch.NewWithdrawDispatcher(connect(t, node), book(), fastOpts()).
		Withdraw(context.Background(), common.Address{})
	require.NoError(t, err)
	assert.Equal(t, dispatch.Confirmed, res.Final.Outcome)
}

func TestWithdrawOwnerReadFails(t *testing.T) {
	node := buyNode().Returns(saleAddr, "withdraw()", nil)

	res, err := dispatch.NewWithdrawDispatcher(connect(t, node), book(), fastOpts()).
		Withdraw(context.Background(), buyer)
	require.NoError(t, err)

	assert.Equal(t, dispatch.Failed, res.Final.Outcome)
	assert.Empty(t, node.Sent())
	assert.Zero(t, withdrawCalls(node))
}

func TestWithdrawRevertsInDryRun(t *testing.T) {
	node := buyNode().
		Returns(saleAddr, "owner()", chaintest.Address(buyer)).
		Fails(saleAddr, "withdraw()", errors.New("execution reverted: nothing to withdraw"))

	res, err := dispatch.NewWithdrawDispatcher(connect(t, node), book(), fastOpts()).
		Withdraw(context.Background(), buyer)
	require.NoError(t, err)

	assert.Equal(t, dispatch.Failed, res.Final.Outcome)
	assert.Equal(t, "Transaction reverted: nothing to withdraw", res.Final.Message)
	assert.Empty(t, node.Sent())
}
