// Package chaintest provides an in-memory chain.Node for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

// ErrNoHandler is returned by CallContract for an unregistered function,
// mimicking a contract that reverts on an unknown selector.
var ErrNoHandler = errors.New("execution reverted")

// CallHandler answers one eth_call.
type CallHandler func(msg ethereum.CallMsg) ([]byte, error)

type callKey struct {
	to       common.Address
	selector string
}

// Node is a programmable chain.Node. Zero value is usable; exported fields
// may be set before the node is shared between goroutines.
type Node struct {
	ID   *big.Int
	Head uint64

	// Delay is applied to every call that takes a context.
	Delay time.Duration

	BlockNumberErr error
	ChainIDErr     error
	BalanceErr     error

	FilterLogsFn  func(q ethereum.FilterQuery) ([]types.Log, error)
	EstimateGasFn func(msg ethereum.CallMsg) (uint64, error)
	SendFn        func(tx *types.Transaction) error
	ReceiptFn     func(hash common.Hash) (*types.Receipt, error)

	mu       sync.Mutex
	handlers map[callKey]CallHandler
	balances map[common.Address]*big.Int
	calls    []ethereum.CallMsg
	queries  []ethereum.FilterQuery
	sent     []*types.Transaction
	closed   bool
}

var _ chain.Node = (*Node)(nil)

// New returns a node reporting the given chain ID and head block.
func New(chainID int64, head uint64) *Node {
	return &Node{ID: big.NewInt(chainID), Head: head}
}

// On registers a handler for calls to `to` with the given function signature,
// e.g. "rate()". An empty signature matches calls with no calldata.
func (n *Node) On(to common.Address, signature string, h CallHandler) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handlers == nil {
		n.handlers = make(map[callKey]CallHandler)
	}
	n.handlers[callKey{to: to, selector: selector(signature)}] = h
	return n
}

// Returns registers a handler that always answers with out.
func (n *Node) Returns(to common.Address, signature string, out []byte) *Node {
	return n.On(to, signature, func(ethereum.CallMsg) ([]byte, error) { return out, nil })
}

// Fails registers a handler that always fails with err.
func (n *Node) Fails(to common.Address, signature string, err error) *Node {
	return n.On(to, signature, func(ethereum.CallMsg) ([]byte, error) { return nil, err })
}

// SetBalance sets the native balance reported for addr.
func (n *Node) SetBalance(addr common.Address, wei *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.balances == nil {
		n.balances = make(map[common.Address]*big.Int)
	}
	n.balances[addr] = wei
}

// Calls returns every eth_call received, in order.
func (n *Node) Calls() []ethereum.CallMsg {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ethereum.CallMsg(nil), n.calls...)
}

// Queries returns every eth_getLogs filter received, in order.
func (n *Node) Queries() []ethereum.FilterQuery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ethereum.FilterQuery(nil), n.queries...)
}

// Sent returns every broadcast transaction.
func (n *Node) Sent() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

// Closed reports whether Close was called.
func (n *Node) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func (n *Node) wait(ctx context.Context) error {
	if n.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(n.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Node) ChainID(ctx context.Context) (*big.Int, error) {
	if err := n.wait(ctx); err != nil {
		return nil, err
	}
	if n.ChainIDErr != nil {
		return nil, n.ChainIDErr
	}
	if n.ID == nil {
		return big.NewInt(1), nil
	}
	return new(big.Int).Set(n.ID), nil
}

func (n *Node) BlockNumber(ctx context.Context) (uint64, error) {
	if err := n.wait(ctx); err != nil {
		return 0, err
	}
	return n.Head, n.BlockNumberErr
}

func (n *Node) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if err := n.wait(ctx); err != nil {
		return nil, err
	}
	if n.BalanceErr != nil {
		return nil, n.BalanceErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if b, ok := n.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (n *Node) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := n.wait(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.calls = append(n.calls, msg)
	var to common.Address
	if msg.To != nil {
		to = *msg.To
	}
	sel := ""
	if len(msg.Data) >= 4 {
		sel = string(msg.Data[:4])
	}
	h, ok := n.handlers[callKey{to: to, selector: sel}]
	n.mu.Unlock()
	if !ok {
		return nil, ErrNoHandler
	}
	return h(msg)
}

func (n *Node) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := n.wait(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.queries = append(n.queries, q)
	n.mu.Unlock()
	if n.FilterLogsFn == nil {
		return nil, nil
	}
	return n.FilterLogsFn(q)
}

func (n *Node) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := n.wait(ctx); err != nil {
		return 0, err
	}
	if n.EstimateGasFn != nil {
		return n.EstimateGasFn(msg)
	}
	return 100_000, nil
}

func (n *Node) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (n *Node) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (n *Node) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return uint64(len(n.sent)), nil
}

func (n *Node) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := n.wait(ctx); err != nil {
		return err
	}
	if n.SendFn != nil {
		if err := n.SendFn(tx); err != nil {
			return err
		}
	}
	n.mu.Lock()
	n.sent = append(n.sent, tx)
	n.mu.Unlock()
	return nil
}

func (n *Node) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := n.wait(ctx); err != nil {
		return nil, err
	}
	if n.ReceiptFn != nil {
		return n.ReceiptFn(hash)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, tx := range n.sent {
		if tx.Hash() == hash {
			return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: new(big.Int).SetUint64(n.Head)}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (n *Node) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}

// --- ABI-encoded return values ---

func selector(signature string) string {
	if signature == "" {
		return ""
	}
	return string(crypto.Keccak256([]byte(signature))[:4])
}

// Uint encodes v as a uint256 return value.
func Uint(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

// Uint64 encodes v as a uint256 return value.
func Uint64(v uint64) []byte {
	return Uint(new(big.Int).SetUint64(v))
}

// Address encodes a as an address return value.
func Address(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

// String encodes s as a dynamic string return value.
func String(s string) []byte {
	t, _ := abi.NewType("string", "", nil)
	out, err := abi.Arguments{{Type: t}}.Pack(s)
	if err != nil {
		panic(fmt.Sprintf("packing string: %v", err))
	}
	return out
}

// Bytes32String encodes s the way legacy tokens return symbol().
func Bytes32String(s string) []byte {
	return common.RightPadBytes([]byte(s), 32)
}

// Wei returns n·10^18.
func Wei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}
