package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/chain/chaintest"
)

var txHash = common.HexToHash("0x01")

func TestWaitForReceiptAfterPending(t *testing.T) {
	node := chaintest.New(1, 10)
	lookups := 0
	node.ReceiptFn = func(h common.Hash) (*types.Receipt, error) {
		lookups++
		if lookups < 3 {
			return nil, ethereum.NotFound
		}
		return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: h, BlockNumber: big.NewInt(10)}, nil
	}

	r, err := chain.WaitForReceipt(context.Background(), node, txHash, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, txHash, r.TxHash)
	assert.Equal(t, 3, lookups)
}

func TestWaitForReceiptReverted(t *testing.T) {
	node := chaintest.New(1, 10)
	node.ReceiptFn = func(h common.Hash) (*types.Receipt, error) {
		return &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: h}, nil
	}

	r, err := chain.WaitForReceipt(context.Background(), node, txHash, time.Second, time.Millisecond)
	require.ErrorIs(t, err, chain.ErrReverted)
	require.NotNil(t, r)
	assert.Equal(t, types.ReceiptStatusFailed, r.Status)
}

func TestWaitForReceiptTimeout(t *testing.T) {
	node := chaintest.New(1, 10)
	node.ReceiptFn = func(common.Hash) (*types.Receipt, error) { return nil, ethereum.NotFound }

	_, err := chain.WaitForReceipt(context.Background(), node, txHash, 20*time.Millisecond, 5*time.Millisecond)
	assert.ErrorIs(t, err, chain.ErrReceiptTimeout)
}

func TestWaitForReceiptRetriesRateLimit(t *testing.T) {
	node := chaintest.New(1, 10)
	lookups := 0
	node.ReceiptFn = func(h common.Hash) (*types.Receipt, error) {
		lookups++
		if lookups == 1 {
			return nil, errors.New("429 Too Many Requests")
		}
		return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: h}, nil
	}

	_, err := chain.WaitForReceipt(context.Background(), node, txHash, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, lookups)
}

func TestWaitForReceiptHardError(t *testing.T) {
	node := chaintest.New(1, 10)
	node.ReceiptFn = func(common.Hash) (*types.Receipt, error) { return nil, errors.New("connection refused") }

	_, err := chain.WaitForReceipt(context.Background(), node, txHash, time.Second, time.Millisecond)
	require.Error(t, err)
	assert.NotErrorIs(t, err, chain.ErrReceiptTimeout)
}
