package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReceiptTimeout is returned when a transaction is not mined in time. The
// transaction may still be mined later.
var ErrReceiptTimeout = errors.New("transaction not mined in time")

// DefaultReceiptPoll is the interval between receipt lookups.
const DefaultReceiptPoll = 2 * time.Second

// WaitForReceipt polls for the receipt of hash until it is mined, timeout
// elapses or ctx ends. A mined-but-reverted transaction returns its receipt
// together with an error wrapping ErrReverted.
func WaitForReceipt(ctx context.Context, n Node, hash common.Hash, timeout, poll time.Duration) (*types.Receipt, error) {
	if poll <= 0 {
		poll = DefaultReceiptPoll
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		receipt, err := n.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("transaction %s: %w", hash.Hex(), ErrReverted)
			}
			return receipt, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
			// not mined yet
		case Classify(err) == ClassRateLimited, Classify(err) == ClassTimeout:
			// transient; keep polling
		default:
			return nil, fmt.Errorf("fetching receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("transaction %s not mined within %s: %w", hash.Hex(), timeout, ErrReceiptTimeout)
		case <-ticker.C:
		}
	}
}
