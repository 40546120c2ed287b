// Package tally counts receipt mints, by asking the receipt contract directly
// or by scanning its event log in adaptively sized block windows.
package tally

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/endpoint"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/timebox"
)

// ErrTooManyRetries is returned when rate limiting or timeouts persist on
// the same window.
var ErrTooManyRetries = errors.New("too many consecutive retries")

// Method records how a Tally was obtained.
type Method int

const (
	DirectCounter Method = iota
	LogScan
)

func (m Method) String() string {
	if m == DirectCounter {
		return "counter"
	}
	return "log-scan"
}

// Tally is the number of receipts minted.
type Tally struct {
	Count    uint64
	Method   Method
	Complete bool

	// Log scan bookkeeping; zero for DirectCounter.
	FromBlock uint64
	ToBlock   uint64
	Windows   int
	FinalStep uint64
}

// Options tunes the scanner. Zero values take the config defaults.
type Options struct {
	DeployBlock    uint64
	InitialStep    uint64
	MinStep        uint64
	MaxStep        uint64
	MaxRetries     int
	RateLimitPause time.Duration
	CallTimeout    time.Duration
	// Budget bounds a log scan's wall-clock time; 0 means no limit. It is
	// checked before each window, so a scan can overrun it by one window's
	// CallTimeout or one RateLimitPause.
	Budget time.Duration
	Log    *zap.Logger
}

func (o *Options) setDefaults() {
	if o.MinStep == 0 {
		o.MinStep = config.ScanMinStep
	}
	if o.MaxStep == 0 {
		o.MaxStep = config.ScanMaxStep
	}
	if o.MaxStep < o.MinStep {
		o.MaxStep = o.MinStep
	}
	if o.InitialStep == 0 {
		o.InitialStep = config.ScanInitialStep
	}
	o.InitialStep = min(max(o.InitialStep, o.MinStep), o.MaxStep)
	if o.MaxRetries == 0 {
		o.MaxRetries = config.ScanMaxRetries
	}
	if o.RateLimitPause == 0 {
		o.RateLimitPause = config.RateLimitPause
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = config.DefaultCallTimeout
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
}

// Scanner counts receipt mints for one sale deployment.
type Scanner struct {
	src     endpoint.Source
	sale    *common.Address
	receipt *common.Address
	opts    Options
	log     *zap.Logger
}

// NewScanner builds a scanner over the receipt contract in book. When the
// book has no receipt address it is discovered from the sale's receiptNFT().
func NewScanner(src endpoint.Source, book config.AddressBook, opts Options) *Scanner {
	opts.setDefaults()
	if book.DeployBlock != 0 && opts.DeployBlock == 0 {
		opts.DeployBlock = book.DeployBlock
	}
	return &Scanner{
		src:     src,
		sale:    book.Sale,
		receipt: book.Receipt,
		opts:    opts,
		log:     opts.Log,
	}
}

// Count returns the receipt count, preferring the contract's totalSupply()
// and falling back to a full log scan from the deployment block to head.
func (s *Scanner) Count(ctx context.Context) (Tally, error) {
	ep, err := s.src.ReadEndpoint(ctx)
	if err != nil {
		return Tally{}, err
	}
	node := ep.Node()

	receipt, err := s.receiptAddress(ctx, node)
	if err != nil {
		return Tally{}, err
	}

	supply, err := s.totalSupply(ctx, node, receipt)
	switch {
	case err == nil && supply.IsUint64():
		return Tally{Count: supply.Uint64(), Method: DirectCounter, Complete: true}, nil
	case err != nil && !counterMissing(err):
		return Tally{Method: DirectCounter}, fmt.Errorf("reading receipt counter: %w", err)
	}
	s.log.Debug("direct counter unavailable, scanning logs", zap.Error(err))

	head, err := timebox.Run(ctx, s.opts.CallTimeout, "eth_blockNumber", node.BlockNumber)
	if err != nil {
		return Tally{Method: LogScan}, fmt.Errorf("reading head block: %w", err)
	}
	return s.scan(ctx, node, receipt, s.opts.DeployBlock, head)
}

// ScanRange counts receipt mint events in [from, to] by log scan only.
func (s *Scanner) ScanRange(ctx context.Context, from, to uint64) (Tally, error) {
	ep, err := s.src.ReadEndpoint(ctx)
	if err != nil {
		return Tally{}, err
	}
	receipt, err := s.receiptAddress(ctx, ep.Node())
	if err != nil {
		return Tally{}, err
	}
	return s.scan(ctx, ep.Node(), receipt, from, to)
}

func (s *Scanner) receiptAddress(ctx context.Context, node chain.Node) (common.Address, error) {
	if s.receipt != nil {
		return *s.receipt, nil
	}
	if s.sale == nil {
		return common.Address{}, config.Missing("receipt address", "set NFT_ADDRESS or configure the sale address")
	}
	addr, err := timebox.Run(ctx, s.opts.CallTimeout, "receiptNFT", func(ctx context.Context) (common.Address, error) {
		return sale.NewCrowdsale(node, *s.sale).CallAddress(ctx, "receiptNFT")
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("discovering receipt contract: %w", err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, config.Missing("receipt address", "the sale reports no receipt contract; set NFT_ADDRESS")
	}
	return addr, nil
}

// totalSupply reads the receipt counter, retrying the same read on rate
// limiting or timeout.
func (s *Scanner) totalSupply(ctx context.Context, node chain.Node, receipt common.Address) (*big.Int, error) {
	for retries := 0; ; retries++ {
		supply, err := timebox.Run(ctx, s.opts.CallTimeout, "totalSupply", func(ctx context.Context) (*big.Int, error) {
			return sale.NewReceipt(node, receipt).CallBig(ctx, "totalSupply")
		})
		if err == nil || ctx.Err() != nil {
			return supply, err
		}
		switch chain.Classify(err) {
		case chain.ClassRateLimited, chain.ClassTimeout:
		default:
			return nil, err
		}
		if retries >= s.opts.MaxRetries {
			return nil, fmt.Errorf("%w (%d): %w", ErrTooManyRetries, s.opts.MaxRetries, err)
		}
		s.log.Debug("receipt counter busy, retrying", zap.Int("retry", retries+1), zap.Error(err))
		if err := sleep(ctx, s.opts.RateLimitPause); err != nil {
			return nil, err
		}
	}
}

// counterMissing reports whether err means the receipt contract has no usable
// totalSupply(), as opposed to a transient read failure.
func counterMissing(err error) bool {
	return errors.Is(err, sale.ErrUnexpectedOutput) || chain.Classify(err) == chain.ClassReverted
}

// scan walks [from, to] in windows. On a range rejection the step halves and
// the same window is retried; on rate limiting or timeout the same window is
// retried after a pause. Blocks are never skipped.
func (s *Scanner) scan(ctx context.Context, node chain.Node, receipt common.Address, from, to uint64) (Tally, error) {
	t := Tally{Method: LogScan, FromBlock: from, ToBlock: to}
	if from > to {
		t.Complete = true
		return t, nil
	}

	var (
		started = time.Now()
		step    = s.opts.InitialStep
		ceiling = s.opts.MaxStep
		retries = 0
		cur     = from
	)

	for {
		if s.opts.Budget > 0 && time.Since(started) > s.opts.Budget {
			s.log.Info("log scan budget exhausted",
				zap.Uint64("next_block", cur),
				zap.Uint64("count", t.Count),
			)
			t.FinalStep = step
			return t, nil
		}

		end := to
		if to-cur >= step {
			end = cur + step - 1
		}

		logs, err := timebox.Run(ctx, s.opts.CallTimeout, "eth_getLogs", func(ctx context.Context) ([]types.Log, error) {
			return node.FilterLogs(ctx, ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(cur),
				ToBlock:   new(big.Int).SetUint64(end),
				Addresses: []common.Address{receipt},
				Topics:    [][]common.Hash{{sale.ReceiptMintedTopic}},
			})
		})
		if err == nil {
			t.Count += uint64(len(logs))
			t.Windows++
			retries = 0
			s.log.Debug("window scanned",
				zap.Uint64("from", cur),
				zap.Uint64("to", end),
				zap.Int("events", len(logs)),
				zap.Uint64("step", step),
			)
			if end >= to {
				t.Complete = true
				t.FinalStep = step
				return t, nil
			}
			cur = end + 1
			step = min(step+max(step/4, 1), ceiling)
			continue
		}
		if ctx.Err() != nil {
			return t, ctx.Err()
		}

		switch chain.Classify(err) {
		case chain.ClassRangeRejected:
			retries = 0
			if step <= s.opts.MinStep {
				return t, fmt.Errorf("blocks %d-%d rejected at minimum step %d: %w: %w",
					cur, end, s.opts.MinStep, chain.ErrRangeRejected, err)
			}
			ceiling = min(ceiling, step-1)
			step = max(step/2, s.opts.MinStep)
			s.log.Debug("range rejected, shrinking step", zap.Uint64("step", step))

		case chain.ClassRateLimited, chain.ClassTimeout:
			retries++
			if retries > s.opts.MaxRetries {
				return t, fmt.Errorf("blocks %d-%d: %w (%d): %w", cur, end, ErrTooManyRetries, s.opts.MaxRetries, err)
			}
			s.log.Debug("rate limited, pausing", zap.Duration("pause", s.opts.RateLimitPause), zap.Int("retry", retries))
			if err := sleep(ctx, s.opts.RateLimitPause); err != nil {
				return t, err
			}

		default:
			return t, fmt.Errorf("scanning blocks %d-%d: %w", cur, end, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
