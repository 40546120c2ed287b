// Package state gathers the sale's on-chain state into snapshots. Every field
// is read independently under its own deadline so a slow or failing read only
// costs that field.
package state

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/endpoint"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/timebox"
)

// ErrNoRate is returned by Quote when neither quote() nor the rate is known.
var ErrNoRate = errors.New("sale rate unknown")

// Field names used as Snapshot.Failures keys.
const (
	FieldEndpoint      = "endpoint"
	FieldRate          = "rate"
	FieldCap           = "cap"
	FieldRaised        = "raised"
	FieldSaleBalance   = "saleBalance"
	FieldDecimals      = "tokenDecimals"
	FieldSymbol        = "tokenSymbol"
	FieldCallerBalance = "callerTokenBalance"
)

// Snapshot is one refresh of the sale state. A nil field is absent; the
// reason, when there was a failure, is in Failures. Snapshots are never
// modified after Refresh returns them.
type Snapshot struct {
	Network string
	Sale    common.Address
	Token   *common.Address
	Caller  *common.Address

	Endpoint    endpoint.Kind
	EndpointURL string

	RateRaw            *big.Int
	Cap                *big.Int
	Raised             *big.Int
	SaleBalance        *big.Int
	TokenDecimals      *int
	TokenSymbol        *string
	CallerTokenBalance *big.Int

	// Rate is RateRaw normalised; nil when RateRaw is absent.
	Rate *Rate

	Failures   map[string]error
	Generation uint64
	FetchedAt  time.Time
}

// Remaining returns cap minus raised, floored at zero, when both are known.
func (s *Snapshot) Remaining() *big.Int {
	if s.Cap == nil || s.Raised == nil {
		return nil
	}
	if s.Raised.Cmp(s.Cap) >= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(s.Cap, s.Raised)
}

// Symbol returns the token symbol or fallback when unknown.
func (s *Snapshot) Symbol(fallback string) string {
	if s.TokenSymbol == nil || *s.TokenSymbol == "" {
		return fallback
	}
	return *s.TokenSymbol
}

// Decimals returns the token decimals, 18 when unknown.
func (s *Snapshot) Decimals() int {
	if s.TokenDecimals == nil {
		return chain.NativeDecimals
	}
	return *s.TokenDecimals
}

// Options tunes an Aggregator.
type Options struct {
	CallTimeout time.Duration
	Log         *zap.Logger
}

type tokenMeta struct {
	decimals *int
	symbol   *string
}

// Aggregator reads Snapshots for one sale deployment.
type Aggregator struct {
	src  endpoint.Source
	book config.AddressBook
	opts Options
	log  *zap.Logger

	metaMu sync.Mutex
	meta   map[common.Address]tokenMeta

	gen      atomic.Uint64
	latestMu sync.Mutex
	latest   *Snapshot
}

func NewAggregator(src endpoint.Source, book config.AddressBook, opts Options) *Aggregator {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = config.DefaultCallTimeout
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Aggregator{
		src:  src,
		book: book,
		opts: opts,
		log:  opts.Log,
		meta: make(map[common.Address]tokenMeta),
	}
}

// Refresh reads a fresh Snapshot. It only fails when the sale address is not
// configured; every other failure leaves the affected field absent.
func (a *Aggregator) Refresh(ctx context.Context, caller *common.Address) (*Snapshot, error) {
	saleAddr, err := a.book.RequireSale()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Network:    a.book.Network,
		Sale:       saleAddr,
		Token:      a.book.Token,
		Caller:     caller,
		Failures:   make(map[string]error),
		Generation: a.gen.Add(1),
	}
	defer func() {
		snap.FetchedAt = time.Now()
		a.publish(snap)
	}()

	ep, err := a.src.ReadEndpoint(ctx)
	if err != nil {
		a.log.Warn("no endpoint for state refresh", zap.Error(err))
		snap.Failures[FieldEndpoint] = err
		return snap, nil
	}
	snap.Endpoint, snap.EndpointURL = ep.Kind(), ep.URL()
	node := ep.Node()

	var (
		g      errgroup.Group
		failMu sync.Mutex
	)
	fail := func(field string, err error) {
		a.log.Debug("state field unavailable", zap.String("field", field), zap.Error(err))
		failMu.Lock()
		snap.Failures[field] = err
		failMu.Unlock()
	}
	read := func(field string, dst **big.Int, op func(context.Context) (*big.Int, error)) {
		g.Go(func() error {
			v, err := timebox.Run(ctx, a.opts.CallTimeout, field, op)
			if err != nil {
				fail(field, err)
				return nil
			}
			*dst = v
			return nil
		})
	}

	crowdsale := sale.NewCrowdsale(node, saleAddr)
	read(FieldRate, &snap.RateRaw, func(ctx context.Context) (*big.Int, error) {
		return crowdsale.CallBig(ctx, "rate")
	})
	read(FieldCap, &snap.Cap, func(ctx context.Context) (*big.Int, error) {
		return crowdsale.CallBig(ctx, "cap")
	})
	read(FieldRaised, &snap.Raised, func(ctx context.Context) (*big.Int, error) {
		return crowdsale.CallBig(ctx, "weiRaised")
	})
	read(FieldSaleBalance, &snap.SaleBalance, func(ctx context.Context) (*big.Int, error) {
		return node.BalanceAt(ctx, saleAddr, nil)
	})

	if tokenAddr := a.book.Token; tokenAddr != nil {
		token := sale.NewToken(node, *tokenAddr)
		a.readMeta(ctx, &g, token, snap, fail)
		if caller != nil {
			read(FieldCallerBalance, &snap.CallerTokenBalance, func(ctx context.Context) (*big.Int, error) {
				return token.CallBig(ctx, "balanceOf", *caller)
			})
		}
	}

	_ = g.Wait()

	if snap.RateRaw != nil {
		r := NormalizeRate(snap.RateRaw, snap.TokenDecimals)
		snap.Rate = &r
		if r.Ambiguous {
			a.log.Debug("rate scaling ambiguous", zap.String("raw", r.Raw.String()), zap.Stringer("basis", r.Basis))
		}
	}
	return snap, nil
}

// readMeta fills decimals and symbol from the cache, reading whichever is
// missing. Only successful reads are cached.
func (a *Aggregator) readMeta(ctx context.Context, g *errgroup.Group, token *sale.Contract, snap *Snapshot, fail func(string, error)) {
	a.metaMu.Lock()
	cached := a.meta[token.Address]
	a.metaMu.Unlock()

	snap.TokenDecimals, snap.TokenSymbol = cached.decimals, cached.symbol

	if cached.decimals == nil {
		g.Go(func() error {
			d, err := timebox.Run(ctx, a.opts.CallTimeout, FieldDecimals, token.Decimals)
			if err != nil {
				fail(FieldDecimals, err)
				return nil
			}
			snap.TokenDecimals = &d
			a.cacheMeta(token.Address, func(m *tokenMeta) { m.decimals = &d })
			return nil
		})
	}
	if cached.symbol == nil {
		g.Go(func() error {
			s, err := timebox.Run(ctx, a.opts.CallTimeout, FieldSymbol, token.Symbol)
			if err != nil {
				fail(FieldSymbol, err)
				return nil
			}
			snap.TokenSymbol = &s
			a.cacheMeta(token.Address, func(m *tokenMeta) { m.symbol = &s })
			return nil
		})
	}
}

func (a *Aggregator) cacheMeta(addr common.Address, set func(*tokenMeta)) {
	a.metaMu.Lock()
	defer a.metaMu.Unlock()
	m := a.meta[addr]
	set(&m)
	a.meta[addr] = m
}

// publish keeps snap as Latest unless a newer refresh already completed.
func (a *Aggregator) publish(snap *Snapshot) {
	a.latestMu.Lock()
	defer a.latestMu.Unlock()
	if a.latest != nil && a.latest.Generation > snap.Generation {
		a.log.Debug("discarding stale snapshot", zap.Uint64("generation", snap.Generation))
		return
	}
	a.latest = snap
}

// Latest returns the snapshot of the newest completed refresh, or nil.
func (a *Aggregator) Latest() *Snapshot {
	a.latestMu.Lock()
	defer a.latestMu.Unlock()
	return a.latest
}

// Quote returns the token base units the sale would give for wei. The
// contract's quote() is asked first; when it is missing the snapshot rate is
// used.
func (a *Aggregator) Quote(ctx context.Context, wei *big.Int, snap *Snapshot) (*big.Int, error) {
	ep, err := a.src.ReadEndpoint(ctx)
	if err == nil {
		if saleAddr, serr := a.book.RequireSale(); serr == nil {
			out, qerr := timebox.Run(ctx, a.opts.CallTimeout, "quote", func(ctx context.Context) (*big.Int, error) {
				return sale.NewCrowdsale(ep.Node(), saleAddr).CallBig(ctx, "quote", wei)
			})
			if qerr == nil {
				return out, nil
			}
			a.log.Debug("quote() unavailable, using snapshot rate", zap.Error(qerr))
		}
	}
	if snap == nil || snap.Rate == nil {
		return nil, ErrNoRate
	}
	units := snap.Rate.TokensFor(wei).Shift(int32(snap.Decimals()))
	return units.BigInt(), nil
}
