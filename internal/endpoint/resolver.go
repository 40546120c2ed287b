package endpoint

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/rpc"
)

// Options configures a Resolver.
type Options struct {
	FallbackURLs []string
	Algorithm    rpc.Algorithm
	ChainID      int64 // target chain; 0 disables network checks
	Network      string
	Dial         rpc.DialFunc
	Log          *zap.Logger
}

// handles is one generation of cached endpoints. It is never mutated after
// being published; changes publish a new value.
type handles struct {
	wallet Wallet
	read   *Endpoint
	write  *Endpoint
}

// Resolver hands out endpoints and caches them until the wallet changes.
type Resolver struct {
	opts     Options
	selector *rpc.Selector
	log      *zap.Logger

	mu    sync.Mutex // serialises endpoint creation and swaps
	state atomic.Pointer[handles]
	// retired holds replaced handles. Callers may still be using them, so
	// they are only closed by Close.
	retired []*handles
}

func NewResolver(opts Options) *Resolver {
	if opts.Dial == nil {
		opts.Dial = chain.Dial
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	r := &Resolver{
		opts:     opts,
		selector: rpc.NewSelector(opts.FallbackURLs, opts.ChainID, opts.Algorithm, opts.Dial, opts.Log),
		log:      opts.Log,
	}
	r.state.Store(&handles{})
	return r
}

// ChainID is the configured target chain.
func (r *Resolver) ChainID() int64 { return r.opts.ChainID }

// Network is the configured target network name.
func (r *Resolver) Network() string { return r.opts.Network }

// HasWallet reports whether a wallet is attached.
func (r *Resolver) HasWallet() bool { return r.state.Load().wallet != nil }

// ReadEndpoint returns the endpoint for reads: wallet-backed when a wallet is
// attached and reachable, otherwise a fallback RPC.
func (r *Resolver) ReadEndpoint(ctx context.Context) (*Endpoint, error) {
	if h := r.state.Load(); h.read != nil {
		return h.read, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.state.Load()
	if h.read != nil {
		return h.read, nil
	}

	if h.wallet != nil {
		ep := h.write
		if ep == nil {
			var err error
			ep, err = r.walletEndpoint(ctx, h.wallet)
			if err != nil {
				r.log.Debug("wallet endpoint unavailable for reads, using fallback", zap.Error(err))
			}
		}
		if ep != nil {
			r.state.Store(&handles{wallet: h.wallet, read: ep, write: ep})
			return ep, nil
		}
	}

	ep, err := r.fallbackEndpoint(ctx)
	if err != nil {
		return nil, err
	}
	r.state.Store(&handles{wallet: h.wallet, read: ep, write: h.write})
	return ep, nil
}

// WriteEndpoint returns the wallet-backed endpoint. Without a wallet it
// returns ErrNoWallet.
func (r *Resolver) WriteEndpoint(ctx context.Context) (*Endpoint, error) {
	if h := r.state.Load(); h.write != nil {
		return h.write, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.state.Load()
	if h.write != nil {
		return h.write, nil
	}
	if h.wallet == nil {
		return nil, ErrNoWallet
	}

	ep, err := r.walletEndpoint(ctx, h.wallet)
	if err != nil {
		return nil, err
	}
	r.state.Store(&handles{wallet: h.wallet, read: h.read, write: ep})
	return ep, nil
}

// SetWallet replaces the attached wallet (nil detaches) and drops every cached
// endpoint. Use it on account or network change. Endpoints handed out before
// the swap keep working until Close.
func (r *Resolver) SetWallet(w Wallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retired = append(r.retired, r.state.Swap(&handles{wallet: w}))
}

// Close releases every connection the resolver has opened and detaches the
// wallet.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := append(r.retired, r.state.Swap(&handles{}))
	r.retired = nil
	for _, h := range old {
		closeHandles(h)
	}
}

// EnsureNetwork checks that ep is connected to the target chain.
func (r *Resolver) EnsureNetwork(ctx context.Context, ep *Endpoint) error {
	if r.opts.ChainID == 0 {
		return nil
	}
	id, err := ep.Node().ChainID(ctx)
	if err != nil {
		return fmt.Errorf("reading chain id: %w", err)
	}
	if id.Int64() != r.opts.ChainID {
		return fmt.Errorf("%w: connected to chain %d, expected %d (%s)",
			chain.ErrWrongNetwork, id.Int64(), r.opts.ChainID, r.opts.Network)
	}
	return nil
}

// --- internal ---

func (r *Resolver) walletEndpoint(ctx context.Context, w Wallet) (*Endpoint, error) {
	url := w.RPCURL()
	if url == "" {
		var err error
		if url, err = r.selector.Select(ctx); err != nil {
			return nil, fmt.Errorf("%w: wallet has no RPC and no fallback is usable: %w", ErrNoConnection, err)
		}
	}

	account, err := w.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet account: %w", err)
	}

	node, err := r.opts.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoConnection, err)
	}
	r.log.Debug("wallet endpoint ready", zap.String("url", url), zap.Stringer("account", account))
	return &Endpoint{kind: WalletBacked, node: node, url: url, account: account, wallet: w}, nil
}

func (r *Resolver) fallbackEndpoint(ctx context.Context) (*Endpoint, error) {
	if len(r.selector.URLs()) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoConnection,
			config.Missing("fallback RPC", "set FALLBACK_RPC, add one with `w3sale config add-rpc`, or add a wallet"))
	}

	url, err := r.selector.Select(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoConnection, err)
	}
	node, err := r.opts.Dial(ctx, url)
	if err != nil {
		r.selector.MarkFailed(url)
		return nil, fmt.Errorf("%w: %w", ErrNoConnection, err)
	}
	r.log.Debug("read-only endpoint ready", zap.String("url", url))
	return &Endpoint{kind: ReadOnly, node: node, url: url}, nil
}

func closeHandles(h *handles) {
	if h == nil {
		return
	}
	if h.read != nil {
		h.read.node.Close()
	}
	if h.write != nil && h.write != h.read {
		h.write.node.Close()
	}
}
