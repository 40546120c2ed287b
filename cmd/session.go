package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/dispatch"
	"github.com/Mohsinsiddi/w3sale/internal/endpoint"
	"github.com/Mohsinsiddi/w3sale/internal/rpc"
	"github.com/Mohsinsiddi/w3sale/internal/state"
	"github.com/Mohsinsiddi/w3sale/internal/tally"
	"github.com/Mohsinsiddi/w3sale/internal/txlog"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
)

// session is everything one command needs to talk to the sale on a network.
type session struct {
	network  string
	net      *chain.Network // nil for a network only known by CHAIN_ID
	currency string
	book     config.AddressBook
	resolver *endpoint.Resolver
	wallet   *wallet.Wallet // nil when no wallet is configured
}

// openSession resolves the network, address book and endpoints. A signing
// wallet is attached to the resolver; a watch-only one only supplies the
// caller address for reads.
func openSession() (*session, error) {
	s := &session{network: networkFlag, currency: "ETH"}
	if s.network == "" {
		s.network = cfg.Network()
	}

	chainID := cfg.ChainIDOverride()
	var builtin []string
	if n, err := chain.NewRegistry().GetByName(s.network); err == nil {
		s.net = n
		s.currency = n.NativeCurrency
		builtin = n.RPCs
		if chainID == 0 {
			chainID = n.ChainID
		}
	} else if chainID == 0 {
		return nil, fmt.Errorf("%w: %q (set CHAIN_ID to use a custom network)", err, s.network)
	}

	book, err := cfg.AddressBook(s.network)
	if err != nil {
		return nil, err
	}
	s.book = book

	s.resolver = endpoint.NewResolver(endpoint.Options{
		FallbackURLs: cfg.FallbackRPCs(s.network, builtin),
		Algorithm:    rpc.ParseAlgorithm(cfg.RPCAlgorithm),
		ChainID:      chainID,
		Network:      s.network,
		Log:          log.Named("endpoint"),
	})

	mgr := newWalletManager()
	name := walletFlag
	if name == "" {
		name = cfg.DefaultWallet
	}
	w, err := mgr.Resolve(name)
	switch {
	case errors.Is(err, wallet.ErrWalletNotFound) && walletFlag == "":
		// Reads work without a wallet.
	case err != nil:
		return nil, fmt.Errorf("wallet %q: %w", name, err)
	default:
		s.wallet = w
		if w.Type == wallet.TypeSigning {
			s.resolver.SetWallet(wallet.NewSigner(w, mgr.Keys(),
				wallet.WithApproval(ui.TxApproval(os.Stdin, os.Stderr, s.currency)),
			))
		}
	}
	log.Debug("session ready",
		zap.String("network", s.network),
		zap.Int64("chain_id", chainID),
		zap.Bool("wallet", s.wallet != nil),
	)
	return s, nil
}

// caller is the address whose token balance is shown, if any.
func (s *session) caller() *common.Address {
	if s.wallet == nil {
		return nil
	}
	a := s.wallet.Addr()
	return &a
}

// requireSigner fails early for write commands without a signing wallet.
func (s *session) requireSigner() error {
	if s.wallet == nil {
		return fmt.Errorf("%w: add one with `w3sale wallet import <name> --key <hex>`", endpoint.ErrNoWallet)
	}
	if s.wallet.Type != wallet.TypeSigning {
		return fmt.Errorf("%q: %w", s.wallet.Name, wallet.ErrWatchOnly)
	}
	return nil
}

func (s *session) dashboard() *state.Dashboard {
	agg := state.NewAggregator(s.resolver, s.book, state.Options{
		CallTimeout: cfg.CallTimeout(),
		Log:         log.Named("state"),
	})
	return state.NewDashboard(agg, s.scanner(), log.Named("dashboard"))
}

func (s *session) scanner() *tally.Scanner {
	return tally.NewScanner(s.resolver, s.book, tally.Options{
		CallTimeout: cfg.CallTimeout(),
		Budget:      cfg.ScanBudget(),
		Log:         log.Named("tally"),
	})
}

func (s *session) dispatchOptions() dispatch.Options {
	return dispatch.Options{
		Network:     s.network,
		Currency:    s.currency,
		CallTimeout: cfg.CallTimeout(),
		Recorder:    txlog.Open(cfg.TxLogPath()),
		OnSubmitted: func(a dispatch.Attempt) {
			fmt.Fprintln(os.Stderr, ui.Info("submitted "+a.Hash.Hex()+", waiting for confirmation…"))
		},
		Log: log.Named("dispatch"),
	}
}

func newWalletManager() *wallet.Manager {
	return wallet.NewManager(wallet.WithConfig(cfg))
}

// errorLine renders a command error, with the fix for configuration errors.
func errorLine(err error) string {
	var cerr *config.Error
	if errors.As(err, &cerr) && cerr.Hint != "" {
		return ui.Err(fmt.Sprintf("%s %s", cerr.Key, cerr.Reason)) + "\n" + ui.Hint(cerr.Hint)
	}
	return ui.Err(err.Error())
}
