package dispatch

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
	"github.com/Mohsinsiddi/w3sale/internal/timebox"
	"github.com/Mohsinsiddi/w3sale/internal/txlog"
)

// Writer hands out endpoints for write actions. *endpoint.Resolver
// implements it.
type Writer interface {
	ReadEndpoint(ctx context.Context) (*endpoint.Endpoint, error)
	WriteEndpoint(ctx context.Context) (*endpoint.Endpoint, error)
	EnsureNetwork(ctx context.Context, ep *endpoint.Endpoint) error
}

var _ Writer = (*endpoint.Resolver)(nil)

// Recorder journals submitted transactions. *txlog.Journal implements it.
type Recorder interface {
	Record(e txlog.Entry) error
}

var _ Recorder = (*txlog.Journal)(nil)

// Options configures a dispatcher.
type Options struct {
	Network  string
	Currency string

	CallTimeout    time.Duration
	ConfirmTimeout time.Duration
	ReceiptPoll    time.Duration

	Recorder Recorder
	// OnSubmitted is called once the transaction is broadcast, before the
	// receipt wait.
	OnSubmitted func(Attempt)
	Log         *zap.Logger
}

func (o *Options) setDefaults() {
	if o.Currency == "" {
		o.Currency = "ETH"
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = config.DefaultCallTimeout
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = config.TxConfirmTimeout
	}
	if o.ReceiptPoll <= 0 {
		o.ReceiptPoll = chain.DefaultReceiptPoll
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
}

// engine probes strategies in order and commits the first that passes its
// dry-run. At most one transaction is broadcast per run.
type engine struct {
	opts Options
	log  *zap.Logger
}

func newEngine(opts Options) engine {
	opts.setDefaults()
	return engine{opts: opts, log: opts.Log}
}

// writeEndpoint returns the wallet endpoint after the network guard, and the
// identity to act as.
func (e engine) writeEndpoint(ctx context.Context, w Writer, identity common.Address) (*endpoint.Endpoint, common.Address, error) {
	ep, err := w.WriteEndpoint(ctx)
	if err != nil {
		return nil, identity, err
	}
	if err := w.EnsureNetwork(ctx, ep); err != nil {
		return nil, identity, err
	}
	account, _ := ep.Account()
	if identity == (common.Address{}) {
		return ep, account, nil
	}
	if account != identity {
		return nil, identity, fmt.Errorf("%w: wallet is %s, asked to act as %s", ErrIdentityMismatch, account.Hex(), identity.Hex())
	}
	return ep, identity, nil
}

func (e engine) run(ctx context.Context, ep *endpoint.Endpoint, action string, to common.Address, value *big.Int, identity common.Address, strategies []Strategy) (*Result, error) {
	res := &Result{Action: action}
	node := ep.Node()

	for _, s := range strategies {
		att := Attempt{Candidate: s.Name}
		data, err := s.Calldata(identity)
		if err != nil {
			e.fail(&att, err)
			res.Attempts = append(res.Attempts, att)
			continue
		}

		msg := ethereum.CallMsg{From: identity, To: &to, Value: value, Data: data}
		_, err = timebox.Run(ctx, e.opts.CallTimeout, "dry-run "+s.Name, func(ctx context.Context) ([]byte, error) {
			return node.CallContract(ctx, msg, nil)
		})
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			e.fail(&att, err)
			e.log.Debug("candidate rejected by dry-run",
				zap.String("action", action),
				zap.String("candidate", s.Name),
				zap.Stringer("class", att.Class),
				zap.Error(err),
			)
			res.Attempts = append(res.Attempts, att)
			continue
		}

		att.Validated = true
		e.submit(ctx, ep, action, msg, s, &att)
		res.Attempts = append(res.Attempts, att)
		res.Final = att
		return res, nil
	}

	top, ok := best(res.Attempts)
	if !ok {
		return res, fmt.Errorf("%s: no strategies", action)
	}
	res.Final = Attempt{
		Candidate: top.Candidate,
		Outcome:   Failed,
		Class:     top.Class,
		Message:   top.Message,
		Err:       fmt.Errorf("%w: %w", ErrAllCandidatesFailed, top.Err),
	}
	return res, nil
}

// submit builds, signs, broadcasts and waits for one transaction.
func (e engine) submit(ctx context.Context, ep *endpoint.Endpoint, action string, msg ethereum.CallMsg, s Strategy, att *Attempt) {
	node := ep.Node()

	tx, err := timebox.Run(ctx, e.opts.CallTimeout, "prepare "+s.Name, func(ctx context.Context) (*types.Transaction, error) {
		return e.build(ctx, node, msg, s.Gas)
	})
	if err != nil {
		e.fail(att, fmt.Errorf("preparing transaction: %w", err))
		return
	}

	signed, err := ep.SignTx(ctx, tx, tx.ChainId())
	if err != nil {
		e.fail(att, err)
		if att.Class == chain.ClassUserRejected {
			att.Outcome = Rejected
		}
		return
	}

	if err := node.SendTransaction(ctx, signed); err != nil {
		e.fail(att, fmt.Errorf("broadcasting transaction: %w", err))
		return
	}

	hash := signed.Hash()
	att.Submitted, att.Hash, att.Outcome = true, &hash, Pending
	e.log.Info("transaction submitted",
		zap.String("action", action),
		zap.String("candidate", s.Name),
		zap.Stringer("hash", hash),
	)
	e.record(action, msg, s, hash)
	if e.opts.OnSubmitted != nil {
		e.opts.OnSubmitted(*att)
	}

	receipt, err := chain.WaitForReceipt(ctx, node, hash, e.opts.ConfirmTimeout, e.opts.ReceiptPoll)
	att.Receipt = receipt
	switch {
	case err == nil:
		att.Outcome = Confirmed
	case errors.Is(err, chain.ErrReverted):
		e.fail(att, err)
	default:
		// Broadcast but not seen mined; it may still confirm.
		att.Outcome, att.Err = Pending, err
		att.Message = "Transaction submitted; confirmation not seen yet."
	}
}

func (e engine) build(ctx context.Context, node chain.Node, msg ethereum.CallMsg, fallbackGas uint64) (*types.Transaction, error) {
	chainID, err := node.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	nonce, err := node.PendingNonceAt(ctx, msg.From)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	gas, err := node.EstimateGas(ctx, msg)
	if err != nil {
		e.log.Debug("gas estimate failed, using fallback", zap.Uint64("gas", fallbackGas), zap.Error(err))
		gas = fallbackGas
	}
	tip, err := node.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas tip: %w", err)
	}
	price, err := node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(price, big.NewInt(2)), tip)

	value := msg.Value
	if value == nil {
		value = new(big.Int)
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        msg.To,
		Value:     value,
		Data:      msg.Data,
	}), nil
}

func (e engine) fail(att *Attempt, err error) {
	att.Outcome = Failed
	att.Err = err
	att.Class = chain.Classify(err)
	att.Message = Humanize(att.Class, chain.Diagnostic(err), e.opts.Network, e.opts.Currency)
}

func (e engine) record(action string, msg ethereum.CallMsg, s Strategy, hash common.Hash) {
	if e.opts.Recorder == nil {
		return
	}
	entry := txlog.Entry{
		Type:      action,
		Hash:      hash.Hex(),
		Network:   e.opts.Network,
		Candidate: s.Name,
		From:      msg.From.Hex(),
		To:        msg.To.Hex(),
	}
	if msg.Value != nil {
		entry.Value = msg.Value.String()
	}
	if err := e.opts.Recorder.Record(entry); err != nil {
		e.log.Warn("could not journal transaction", zap.Stringer("hash", hash), zap.Error(err))
	}
}
