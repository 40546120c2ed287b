package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/endpoint"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/timebox"
	"github.com/Mohsinsiddi/w3sale/internal/txlog"
)

// WithdrawDispatcher moves the sale's funds to its wallet. Only the owner
// may; others are turned away before any signer prompt.
type WithdrawDispatcher struct {
	w      Writer
	book   config.AddressBook
	engine engine
}

func NewWithdrawDispatcher(w Writer, book config.AddressBook, opts Options) *WithdrawDispatcher {
	return &WithdrawDispatcher{w: w, book: book, engine: newEngine(opts)}
}

// Withdraw runs withdraw() as identity after checking it is the owner. The
// check is a courtesy; the contract enforces ownership itself.
func (d *WithdrawDispatcher) Withdraw(ctx context.Context, identity common.Address) (*Result, error) {
	saleAddr, err := d.book.RequireSale()
	if err != nil {
		return nil, err
	}

	var ep *endpoint.Endpoint
	if identity == (common.Address{}) {
		if ep, identity, err = d.engine.writeEndpoint(ctx, d.w, identity); err != nil {
			return nil, err
		}
	}

	res := &Result{Action: txlog.TypeWithdraw}
	owner, err := d.owner(ctx, saleAddr)
	if err != nil {
		att := Attempt{Candidate: WithdrawStrategy.Name}
		d.engine.fail(&att, fmt.Errorf("reading owner: %w", err))
		res.Attempts = append(res.Attempts, att)
		res.Final = att
		return res, nil
	}
	if !strings.EqualFold(owner.Hex(), identity.Hex()) {
		d.engine.log.Info("withdraw refused: caller is not the owner",
			zap.Stringer("owner", owner),
			zap.Stringer("caller", identity),
		)
		att := Attempt{
			Candidate: WithdrawStrategy.Name,
			Outcome:   Rejected,
			Class:     chain.ClassNotOwner,
			Err:       chain.ErrNotOwner,
		}
		att.Message = Humanize(att.Class, "", d.engine.opts.Network, d.engine.opts.Currency)
		res.Attempts = append(res.Attempts, att)
		res.Final = att
		return res, nil
	}

	if ep == nil {
		if ep, identity, err = d.engine.writeEndpoint(ctx, d.w, identity); err != nil {
			return nil, err
		}
	}
	return d.engine.run(ctx, ep, txlog.TypeWithdraw, saleAddr, nil, identity, []Strategy{WithdrawStrategy})
}

func (d *WithdrawDispatcher) owner(ctx context.Context, saleAddr common.Address) (common.Address, error) {
	ep, err := d.w.ReadEndpoint(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return timebox.Run(ctx, d.engine.opts.CallTimeout, "owner", func(ctx context.Context) (common.Address, error) {
		return sale.NewCrowdsale(ep.Node(), saleAddr).CallAddress(ctx, "owner")
	})
}
