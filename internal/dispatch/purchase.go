package dispatch

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/txlog"
)

// PurchaseDispatcher buys from the sale with the first entry point whose
// dry-run passes.
type PurchaseDispatcher struct {
	w          Writer
	book       config.AddressBook
	strategies []Strategy
	engine     engine
}

func NewPurchaseDispatcher(w Writer, book config.AddressBook, opts Options) *PurchaseDispatcher {
	return &PurchaseDispatcher{
		w:          w,
		book:       book,
		strategies: PurchaseStrategies,
		engine:     newEngine(opts),
	}
}

// Buy spends amount wei on the sale as identity (the zero address means the
// connected wallet). Errors are preconditions: nothing was attempted. Once
// probing starts the outcome is reported in the Result, never as an error,
// except when ctx ends.
func (d *PurchaseDispatcher) Buy(ctx context.Context, amount *big.Int, identity common.Address) (*Result, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	saleAddr, err := d.book.RequireSale()
	if err != nil {
		return nil, err
	}
	ep, identity, err := d.engine.writeEndpoint(ctx, d.w, identity)
	if err != nil {
		return nil, err
	}
	return d.engine.run(ctx, ep, txlog.TypePurchase, saleAddr, amount, identity, d.strategies)
}
