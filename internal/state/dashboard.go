package state

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3sale/internal/tally"
)

// Counter counts receipt mints. *tally.Scanner implements it.
type Counter interface {
	Count(ctx context.Context) (tally.Tally, error)
}

var _ Counter = (*tally.Scanner)(nil)

// Report is one merged refresh: the snapshot plus the mint tally.
type Report struct {
	Snapshot *Snapshot
	Tally    *tally.Tally
	// TallyErr is why Tally is nil, if it is.
	TallyErr  error
	FetchedAt time.Time
}

// Dashboard runs a snapshot refresh and a mint count side by side.
type Dashboard struct {
	agg     *Aggregator
	counter Counter
	log     *zap.Logger
}

// NewDashboard combines agg and counter. counter may be nil.
func NewDashboard(agg *Aggregator, counter Counter, log *zap.Logger) *Dashboard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dashboard{agg: agg, counter: counter, log: log}
}

// Aggregator returns the underlying aggregator.
func (d *Dashboard) Aggregator() *Aggregator { return d.agg }

// Refresh runs both reads concurrently. A tally failure is reported in the
// Report; only a snapshot configuration error fails the refresh.
func (d *Dashboard) Refresh(ctx context.Context, caller *common.Address) (*Report, error) {
	g, gctx := errgroup.WithContext(ctx)
	rep := &Report{}

	g.Go(func() error {
		snap, err := d.agg.Refresh(gctx, caller)
		if err != nil {
			return err
		}
		rep.Snapshot = snap
		return nil
	})

	if d.counter != nil {
		g.Go(func() error {
			t, err := d.counter.Count(gctx)
			if err != nil {
				d.log.Warn("receipt tally failed", zap.Error(err))
				rep.TallyErr = err
				return nil
			}
			rep.Tally = &t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	rep.FetchedAt = time.Now()
	return rep, nil
}
