package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/dispatch"
	"github.com/Mohsinsiddi/w3sale/internal/state"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
)

// errReported marks a failure whose details were already printed.
var errReported = errors.New("action did not succeed")

var buyQuote bool

var buyCmd = &cobra.Command{
	Use:   "buy <amount>",
	Short: "Buy tokens with native currency",
	Long: `Buy tokens by sending <amount> of the network's native currency (e.g. 0.05).

Each known purchase entry point is dry-run in turn and the first that would
succeed is signed and sent. At most one transaction is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		wei, err := chain.ParseEther(args[0])
		if err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.resolver.Close()

		dash := s.dashboard()
		agg := dash.Aggregator()
		snap, err := agg.Refresh(ctx, s.caller())
		if err != nil {
			return err
		}
		if tokens, qerr := agg.Quote(ctx, wei, snap); qerr == nil {
			fmt.Println(ui.Info(fmt.Sprintf("%s %s buys about %s %s",
				args[0], s.currency, chain.FormatUnits(tokens, snap.Decimals()), snap.Symbol("tokens"))))
		} else {
			fmt.Println(ui.Warn("no quote available: " + qerr.Error()))
		}
		if buyQuote {
			return nil
		}

		if err := s.requireSigner(); err != nil {
			return err
		}
		res, err := dispatch.NewPurchaseDispatcher(s.resolver, s.book, s.dispatchOptions()).
			Buy(ctx, wei, common.Address{})
		if err != nil {
			return err
		}
		if err := report(res, s.net); err != nil {
			return err
		}
		afterAction(ctx, os.Stdout, dash, s.caller(), s.currency)
		return nil
	},
}

// report prints a dispatch result and turns anything but a confirmation or a
// pending submission into a non-zero exit.
func report(res *dispatch.Result, net *chain.Network) error {
	fmt.Print(ui.ResultView(res, net))
	switch res.Final.Outcome {
	case dispatch.Confirmed, dispatch.Pending:
		return nil
	}
	return errReported
}

// afterAction refreshes and prints the sale state once a transaction went
// out. When d already holds a snapshot, the change in funds raised since then
// is shown too.
func afterAction(ctx context.Context, out io.Writer, d *state.Dashboard, caller *common.Address, currency string) {
	before := d.Aggregator().Latest()
	rep, err := d.Refresh(ctx, caller)
	if err != nil {
		fmt.Fprintln(out, ui.Warn("could not refresh sale state: "+err.Error()))
		return
	}
	fmt.Fprintln(out, ui.ReportView(rep, currency))

	after := rep.Snapshot
	if before == nil || before.Raised == nil || after.Raised == nil {
		return
	}
	if delta := new(big.Int).Sub(after.Raised, before.Raised); delta.Sign() != 0 {
		fmt.Fprintln(out, ui.Info(fmt.Sprintf("raised %s %s since the previous read", chain.FormatEther(delta), currency)))
	}
}

func init() {
	buyCmd.Flags().BoolVar(&buyQuote, "quote", false, "only show how many tokens the amount buys")
}
