package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3sale/internal/dispatch"
)

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw raised funds to the sale owner",
	Long: `Withdraw the sale's balance. Only the sale owner can; for any other wallet
the command stops before anything is signed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.resolver.Close()
		if err := s.requireSigner(); err != nil {
			return err
		}

		res, err := dispatch.NewWithdrawDispatcher(s.resolver, s.book, s.dispatchOptions()).
			Withdraw(ctx, common.Address{})
		if err != nil {
			return err
		}
		if err := report(res, s.net); err != nil {
			return err
		}
		afterAction(ctx, os.Stdout, s.dashboard(), s.caller(), s.currency)
		return nil
	},
}
