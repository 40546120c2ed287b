package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3sale/internal/tally"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
)

var (
	tallyFrom uint64
	tallyTo   uint64
)

var tallyCmd = &cobra.Command{
	Use:   "tally",
	Short: "Count receipt NFTs minted by the sale",
	Long: `Count receipts through the receipt contract's totalSupply(), falling back to
a scan of mint events from the deployment block (DEPLOY_BLOCK) to the head.
With --from and --to only that block range is scanned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.resolver.Close()

		scanner := s.scanner()
		spin := ui.NewSpinner(os.Stderr, "Counting receipts…")
		spin.Start()
		var t tally.Tally
		if cmd.Flags().Changed("from") {
			t, err = scanner.ScanRange(ctx, tallyFrom, tallyTo)
		} else {
			t, err = scanner.Count(ctx)
		}
		spin.Stop()
		if err != nil {
			if t.Windows > 0 {
				fmt.Println(ui.Warn("partial: " + ui.TallyLine(&t, nil)))
			}
			return err
		}
		fmt.Println(ui.TallyLine(&t, nil))
		return nil
	},
}

func init() {
	tallyCmd.Flags().Uint64Var(&tallyFrom, "from", 0, "first block to scan")
	tallyCmd.Flags().Uint64Var(&tallyTo, "to", 0, "last block to scan")
	tallyCmd.MarkFlagsRequiredTogether("from", "to")
}
