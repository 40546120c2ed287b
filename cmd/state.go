package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3sale/internal/ui"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the sale's current state",
	Long: `Read rate, cap, raised funds, token metadata, your token balance and the
receipt count. Each value is read on its own deadline; one that cannot be read
is shown with the reason instead of failing the whole view.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.resolver.Close()

		spin := ui.NewSpinner(os.Stderr, "Reading sale state…")
		spin.Start()
		rep, err := s.dashboard().Refresh(ctx, s.caller())
		spin.Stop()
		if err != nil {
			return err
		}
		fmt.Println(ui.ReportView(rep, s.currency))
		return nil
	},
}
