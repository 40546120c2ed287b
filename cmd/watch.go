package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3sale/internal/state"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the sale state",
	Long: `Refresh the sale state and receipt count on an interval (default from
config, 25s). A refresh starts only after the previous one has finished.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.resolver.Close()

		every := watchInterval
		if every <= 0 {
			every = cfg.WatchEvery()
		}
		dash := s.dashboard()
		caller := s.caller()
		title := fmt.Sprintf("Sale on %s", s.network)

		m := ui.NewWatchModel(ctx, title, s.currency, every, func(ctx context.Context) (*state.Report, error) {
			return dash.Refresh(ctx, caller)
		})
		_, err = ui.NewWatchProgram(m, tea.WithContext(ctx)).Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "refresh period (e.g. 10s)")
}
