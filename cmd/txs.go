package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3sale/internal/txlog"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
)

var (
	txsLimit int
	txsAll   bool
)

var txsCmd = &cobra.Command{
	Use:   "txs",
	Short: "List transactions sent from this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		network := targetNetwork()
		if txsAll {
			network = ""
		}
		entries, err := txlog.Open(cfg.TxLogPath()).Last(txsLimit, network)
		if err != nil {
			return err
		}
		fmt.Print(ui.TxLogTable(entries))
		return nil
	},
}

func init() {
	txsCmd.Flags().IntVarP(&txsLimit, "limit", "l", 20, "number of entries")
	txsCmd.Flags().BoolVar(&txsAll, "all", false, "include every network")
}
