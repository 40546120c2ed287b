package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	csync "github.com/Mohsinsiddi/w3sale/internal/sync"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import sale addresses from a deployments manifest",
}

var syncSetSourceCmd = &cobra.Command{
	Use:   "set-source <url-or-path>",
	Short: "Set the deployments manifest location",
	Long: `Set where deployments are read from: an http(s) URL or a local file path.
"{network}" in the location is replaced by the network name, e.g.
./deployments/{network}.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := csync.New(cfg).SetSource(args[0]); err != nil {
			return err
		}
		fmt.Println(ui.Success("Sync source set to: " + args[0]))
		return nil
	},
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the manifest and store the sale entry for the network",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		network := targetNetwork()
		spin := ui.NewSpinner(os.Stderr, "Syncing deployments…")
		spin.Start()
		e, err := csync.New(cfg).Run(ctx, network)
		spin.Stop()
		if err != nil {
			return err
		}

		pairs := [][2]string{{"Sale", e.Sale}}
		if e.Token != "" {
			pairs = append(pairs, [2]string{"Token", e.Token})
		}
		if e.Receipt != "" {
			pairs = append(pairs, [2]string{"Receipt", e.Receipt})
		}
		if e.DeployBlock != 0 {
			pairs = append(pairs, [2]string{"Deploy block", fmt.Sprint(e.DeployBlock)})
		}
		fmt.Println(ui.KeyValueBlock("Synced "+network, pairs))
		return nil
	},
}

func init() {
	syncCmd.AddCommand(syncSetSourceCmd, syncRunCmd)
}
