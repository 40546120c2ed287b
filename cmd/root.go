package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Mohsinsiddi/w3sale/internal/config"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3sale/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir      string
	cfg         *config.Config
	verbose     bool
	networkFlag string
	walletFlag  string
	log         = zap.NewNop()
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3sale",
	Short: "Client for a token crowdsale",
	Long: `w3sale reads a crowdsale's state, counts its receipt mints, buys tokens
and withdraws raised funds.

Reads work without a wallet through fallback RPCs. Writes need a signing
wallet: add one with "w3sale wallet import <name> --key <hex>".

Contract addresses come from SALE_ADDRESS, TOKEN_ADDRESS and NFT_ADDRESS (a
.env file in the working directory is read) or from the stored sale entry
for the network.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		if verbose {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			log = l
		}

		config.LoadEnvFiles()
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return cfg.ApplyEnv(os.LookupEnv)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = log.Sync()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, errorLine(err))
		}
		os.Exit(1)
	}
}

func init() {
	// W3SALE_CONFIG_DIR overrides the --config default.
	if envDir := os.Getenv("W3SALE_CONFIG_DIR"); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.w3sale)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	rootCmd.PersistentFlags().StringVarP(&networkFlag, "network", "n", "", "target network (default: NETWORK or config)")
	rootCmd.PersistentFlags().StringVarP(&walletFlag, "wallet", "w", "", "wallet to use (default: the default wallet)")

	rootCmd.AddCommand(
		stateCmd,
		tallyCmd,
		buyCmd,
		withdrawCmd,
		watchCmd,
		walletCmd,
		configCmd,
		syncCmd,
		txsCmd,
	)
}
