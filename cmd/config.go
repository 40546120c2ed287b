package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
)

var (
	setSaleToken       string
	setSaleReceipt     string
	setSaleDeployBlock uint64
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored configuration and environment overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("%s\n\n", ui.StyleTitle.Render("Current Configuration"))
		fmt.Println(string(data))

		o := cfg.Overrides()
		var pairs [][2]string
		for _, kv := range [][2]string{
			{"NETWORK", o.Network},
			{"SALE_ADDRESS", o.Sale},
			{"TOKEN_ADDRESS", o.Token},
			{"NFT_ADDRESS", o.Receipt},
			{"FALLBACK_RPC", o.FallbackRPC},
		} {
			if kv[1] != "" {
				pairs = append(pairs, kv)
			}
		}
		if o.ChainID != 0 {
			pairs = append(pairs, [2]string{"CHAIN_ID", strconv.FormatInt(o.ChainID, 10)})
		}
		if o.DeployBlock != nil {
			pairs = append(pairs, [2]string{"DEPLOY_BLOCK", strconv.FormatUint(*o.DeployBlock, 10)})
		}
		if len(pairs) > 0 {
			fmt.Println(ui.KeyValueBlock("Environment overrides", pairs))
		}
		fmt.Println(ui.Meta("Config directory: " + cfg.Dir()))
		return nil
	},
}

var configSetSaleCmd = &cobra.Command{
	Use:   "set-sale <address>",
	Short: "Store the sale deployment for a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		network := targetNetwork()
		e := cfg.Sale(network)
		for _, a := range []struct {
			key, val string
			dst      *string
		}{
			{"sale address", args[0], &e.Sale},
			{"token address", setSaleToken, &e.Token},
			{"receipt address", setSaleReceipt, &e.Receipt},
		} {
			if a.val == "" {
				continue
			}
			if !common.IsHexAddress(a.val) {
				return config.Invalid(a.key, a.val)
			}
			*a.dst = common.HexToAddress(a.val).Hex()
		}
		if cmd.Flags().Changed("deploy-block") {
			e.DeployBlock = setSaleDeployBlock
		}
		cfg.SetSale(network, e)
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Sale on %s set to %s", ui.ChainName(network), ui.Addr(e.Sale))))
		return nil
	},
}

var configAddRPCCmd = &cobra.Command{
	Use:   "add-rpc <url>",
	Short: "Add a fallback RPC for the network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		network := targetNetwork()
		if err := cfg.AddRPC(network, args[0]); err != nil {
			fmt.Println(ui.Warn(err.Error()))
			return nil
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("RPC %s added for %s", args[0], network)))
		return nil
	},
}

var configRemoveRPCCmd = &cobra.Command{
	Use:   "remove-rpc <url>",
	Short: "Remove a fallback RPC for the network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		network := targetNetwork()
		if err := cfg.RemoveRPC(network, args[0]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("RPC %s removed for %s", args[0], network)))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting: network, algorithm, watch-interval, call-timeout-ms, scan-budget",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		atoi := func() (int, error) {
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return 0, config.Invalid(key, val)
			}
			return n, nil
		}
		var err error
		switch key {
		case "network":
			cfg.DefaultNetwork = val
		case "algorithm":
			cfg.RPCAlgorithm = val
		case "watch-interval":
			cfg.WatchInterval, err = atoi()
		case "call-timeout-ms":
			cfg.CallTimeoutMS, err = atoi()
		case "scan-budget":
			cfg.ScanBudgetSeconds, err = atoi()
		default:
			return fmt.Errorf("unknown setting %q", key)
		}
		if err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("%s set to %s", key, val)))
		return nil
	},
}

// targetNetwork is --network or the configured network.
func targetNetwork() string {
	if networkFlag != "" {
		return networkFlag
	}
	return cfg.Network()
}

func init() {
	configSetSaleCmd.Flags().StringVar(&setSaleToken, "token", "", "token contract address")
	configSetSaleCmd.Flags().StringVar(&setSaleReceipt, "receipt", "", "receipt NFT contract address")
	configSetSaleCmd.Flags().Uint64Var(&setSaleDeployBlock, "deploy-block", 0, "block the sale was deployed in")
	configCmd.AddCommand(configShowCmd, configSetSaleCmd, configAddRPCCmd, configRemoveRPCCmd, configSetCmd)
}
