package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cairnchain/node/app"
	"github.com/cairnchain/node/app/config"
	"github.com/cairnchain/node/version"
)

const flagNetwork = "network"

func main() {
	ctx := app.ServerContext

	rootCmd := &cobra.Command{
		Use:               "cairnd",
		Short:             "Cairn Chain daemon (server)",
		PersistentPreRunE: app.PersistentPreRunEFn(ctx),
	}
	rootCmd.PersistentFlags().String(app.FlagHome, app.DefaultNodeHome, "directory for config and data")
	if err := viper.BindPFlag(app.FlagHome, rootCmd.PersistentFlags().Lookup(app.FlagHome)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd.AddCommand(startCmd(ctx))
	rootCmd.AddCommand(version.Cmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd(ctx *config.CairnContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the Cairn node until interrupted or stopped over RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed(flagNetwork) {
				network, err := cmd.Flags().GetString(flagNetwork)
				if err != nil {
					return err
				}
				ctx.Config.Base.Network = network
			}

			node, err := app.NewCairnNode(ctx, viper.GetString(app.FlagHome))
			if err != nil {
				return err
			}
			if err := node.Start(); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				node.Logger.Info("caught signal", "signal", sig.String())
				node.Stop()
			}()

			node.Wait()
			return nil
		},
	}
	cmd.Flags().String(flagNetwork, "", "override the configured network (mainnet, testnet or regtest)")
	return cmd
}
