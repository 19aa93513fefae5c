package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amansir99/trustscan-ai-sub001/pkg/version"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "trustscan",
	Short: "trustscan - automated website trust auditing service",
	Long: `trustscan audits websites for trustworthiness: it extracts site
content, runs AI-assisted analysis across five trust dimensions, computes
a weighted risk score, and produces a report that can optionally be
anchored on a distributed ledger for tamper evidence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
