package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	reapOlderThan time.Duration
	reapLimit     int
)

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Mark actions that stopped reporting as errored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(components{launcher: true, ledger: true})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.coordinator.ReapStale(cmd.Context(), time.Now().Add(-reapOlderThan), reapLimit)
		if err != nil {
			return err
		}
		logger.Info("reaped stale actions", "count", n)
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	reapCmd.Flags().DurationVar(&reapOlderThan, "older-than", time.Hour, "reap actions without a report for this long")
	reapCmd.Flags().IntVar(&reapLimit, "limit", 100, "maximum actions per run")
	rootCmd.AddCommand(reapCmd)
}
