package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roadan/incubator-amaterasu/internal/repository"
)

var (
	statusJobID  string
	statusFilter string
	statusLimit  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List recorded actions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter repository.ActionFilter
		if statusJobID != "" {
			filter.JobID = &statusJobID
		}
		if statusFilter != "" {
			st, err := repository.ParseStatus(statusFilter)
			if err != nil {
				return err
			}
			filter.Status = &st
		}
		filter.Limit = statusLimit

		a, err := newApp(components{ledger: true})
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.coordinator.ListActions(cmd.Context(), filter)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "JOB\tACTION\tRUNNER\tSTATUS\tUPDATED\tMESSAGE")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.JobID, r.Action, r.Runner, r.Status, r.UpdatedAt.Format("2006-01-02 15:04:05"), r.Message)
		}
		return tw.Flush()
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusJobID, "job-id", "", "only actions of this job")
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "only actions in this status")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "maximum rows, 0 for all")
	rootCmd.AddCommand(statusCmd)
}
