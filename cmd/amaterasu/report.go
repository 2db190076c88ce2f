package main

import (
	"github.com/spf13/cobra"

	"github.com/roadan/incubator-amaterasu/internal/repository"
)

var reportMessage string

var reportCmd = &cobra.Command{
	Use:   "report <token> <status>",
	Short: "Apply an executor status report",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := repository.ParseStatus(args[1])
		if err != nil {
			return err
		}

		a, err := newApp(components{ledger: true})
		if err != nil {
			return err
		}
		defer a.Close()

		return a.coordinator.ReportStatus(cmd.Context(), args[0], st, reportMessage)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportMessage, "message", "", "status message")
	rootCmd.AddCommand(reportCmd)
}
