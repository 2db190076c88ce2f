package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roadan/incubator-amaterasu/internal/dispatch"
	"github.com/roadan/incubator-amaterasu/internal/jobfile"
	"github.com/roadan/incubator-amaterasu/internal/sanitize"
)

var (
	prepareJobID       string
	prepareExecutorID  string
	prepareShowSecrets bool
)

var prepareCmd = &cobra.Command{
	Use:   "prepare <jobfile> <action>",
	Short: "Resolve an action and print its dispatch package",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := jobfile.Load(args[0])
		if err != nil {
			return err
		}
		act, ok := job.Action(args[1])
		if !ok {
			return fmt.Errorf("action %q not found in job %q", args[1], job.Name)
		}

		a, err := newApp(components{})
		if err != nil {
			return err
		}
		defer a.Close()

		jobID := prepareJobID
		if jobID == "" {
			jobID = job.Name
		}
		pkg, err := a.coordinator.Prepare(cmd.Context(), jobID, act, prepareExecutorID)
		if err != nil {
			return err
		}
		return writePackage(cmd.OutOrStdout(), pkg, prepareShowSecrets)
	},
}

func init() {
	prepareCmd.Flags().StringVar(&prepareJobID, "job-id", "", "job id (default is the job name)")
	prepareCmd.Flags().StringVar(&prepareExecutorID, "executor-id", "", "executor id (default is a new uuid)")
	prepareCmd.Flags().BoolVar(&prepareShowSecrets, "show-secrets", false, "print command and callback without redaction")
	rootCmd.AddCommand(prepareCmd)
}

// writePackage prints pkg as indented JSON. Unless showSecrets is set the
// command and callback address are redacted.
func writePackage(w io.Writer, pkg *dispatch.Package, showSecrets bool) error {
	out := *pkg
	if !showSecrets {
		out.Command = sanitize.Command(out.Command)
		out.CallbackAddress = sanitize.Command(out.CallbackAddress)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
