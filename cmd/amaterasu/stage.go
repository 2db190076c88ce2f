package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roadan/incubator-amaterasu/internal/jobfile"
)

var (
	stageJobID string
	stageDest  string
)

var stageCmd = &cobra.Command{
	Use:   "stage <jobfile> <action>",
	Short: "Prepare an action and copy its resources into a directory",
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

		a, err := newApp(components{stager: true})
		if err != nil {
			return err
		}
		defer a.Close()

		jobID := stageJobID
		if jobID == "" {
			jobID = job.Name
		}
		pkg, err := a.coordinator.Prepare(cmd.Context(), jobID, act, "")
		if err != nil {
			return err
		}

		staged, err := a.stager.Stage(cmd.Context(), pkg, stageDest)
		if err != nil {
			return err
		}
		for _, p := range staged {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	stageCmd.Flags().StringVar(&stageJobID, "job-id", "", "job id (default is the job name)")
	stageCmd.Flags().StringVar(&stageDest, "dest", ".", "directory to stage into")
	rootCmd.AddCommand(stageCmd)
}
