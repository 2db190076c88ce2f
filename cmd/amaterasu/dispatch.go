package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roadan/incubator-amaterasu/internal/action"
	"github.com/roadan/incubator-amaterasu/internal/jobfile"
	"github.com/roadan/incubator-amaterasu/internal/launcher/local"
)

var (
	dispatchJobID   string
	dispatchActions []string
	dispatchWait    bool
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <jobfile>",
	Short: "Launch the actions of a job and record them in the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := jobfile.Load(args[0])
		if err != nil {
			return err
		}
		acts, err := selectActions(job, dispatchActions)
		if err != nil {
			return err
		}

		a, err := newApp(components{launcher: true, ledger: true})
		if err != nil {
			return err
		}
		defer a.Close()

		jobID := dispatchJobID
		if jobID == "" {
			jobID = job.Name + "-" + uuid.NewString()[:8]
		}

		for _, act := range acts {
			rec, err := a.coordinator.Dispatch(cmd.Context(), jobID, act)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%s\t%s\n", rec.JobID, rec.Action, rec.Launcher, rec.DispatchID)

			// Local workers are children of this process.
			if l, ok := a.launcher.(*local.Launcher); ok && dispatchWait {
				if err := l.Wait(cmd.Context(), rec.DispatchID); err != nil {
					return fmt.Errorf("action %s failed: %w", act.Name, err)
				}
			}
		}
		return nil
	},
}

func init() {
	dispatchCmd.Flags().StringVar(&dispatchJobID, "job-id", "", "job id (default is the job name with a random suffix)")
	dispatchCmd.Flags().StringSliceVar(&dispatchActions, "action", nil, "dispatch only these actions, in job order")
	dispatchCmd.Flags().BoolVar(&dispatchWait, "wait", true, "wait for each local worker before dispatching the next")
	rootCmd.AddCommand(dispatchCmd)
}

// selectActions returns the job's actions filtered by names, keeping job
// order. Every name must exist.
func selectActions(job *jobfile.Job, names []string) ([]action.Action, error) {
	if len(names) == 0 {
		return job.Actions, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := job.Action(n); !ok {
			return nil, fmt.Errorf("action %q not found in job %q", n, job.Name)
		}
		want[n] = true
	}
	var out []action.Action
	for _, act := range job.Actions {
		if want[act.Name] {
			out = append(out, act)
		}
	}
	return out, nil
}
