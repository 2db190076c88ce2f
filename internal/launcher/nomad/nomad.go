package nomad

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/nomad/api"

	"github.com/roadan/incubator-amaterasu/internal/dispatch"
)

// maxPayload is Nomad's limit for dispatch payloads.
const maxPayload = 16 * 1024

// Launcher dispatches a parameterized Nomad job per action. The job must
// declare the meta keys set in Meta as optional or required meta.
type Launcher struct {
	client  *api.Client
	jobName string
}

func New(addr string, jobName string) (*Launcher, error) {
	config := api.DefaultConfig()
	if addr != "" {
		config.Address = addr
	}
	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("create nomad client: %w", err)
	}

	return &Launcher{
		client:  client,
		jobName: jobName,
	}, nil
}

func (n *Launcher) Kind() string {
	return "nomad"
}

// Meta flattens pkg into the dispatch meta map. Lists are comma separated.
func Meta(pkg *dispatch.Package) map[string]string {
	return map[string]string{
		"job_id":            pkg.JobID,
		"action":            pkg.Action,
		"executor_id":       pkg.ExecutorID,
		"command":           pkg.Command,
		"executable":        pkg.ExecutablePath,
		"resources":         strings.Join(append(append([]string(nil), pkg.RunnerResources...), pkg.Resources...), ","),
		"dependencies":      strings.Join(pkg.Dependencies, ","),
		"callback":          pkg.CallbackAddress,
		"requires_executor": strconv.FormatBool(pkg.RequiresExecutor),
	}
}

// Launch sends the package as JSON payload alongside the meta map.
func (n *Launcher) Launch(ctx context.Context, pkg *dispatch.Package) (string, error) {
	payload, err := json.Marshal(pkg)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	if len(payload) > maxPayload {
		payload = nil
	}

	prefix := "amaterasu-" + pkg.JobID + "-" + pkg.Action
	resp, _, err := n.client.Jobs().Dispatch(n.jobName, Meta(pkg), payload, prefix, (&api.WriteOptions{}).WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("dispatch job: %w", err)
	}

	return resp.DispatchedJobID, nil
}

func (n *Launcher) Cancel(ctx context.Context, id string) error {
	_, _, err := n.client.Jobs().Deregister(id, true, (&api.WriteOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("deregister job %s: %w", id, err)
	}
	return nil
}
