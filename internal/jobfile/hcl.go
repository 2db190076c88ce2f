package jobfile

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type hclJob struct {
	Name    string      `hcl:"name"`
	Actions []hclAction `hcl:"action,block"`
}

type hclAction struct {
	Name     string            `hcl:"name,label"`
	ID       string            `hcl:"id,optional"`
	Runner   string            `hcl:"runner"`
	Group    string            `hcl:"group,optional"`
	Src      string            `hcl:"src,optional"`
	Repo     string            `hcl:"repo,optional"`
	Artifact string            `hcl:"artifact,optional"`
	Config   string            `hcl:"config,optional"`
	Packages []string          `hcl:"packages,optional"`
	Exports  map[string]string `hcl:"exports,optional"`
}

func loadHCL(path string) (*Job, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var doc hclJob
	diags = gohcl.DecodeBody(file.Body, nil, &doc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	job := &Job{Name: doc.Name}
	for _, a := range doc.Actions {
		act, err := entry{
			ID:       a.ID,
			Name:     a.Name,
			Runner:   a.Runner,
			Group:    a.Group,
			Src:      a.Src,
			Repo:     a.Repo,
			Artifact: a.Artifact,
			Config:   a.Config,
			Packages: a.Packages,
			Exports:  a.Exports,
		}.toAction()
		if err != nil {
			return nil, err
		}
		job.Actions = append(job.Actions, act)
	}
	return job, nil
}
