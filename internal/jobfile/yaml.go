package jobfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type yamlJob struct {
	Name    string       `yaml:"name"`
	Actions []yamlAction `yaml:"actions"`
}

type yamlAction struct {
	ID       string            `yaml:"id"`
	Name     string            `yaml:"name"`
	Runner   string            `yaml:"runner"`
	Group    string            `yaml:"group"`
	Src      string            `yaml:"src"`
	Repo     string            `yaml:"repo"`
	Artifact string            `yaml:"artifact"`
	Config   string            `yaml:"config"`
	Packages []string          `yaml:"packages"`
	Exports  map[string]string `yaml:"exports"`
}

func loadYAML(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	var doc yamlJob
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse job file %s: %w", path, err)
	}

	job := &Job{Name: doc.Name}
	for _, a := range doc.Actions {
		act, err := entry(a).toAction()
		if err != nil {
			return nil, err
		}
		job.Actions = append(job.Actions, act)
	}
	return job, nil
}
