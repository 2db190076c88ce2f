package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// LogProvider receives human-readable progress lines for a run.
type LogProvider interface {
	AddLog(runID string, stream string, data string)
}

// Step represents a single step in the orchestration pipeline
type Step struct {
	Name        string
	Description string
	Execute     func(ctx context.Context) error
}

// Pipeline executes a series of steps in order and stops at the first
// failure.
type Pipeline struct {
	runID       string
	logProvider LogProvider
	logger      *slog.Logger
	steps       []Step
}

// NewPipeline creates a new orchestration pipeline. logProvider may be nil.
func NewPipeline(runID string, logProvider LogProvider, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		runID:       runID,
		logProvider: logProvider,
		logger:      logger,
		steps:       make([]Step, 0),
	}
}

// AddStep adds a step to the pipeline
func (p *Pipeline) AddStep(name, description string, fn func(ctx context.Context) error) *Pipeline {
	p.steps = append(p.steps, Step{
		Name:        name,
		Description: description,
		Execute:     fn,
	})
	return p
}

// Run executes all steps in order. A cancelled context stops the pipeline
// before the next step starts.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Debug("starting pipeline", "run_id", p.runID, "steps", len(p.steps))
	start := time.Now()

	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("step %s: %w", step.Name, err)
		}

		p.logger.Debug("executing step", "run_id", p.runID, "step", step.Name, "description", step.Description)
		p.addLog(fmt.Sprintf("[%d/%d] %s...", i+1, len(p.steps), step.Description))

		if err := step.Execute(ctx); err != nil {
			p.logger.Error("step failed", "run_id", p.runID, "step", step.Name, "error", err)
			p.addLog(fmt.Sprintf("Step '%s' failed: %v", step.Name, err))
			return fmt.Errorf("step %s failed: %w", step.Name, err)
		}
	}

	p.logger.Debug("pipeline completed", "run_id", p.runID, "duration", time.Since(start))
	p.addLog("Pipeline completed successfully")
	return nil
}

func (p *Pipeline) addLog(line string) {
	if p.logProvider != nil {
		p.logProvider.AddLog(p.runID, "system", line)
	}
}
