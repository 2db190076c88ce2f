package orchestration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLog struct {
	lines []string
}

func (r *recordingLog) AddLog(runID, stream, data string) {
	r.lines = append(r.lines, runID+" "+stream+" "+data)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipeline_RunsStepsInOrder(t *testing.T) {
	var order []string
	logs := &recordingLog{}

	err := NewPipeline("job1/step1", logs, discard()).
		AddStep("a", "first", func(ctx context.Context) error { order = append(order, "a"); return nil }).
		AddStep("b", "second", func(ctx context.Context) error { order = append(order, "b"); return nil }).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []string{
		"job1/step1 system [1/2] first...",
		"job1/step1 system [2/2] second...",
		"job1/step1 system Pipeline completed successfully",
	}, logs.lines)
}

func TestPipeline_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	ranLast := false

	err := NewPipeline("run", nil, discard()).
		AddStep("a", "first", func(ctx context.Context) error { return boom }).
		AddStep("b", "second", func(ctx context.Context) error { ranLast = true; return nil }).
		Run(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "step a failed")
	assert.False(t, ranLast)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := false

	err := NewPipeline("run", nil, discard()).
		AddStep("a", "first", func(ctx context.Context) error { cancel(); return nil }).
		AddStep("b", "second", func(ctx context.Context) error { ran = true; return nil }).
		Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}
