package staging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadan/incubator-amaterasu/internal/action"
	"github.com/roadan/incubator-amaterasu/internal/dispatch"
	"github.com/roadan/incubator-amaterasu/internal/runner"
	"github.com/roadan/incubator-amaterasu/internal/runner/python"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for key, content := range files {
		p := filepath.Join(root, filepath.FromSlash(key))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func pkg() *dispatch.Package {
	return &dispatch.Package{
		JobID:           "job1",
		Action:          "step1",
		RunnerResources: []string{"amaterasu-sdk.zip"},
		Resources: []string{
			"job1/step1/env.yaml",
			"job1/step1/runtime.yaml",
			"job1/step1/datasets.yaml",
			"job1/step1/job.py",
		},
	}
}

func TestStage(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{
		"amaterasu-sdk.zip":        "sdk",
		"job1/step1/env.yaml":      "env",
		"job1/step1/runtime.yaml":  "runtime",
		"job1/step1/datasets.yaml": "datasets",
		"job1/step1/job.py":        "print(1)",
	})
	dest := t.TempDir()

	staged, err := NewStager(NewLocalSource(root), discard()).Stage(context.Background(), pkg(), dest)
	require.NoError(t, err)

	want := []string{
		filepath.Join(dest, "amaterasu-sdk.zip"),
		filepath.Join(dest, "job1", "step1", "env.yaml"),
		filepath.Join(dest, "job1", "step1", "runtime.yaml"),
		filepath.Join(dest, "job1", "step1", "datasets.yaml"),
		filepath.Join(dest, "job1", "step1", "job.py"),
	}
	if diff := cmp.Diff(want, staged); diff != "" {
		t.Errorf("staged paths mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(dest, "job1", "step1", "job.py"))
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))
}

func TestStage_FailsFastOnMissingResource(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{
		"amaterasu-sdk.zip":   "sdk",
		"job1/step1/job.py":   "print(1)",
		"job1/step1/env.yaml": "env",
	})
	dest := t.TempDir()

	staged, err := NewStager(NewLocalSource(root), discard()).Stage(context.Background(), pkg(), dest)
	assert.Nil(t, staged)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "job1/step1/runtime.yaml")

	_, statErr := os.Stat(filepath.Join(dest, "job1", "step1", "job.py"))
	assert.True(t, os.IsNotExist(statErr), "later resources are not fetched")
}

func TestDestPath_RejectsEscapes(t *testing.T) {
	_, err := destPath("/work", "../etc/passwd")
	assert.Error(t, err)

	p, err := destPath("/work", "job1/step1/env.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work", "job1", "step1", "env.yaml"), p)
}

func TestMinioSource_ObjectKey(t *testing.T) {
	assert.Equal(t, "staging/job1/step1/env.yaml", NewMinioSource(nil, "b", "/staging/").objectKey("job1/step1/env.yaml"))
	assert.Equal(t, "job1/step1/env.yaml", NewMinioSource(nil, "b", "").objectKey("job1/step1/env.yaml"))
}

type downloadedSource struct {
	path string
}

func (d downloadedSource) ResolveExecutable(ctx context.Context, jobID string, act action.Action) (string, error) {
	return d.path, nil
}

func TestStage_URLSourceFromDownload(t *testing.T) {
	downloaded := filepath.Join(t.TempDir(), "0a1b", "y.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(downloaded), 0o755))
	require.NoError(t, os.WriteFile(downloaded, []byte("print('remote')"), 0o644))

	act := action.Action{Name: "step1", Src: "http://x/y.py"}
	b := dispatch.NewBuilder(downloadedSource{path: downloaded}, nil, discard())
	p, err := b.Prepare(context.Background(), dispatch.Request{
		JobID:           "job1",
		Action:          act,
		Runner:          python.New(),
		Env:             viper.New(),
		ExecutorID:      "exec-1",
		CallbackAddress: "http://coordinator/cb",
	})
	require.NoError(t, err)
	assert.Equal(t, "job1/step1/y.py", p.SourceKey)

	// The resource source only holds what was staged ahead of time.
	root := t.TempDir()
	seed(t, root, map[string]string{
		"amaterasu-sdk.zip":        "sdk",
		"job1/step1/env.yaml":      "env",
		"job1/step1/runtime.yaml":  "runtime",
		"job1/step1/datasets.yaml": "datasets",
	})
	dest := t.TempDir()

	_, err = NewStager(NewLocalSource(root), discard()).Stage(context.Background(), p, dest)
	require.NoError(t, err)

	entry := runner.Entrypoint("job1", act)
	assert.True(t, strings.Contains(p.Command, " "+entry+" "), "command %q launches %q", p.Command, entry)
	data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(entry)))
	require.NoError(t, err)
	assert.Equal(t, "print('remote')", string(data))
}

func TestStage_MissingDownloadFails(t *testing.T) {
	p := pkg()
	p.SourceKey = "job1/step1/job.py"
	p.ExecutablePath = filepath.Join(t.TempDir(), "gone.py")

	root := t.TempDir()
	seed(t, root, map[string]string{
		"amaterasu-sdk.zip":        "sdk",
		"job1/step1/env.yaml":      "env",
		"job1/step1/runtime.yaml":  "runtime",
		"job1/step1/datasets.yaml": "datasets",
		"job1/step1/job.py":        "stale copy",
	})

	_, err := NewStager(NewLocalSource(root), discard()).Stage(context.Background(), p, t.TempDir())
	assert.ErrorContains(t, err, "open downloaded source")
}
