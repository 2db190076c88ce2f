package paths

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/roadan/incubator-amaterasu/internal/action"
)

func TestStandardResourcePaths(t *testing.T) {
	testCases := []struct {
		jobID string
		name  string
	}{
		{"job1", "step1"},
		{"6b1f4c1e", "clean-data"},
		{"", "x"},
	}

	for _, tc := range testCases {
		got := StandardResourcePaths(tc.jobID, action.Action{Name: tc.name, Src: "ignored.py"})
		want := []string{
			tc.jobID + "/" + tc.name + "/env.yaml",
			tc.jobID + "/" + tc.name + "/runtime.yaml",
			tc.jobID + "/" + tc.name + "/datasets.yaml",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("StandardResourcePaths(%q, %q) mismatch (-want +got):\n%s", tc.jobID, tc.name, diff)
		}
	}
}

func TestActionResourcePaths(t *testing.T) {
	act := action.Action{Name: "step1", Src: "job.py"}

	got := ActionResourcePaths("job1", act, []string{"job1/step1/spark-defaults.conf", "extra.txt"})
	want := []string{
		"job1/step1/env.yaml",
		"job1/step1/runtime.yaml",
		"job1/step1/datasets.yaml",
		"job1/step1/spark-defaults.conf",
		"extra.txt",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ActionResourcePaths mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, ActionResourcePaths("job1", act, nil), 3)
}

func TestActionFilesIsACopy(t *testing.T) {
	files := ActionFiles()
	files[0] = "mutated.yaml"
	assert.Equal(t, []string{"env.yaml", "runtime.yaml", "datasets.yaml"}, ActionFiles())
}

func TestSourcePaths(t *testing.T) {
	act := action.Action{Name: "step1", Src: "jobs/job.py"}
	assert.Equal(t, "job1/step1/jobs/job.py", SourceStagingPath("job1", act))
	assert.Equal(t, "repo/src/job.py", RepoSourcePath("job.py"))
}

func TestSourceName(t *testing.T) {
	testCases := []struct {
		src  string
		want string
	}{
		{"jobs/job.py", "jobs/job.py"},
		{"http://x/y.py", "y.py"},
		{"https://example.com/dl/job.py?ref=main", "job.py"},
		{"s3://bucket/etl/run.sh", "run.sh"},
		{"https://example.com/", "source"},
		{"https://example.com", "source"},
		{"https://example.com/dl/..", "source"},
		{"http://[::1", "source"},
	}
	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.want, SourceName(tc.src))
		})
	}

	act := action.Action{Name: "step1", Src: "http://x/y.py"}
	assert.Equal(t, "job1/step1/y.py", SourceStagingPath("job1", act))
}
