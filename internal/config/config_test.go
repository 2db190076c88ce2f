package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmp, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmp.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatal(err)
	}
	return tmp.Name()
}

func TestLoad(t *testing.T) {
	content := `
coordinator:
  callback_url: "http://coordinator:8080/callback"
  secret: "test"
artifacts:
  tie_break: highest-version
  repos:
    - id: central
      type: local
      path: /srv/artifacts
download:
  timeout: 30s
launcher:
  type: nomad
  job_name: amaterasu-worker
runners:
  spark:
    master: yarn
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Coordinator.CallbackURL != "http://coordinator:8080/callback" {
		t.Errorf("unexpected callback url %s", cfg.Coordinator.CallbackURL)
	}
	if cfg.Coordinator.Secret != "test" {
		t.Errorf("expected test, got %s", cfg.Coordinator.Secret)
	}
	if cfg.Artifacts.TieBreak != "highest-version" {
		t.Errorf("expected highest-version, got %s", cfg.Artifacts.TieBreak)
	}
	if len(cfg.Artifacts.Repos) != 1 || cfg.Artifacts.Repos[0].Path != "/srv/artifacts" {
		t.Errorf("unexpected repos %+v", cfg.Artifacts.Repos)
	}
	if cfg.Download.Timeout != 30*time.Second {
		t.Errorf("expected 30s, got %s", cfg.Download.Timeout)
	}
	if cfg.Launcher.Type != "nomad" {
		t.Errorf("expected nomad, got %s", cfg.Launcher.Type)
	}
	if cfg.Runners["spark"]["master"] != "yarn" {
		t.Errorf("expected spark master yarn, got %v", cfg.Runners["spark"])
	}
	// defaults
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level, got %s", cfg.Log.Level)
	}
	if cfg.Database.Path != "./data/amaterasu.db" {
		t.Errorf("expected default database path, got %s", cfg.Database.Path)
	}
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{
			name: "unknown tie break",
			content: `
artifacts:
  tie_break: random
`,
		},
		{
			name: "duplicate repo",
			content: `
artifacts:
  repos:
    - {id: central, type: local, path: /a}
    - {id: central, type: local, path: /b}
`,
		},
		{
			name: "s3 repo without object store",
			content: `
artifacts:
  repos:
    - {id: central, type: s3, bucket: artifacts}
`,
		},
		{
			name: "unknown launcher",
			content: `
launcher:
  type: kubernetes
`,
		},
		{
			name: "unknown log format",
			content: `
log:
  format: xml
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Error("expected an error, but got nil")
			}
		})
	}
}

func TestRunnerEnv(t *testing.T) {
	v := viper.New()
	v.Set("runners.spark.master", "yarn")
	v.Set("runners.spark.conf", []string{"spark.executor.memory=2g"})

	env := RunnerEnv(v, "spark")
	if got := env.GetString("master"); got != "yarn" {
		t.Errorf("expected yarn, got %s", got)
	}
	if got := env.GetStringSlice("conf"); len(got) != 1 || got[0] != "spark.executor.memory=2g" {
		t.Errorf("unexpected conf %v", got)
	}

	empty := RunnerEnv(v, "python")
	if empty.IsSet("master") {
		t.Error("python runner should have no settings")
	}
}

func TestServerSection(t *testing.T) {
	path := writeConfig(t, `
server:
  admin_username: ops
  admin_password: hunter22
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default server addr, got %q", cfg.Server.Addr)
	}
	if cfg.Server.AdminUsername != "ops" || cfg.Server.AdminPassword != "hunter22" {
		t.Errorf("unexpected admin credentials: %+v", cfg.Server)
	}
}
