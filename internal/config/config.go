package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/roadan/incubator-amaterasu/internal/artifacts"
	"github.com/roadan/incubator-amaterasu/internal/objectstore"
)

type Config struct {
	Log         LogConfig          `yaml:"log" mapstructure:"log"`
	Coordinator CoordinatorConfig  `yaml:"coordinator" mapstructure:"coordinator"`
	Server      ServerConfig       `yaml:"server" mapstructure:"server"`
	Artifacts   ArtifactsConfig    `yaml:"artifacts" mapstructure:"artifacts"`
	Download    DownloadConfig     `yaml:"download" mapstructure:"download"`
	ObjectStore objectstore.Config `yaml:"object_store" mapstructure:"object_store"`
	Staging     StagingConfig      `yaml:"staging" mapstructure:"staging"`
	Launcher    LauncherConfig     `yaml:"launcher" mapstructure:"launcher"`
	Database    DatabaseConfig     `yaml:"database" mapstructure:"database"`

	// Runners holds one settings map per runner type, e.g. runners.spark.master.
	Runners map[string]map[string]any `yaml:"runners" mapstructure:"runners"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type CoordinatorConfig struct {
	CallbackURL string `yaml:"callback_url" mapstructure:"callback_url"`
	Secret      string `yaml:"secret" mapstructure:"secret"`
}

// ServerConfig configures the callback and ledger HTTP server. The admin
// credentials guard the /api routes.
type ServerConfig struct {
	Addr          string `yaml:"addr" mapstructure:"addr"`
	AdminUsername string `yaml:"admin_username" mapstructure:"admin_username"`
	AdminPassword string `yaml:"admin_password" mapstructure:"admin_password"`
}

type ArtifactsConfig struct {
	TieBreak string       `yaml:"tie_break" mapstructure:"tie_break"`
	CacheDir string       `yaml:"cache_dir" mapstructure:"cache_dir"`
	Repos    []RepoConfig `yaml:"repos" mapstructure:"repos"`
}

// RepoConfig registers an artifact repository under ID. Type is "local"
// (Path) or "s3" (Bucket, Prefix, via object_store).
type RepoConfig struct {
	ID     string `yaml:"id" mapstructure:"id"`
	Type   string `yaml:"type" mapstructure:"type"`
	Path   string `yaml:"path" mapstructure:"path"`
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

type DownloadConfig struct {
	Dir          string        `yaml:"dir" mapstructure:"dir"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	AllowPrivate bool          `yaml:"allow_private" mapstructure:"allow_private"`
}

// StagingConfig selects where action resources are fetched from. Type is
// "local" (Path) or "s3" (Bucket, Prefix).
type StagingConfig struct {
	Type   string `yaml:"type" mapstructure:"type"`
	Path   string `yaml:"path" mapstructure:"path"`
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

type LauncherConfig struct {
	Type    string `yaml:"type" mapstructure:"type"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
	JobName string `yaml:"job_name" mapstructure:"job_name"`
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Defaults are applied before the config file and environment.
var Defaults = map[string]any{
	"log.level":                "info",
	"log.format":               "text",
	"coordinator.callback_url": "http://127.0.0.1:8080/callback",
	"server.addr":              ":8080",
	"artifacts.tie_break":      "first",
	"artifacts.cache_dir":      "./data/artifacts",
	"download.dir":             "./data/downloads",
	"download.timeout":         "5m",
	"staging.type":             "local",
	"staging.path":             "./data/staging",
	"launcher.type":            "local",
	"launcher.work_dir":        "./data/work",
	"launcher.job_name":        "amaterasu-worker",
	"database.path":            "./data/amaterasu.db",
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads a YAML config file on top of Defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	v := viper.New()
	SetDefaults(v)
	if err := v.MergeConfigMap(raw); err != nil {
		return nil, fmt.Errorf("merge config: %w", err)
	}
	return FromViper(v)
}

func (c *Config) Validate() error {
	if _, err := artifacts.ParseTieBreak(c.Artifacts.TieBreak); err != nil {
		return err
	}

	seen := make(map[string]bool)
	needsObjectStore := c.Staging.Type == "s3"
	for _, r := range c.Artifacts.Repos {
		if strings.TrimSpace(r.ID) == "" {
			return errors.New("artifacts.repos: id is required")
		}
		if seen[r.ID] {
			return fmt.Errorf("artifacts.repos: duplicate id %q", r.ID)
		}
		seen[r.ID] = true

		switch r.Type {
		case "local":
			if r.Path == "" {
				return fmt.Errorf("artifacts.repos %q: path is required", r.ID)
			}
		case "s3":
			if r.Bucket == "" {
				return fmt.Errorf("artifacts.repos %q: bucket is required", r.ID)
			}
			needsObjectStore = true
		default:
			return fmt.Errorf("artifacts.repos %q: unknown type %q", r.ID, r.Type)
		}
	}

	switch c.Staging.Type {
	case "local":
	case "s3":
		if c.Staging.Bucket == "" {
			return errors.New("staging: bucket is required for s3")
		}
	default:
		return fmt.Errorf("staging: unknown type %q", c.Staging.Type)
	}

	if needsObjectStore {
		if err := c.ObjectStore.Validate(); err != nil {
			return fmt.Errorf("object_store: %w", err)
		}
	}

	switch c.Launcher.Type {
	case "local":
	case "nomad":
		if c.Launcher.JobName == "" {
			return errors.New("launcher: job_name is required for nomad")
		}
	default:
		return fmt.Errorf("launcher: unknown type %q", c.Launcher.Type)
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}

// RunnerEnv returns the runners.{typeID} subtree of v. A runner without
// settings gets an empty tree.
func RunnerEnv(v *viper.Viper, typeID string) *viper.Viper {
	if sub := v.Sub("runners." + typeID); sub != nil {
		return sub
	}
	return viper.New()
}
