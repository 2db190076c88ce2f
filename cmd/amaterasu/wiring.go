package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/viper"

	"github.com/roadan/incubator-amaterasu/internal/artifacts"
	"github.com/roadan/incubator-amaterasu/internal/config"
	"github.com/roadan/incubator-amaterasu/internal/coordinator"
	"github.com/roadan/incubator-amaterasu/internal/dispatch"
	"github.com/roadan/incubator-amaterasu/internal/download"
	"github.com/roadan/incubator-amaterasu/internal/launcher"
	"github.com/roadan/incubator-amaterasu/internal/launcher/local"
	"github.com/roadan/incubator-amaterasu/internal/launcher/nomad"
	"github.com/roadan/incubator-amaterasu/internal/locator"
	"github.com/roadan/incubator-amaterasu/internal/objectstore"
	"github.com/roadan/incubator-amaterasu/internal/repository"
	"github.com/roadan/incubator-amaterasu/internal/repository/sqlite"
	"github.com/roadan/incubator-amaterasu/internal/runner"
	"github.com/roadan/incubator-amaterasu/internal/runner/python"
	"github.com/roadan/incubator-amaterasu/internal/runner/shell"
	"github.com/roadan/incubator-amaterasu/internal/runner/spark"
	"github.com/roadan/incubator-amaterasu/internal/staging"
)

// components selects what newApp wires beyond preparation.
type components struct {
	launcher bool
	ledger   bool
	stager   bool
}

type app struct {
	cfg         *config.Config
	coordinator *coordinator.Coordinator
	stager      *staging.Stager
	launcher    launcher.Launcher
	repo        repository.Repository
}

func (a *app) Close() error {
	if a.repo != nil {
		return a.repo.Close()
	}
	return nil
}

func newApp(want components) (*app, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	var store *minio.Client
	if cfg.ObjectStore.Endpoint != "" {
		store, err = objectstore.NewClient(cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
	}

	loc, err := newLocator(cfg, store)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	ccfg := coordinator.Config{
		Registry:     newRegistry(),
		Builder:      dispatch.NewBuilder(loc, nil, logger),
		Env:          func(typeID string) runner.Env { return config.RunnerEnv(viper.GetViper(), typeID) },
		CallbackBase: cfg.Coordinator.CallbackURL,
		Secret:       cfg.Coordinator.Secret,
	}

	if ccfg.Secret == "" {
		b := make([]byte, 32)
		_, _ = rand.Read(b)
		ccfg.Secret = hex.EncodeToString(b)
		logger.Warn("coordinator.secret is not set; callback tokens will only validate in this process")
	}

	if want.launcher {
		l, err := newLauncher(cfg)
		if err != nil {
			return nil, err
		}
		a.launcher = l
		ccfg.Launcher = l
	}

	if want.ledger || want.launcher {
		repo, err := sqlite.NewRepository(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		a.repo = repo
		ccfg.Repository = repo
	}

	if want.stager {
		src, err := newStagingSource(cfg, store)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.stager = staging.NewStager(src, logger)
	}

	a.coordinator = coordinator.New(logger, ccfg)
	return a, nil
}

func newRegistry() *runner.Registry {
	r := runner.NewRegistry()
	r.Register(python.TypeID, python.New())
	r.Register(spark.TypeSpark, spark.New())
	r.Register(spark.TypePySpark, spark.NewPySpark())
	r.Register(shell.TypeID, shell.New())
	return r
}

func newLocator(cfg *config.Config, store *minio.Client) (*locator.Locator, error) {
	router := artifacts.NewRouter(logger)
	for _, repo := range cfg.Artifacts.Repos {
		switch repo.Type {
		case "local":
			router.Register(repo.ID, artifacts.NewLocalStore(repo.Path))
		case "s3":
			if store == nil {
				return nil, fmt.Errorf("artifact repo %q needs object_store", repo.ID)
			}
			ms, err := artifacts.NewMinioStore(store, repo.Bucket, repo.Prefix, cfg.Artifacts.CacheDir)
			if err != nil {
				return nil, fmt.Errorf("artifact repo %q: %w", repo.ID, err)
			}
			router.Register(repo.ID, ms)
		}
	}

	client := download.NewSafeClient(cfg.Download.Timeout)
	if cfg.Download.AllowPrivate {
		client = &http.Client{Timeout: cfg.Download.Timeout}
	}
	mux := download.NewMux()
	httpDownloader := download.NewHTTPDownloader(client, cfg.Download.Dir)
	mux.Handle("http", httpDownloader)
	mux.Handle("https", httpDownloader)
	if store != nil {
		mux.Handle("s3", download.NewS3Downloader(store, cfg.Download.Dir))
	}

	tieBreak, err := artifacts.ParseTieBreak(cfg.Artifacts.TieBreak)
	if err != nil {
		return nil, err
	}

	return locator.New(router, mux, download.NewCache(mux, logger), func(o *locator.Options) {
		o.TieBreak = tieBreak
		o.Logger = logger
	}), nil
}

func newLauncher(cfg *config.Config) (launcher.Launcher, error) {
	switch cfg.Launcher.Type {
	case "local":
		return local.New(cfg.Launcher.WorkDir, logger), nil
	case "nomad":
		l, err := nomad.New(cfg.Launcher.Addr, cfg.Launcher.JobName)
		if err != nil {
			return nil, fmt.Errorf("failed to create launcher: %w", err)
		}
		return l, nil
	}
	return nil, fmt.Errorf("unknown launcher type: %s", cfg.Launcher.Type)
}

func newStagingSource(cfg *config.Config, store *minio.Client) (staging.Source, error) {
	switch cfg.Staging.Type {
	case "local":
		return staging.NewLocalSource(cfg.Staging.Path), nil
	case "s3":
		if store == nil {
			return nil, errors.New("s3 staging needs object_store")
		}
		return staging.NewMinioSource(store, cfg.Staging.Bucket, cfg.Staging.Prefix), nil
	}
	return nil, fmt.Errorf("unknown staging type: %s", cfg.Staging.Type)
}
