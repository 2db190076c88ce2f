package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roadan/incubator-amaterasu/internal/server"
)

var (
	serveReapEvery     time.Duration
	serveReapOlderThan time.Duration
	serveReapLimit     int
)

// staleReaper is the part of *coordinator.Coordinator the sweep loop uses.
type staleReaper interface {
	ReapStale(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger API and sweep stale actions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(components{launcher: true, ledger: true})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		auth := server.NewAuthMiddleware(&server.AuthConfig{
			AdminUsername: a.cfg.Server.AdminUsername,
			AdminPassword: a.cfg.Server.AdminPassword,
		})
		srv := server.NewHttpServer(a.cfg.Server.Addr, a.coordinator, auth, logger)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.ListenAndServe(ctx) })
		if serveReapEvery > 0 {
			g.Go(func() error { return reapLoop(ctx, a.coordinator, serveReapEvery, serveReapOlderThan, serveReapLimit) })
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().DurationVar(&serveReapEvery, "reap-every", 5*time.Minute, "interval between stale action sweeps, 0 disables")
	serveCmd.Flags().DurationVar(&serveReapOlderThan, "reap-older-than", time.Hour, "reap actions without a report for this long")
	serveCmd.Flags().IntVar(&serveReapLimit, "reap-limit", 100, "maximum actions reaped per sweep")
	rootCmd.AddCommand(serveCmd)
}

func reapLoop(ctx context.Context, r staleReaper, every, olderThan time.Duration, limit int) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.ReapStale(ctx, time.Now().Add(-olderThan), limit)
			if err != nil {
				logger.Error("stale action sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("reaped stale actions", "count", n)
			}
		}
	}
}
