// Package server exposes the dispatch ledger and live status changes to
// operators over HTTP.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/roadan/incubator-amaterasu/internal/coordinator"
	"github.com/roadan/incubator-amaterasu/internal/repository"
	"github.com/roadan/incubator-amaterasu/internal/version"
)

// Coordinator is the part of *coordinator.Coordinator the server uses.
type Coordinator interface {
	ListActions(ctx context.Context, filter repository.ActionFilter) ([]*repository.ActionRecord, error)
	SubscribeStatus(jobID string) chan coordinator.StatusEvent
	UnsubscribeStatus(ch chan coordinator.StatusEvent)
}

const shutdownTimeout = 10 * time.Second

var (
	instanceID     string
	instanceIDOnce sync.Once
)

func getInstanceID() string {
	instanceIDOnce.Do(func() {
		b := make([]byte, 16)
		if _, err := rand.Read(b); err != nil {
			slog.Error("failed to generate instance ID", "error", err)
		}
		instanceID = hex.EncodeToString(b)
	})
	return instanceID
}

// securityHeadersMiddleware adds common security headers to each response.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

type HttpServer struct {
	addr        string
	coordinator Coordinator
	auth        *AuthMiddleware
	logger      *slog.Logger
}

func NewHttpServer(addr string, c Coordinator, auth *AuthMiddleware, logger *slog.Logger) *HttpServer {
	return &HttpServer{
		addr:        addr,
		coordinator: c,
		auth:        auth,
		logger:      logger,
	}
}

func (s *HttpServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /validate", s.handleValidate)

	mux.HandleFunc("GET /api/actions", s.auth.RequireBasicAuth(s.handleListActions))
	mux.HandleFunc("GET /api/status-stream", s.auth.RequireBasicAuth(s.handleStatusStream))

	return securityHeadersMiddleware(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *HttpServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HttpServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}

func (s *HttpServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("amaterasu/" + version.Get() + ":" + getInstanceID())); err != nil {
		s.logger.Error("failed to write validate response", "error", err)
	}
}
