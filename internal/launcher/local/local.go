// Package local runs prepared actions as child processes of the
// coordinator. It is meant for development and single-host setups.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/roadan/incubator-amaterasu/internal/dispatch"
	"github.com/roadan/incubator-amaterasu/internal/launcher"
)

// ErrUnknownProcess is returned for ids this launcher did not start. It
// matches launcher.ErrNotRunning.
var ErrUnknownProcess = fmt.Errorf("unknown process: %w", launcher.ErrNotRunning)

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Launcher runs "sh -c {command}" in {workDir}/{job}/{action}. Output goes
// to worker.log in that directory.
type Launcher struct {
	workDir string
	shell   string
	logger  *slog.Logger

	mu    sync.Mutex
	procs map[string]*process
}

func New(workDir string, logger *slog.Logger) *Launcher {
	return &Launcher{
		workDir: workDir,
		shell:   "sh",
		logger:  logger,
		procs:   make(map[string]*process),
	}
}

func (l *Launcher) Kind() string {
	return "local"
}

// ActionDir is the working directory of the worker for pkg.
func (l *Launcher) ActionDir(pkg *dispatch.Package) string {
	return filepath.Join(l.workDir, pkg.JobID, pkg.Action)
}

func (l *Launcher) Launch(ctx context.Context, pkg *dispatch.Package) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := l.ActionDir(pkg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	logFile, err := os.Create(filepath.Join(dir, "worker.log"))
	if err != nil {
		return "", fmt.Errorf("create worker log: %w", err)
	}

	cmd := exec.Command(l.shell, "-c", pkg.Command)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(),
		"AMA_JOB_ID="+pkg.JobID,
		"AMA_ACTION="+pkg.Action,
		"AMA_EXECUTOR_ID="+pkg.ExecutorID,
		"AMA_CALLBACK="+pkg.CallbackAddress,
		"AMA_EXECUTABLE="+pkg.ExecutablePath,
		"AMA_REQUIRES_EXECUTOR="+strconv.FormatBool(pkg.RequiresExecutor),
	)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return "", fmt.Errorf("start worker: %w", err)
	}

	id := "local-" + uuid.NewString()
	p := &process{cmd: cmd, done: make(chan struct{})}

	l.mu.Lock()
	l.procs[id] = p
	l.mu.Unlock()

	go func() {
		p.err = cmd.Wait()
		logFile.Close()
		close(p.done)
		if p.err != nil {
			l.logger.Warn("worker exited with error", "id", id, "job_id", pkg.JobID, "action", pkg.Action, "error", p.err)
		} else {
			l.logger.Info("worker exited", "id", id, "job_id", pkg.JobID, "action", pkg.Action)
		}
	}()

	l.logger.Info("worker started", "id", id, "job_id", pkg.JobID, "action", pkg.Action, "pid", cmd.Process.Pid, "dir", dir)
	return id, nil
}

// Wait blocks until the worker exits and returns its exit error.
func (l *Launcher) Wait(ctx context.Context, id string) error {
	p, err := l.get(id)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Launcher) Cancel(ctx context.Context, id string) error {
	p, err := l.get(id)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill worker %s: %w", id, err)
	}
	return nil
}

func (l *Launcher) get(id string) (*process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.procs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcess, id)
	}
	return p, nil
}
