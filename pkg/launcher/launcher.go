// Package launcher supervises a single guidance process for the launcher
// daemon. The child runs in its own process group so stopping it also
// stops anything it spawned.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/process"
)

// DefaultStopTimeout is how long Stop waits after SIGTERM before SIGKILL.
const DefaultStopTimeout = 5 * time.Second

var (
	ErrRunning    = errors.New("launcher: process already running")
	ErrNotRunning = errors.New("launcher: process not running")
	ErrNoCommand  = errors.New("launcher: no command configured")
)

// Config describes the supervised command.
type Config struct {
	Path        string        `yaml:"path"`
	Args        []string      `yaml:"args"`
	Dir         string        `yaml:"dir"`
	Env         []string      `yaml:"env"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// Status describes the supervised process.
type Status struct {
	Running    bool      `json:"running"`
	PID        int       `json:"pid,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
	LastExit   string    `json:"last_exit,omitempty"`
}

// Supervisor starts and stops one child process at a time.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	runID    string
	started  time.Time
	done     chan struct{}
	lastExit string
}

// New creates a supervisor.
func New(cfg Config, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Supervisor{cfg: cfg, logger: logger.With("component", "launcher")}
}

// Start spawns the child. It fails with ErrRunning if one is alive.
func (s *Supervisor) Start() (Status, error) {
	if s.cfg.Path == "" {
		return Status{}, ErrNoCommand
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return Status{}, ErrRunning
	}

	cmd := exec.Command(s.cfg.Path, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return Status{}, fmt.Errorf("launcher: start %s: %w", s.cfg.Path, err)
	}

	s.cmd = cmd
	s.runID = uuid.NewString()
	s.started = time.Now()
	s.done = make(chan struct{})
	go s.wait(cmd, s.done)

	s.logger.Info("process started", "path", s.cfg.Path, "pid", cmd.Process.Pid, "run_id", s.runID)
	return s.statusLocked(), nil
}

func (s *Supervisor) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	s.mu.Lock()
	exit := "exit status 0"
	if err != nil {
		exit = err.Error()
	}
	s.lastExit = exit
	if s.cmd == cmd {
		s.cmd = nil
		s.runID = ""
		s.started = time.Time{}
	}
	s.mu.Unlock()

	s.logger.Info("process exited", "pid", cmd.Process.Pid, "result", exit)
	close(done)
}

// Stop terminates the child's process group: SIGTERM, then SIGKILL after
// the stop timeout. It returns ErrNotRunning when there is nothing to stop.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()

	if cmd == nil {
		return ErrNotRunning
	}

	pid := cmd.Process.Pid
	if err := terminate(cmd); err != nil {
		s.logger.Debug("terminate failed", "pid", pid, "error", err)
	}

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		s.logger.Info("process stopped", "pid", pid)
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	s.logger.Warn("process ignored SIGTERM, killing", "pid", pid)
	if err := kill(cmd); err != nil {
		s.logger.Debug("kill failed", "pid", pid, "error", err)
	}
	<-done
	return nil
}

// Status reports the child state with resource usage when running.
func (s *Supervisor) Status(ctx context.Context) Status {
	s.mu.Lock()
	st := s.statusLocked()
	s.mu.Unlock()

	if !st.Running {
		return st
	}
	proc, err := process.NewProcessWithContext(ctx, int32(st.PID))
	if err != nil {
		return st
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		st.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		st.RSSBytes = mem.RSS
	}
	return st
}

func (s *Supervisor) statusLocked() Status {
	st := Status{LastExit: s.lastExit}
	if s.cmd == nil {
		return st
	}
	st.Running = true
	st.PID = s.cmd.Process.Pid
	st.RunID = s.runID
	st.StartedAt = s.started
	return st
}

// Running reports whether a child is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}
