package guide

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/teslashibe/go-seek/pkg/command"
	"github.com/teslashibe/go-seek/pkg/vision"
)

// FrameSource yields captured frames. Next blocks until a frame is ready.
type FrameSource interface {
	Next() (vision.Frame, error)
}

// CommandSource is polled once per captured frame.
type CommandSource interface {
	Poll() (command.Command, bool)
}

// Renderer draws a frame. Returning true requests the loop to quit.
type Renderer interface {
	Render(frame vision.Frame, view View) (quit bool)
}

// NopRenderer draws nothing.
type NopRenderer struct{}

func (NopRenderer) Render(vision.Frame, View) bool { return false }

// Loop is the frame loop. It ticks once per captured frame, consumes at
// most one command per tick and fully processes every SkipFactor-th frame.
type Loop struct {
	cfg      Config
	source   FrameSource
	commands CommandSource
	ctrl     *Controller
	renderer Renderer
	logger   *slog.Logger

	captured int64
}

// NewLoop wires a loop. A nil renderer draws nothing.
func NewLoop(cfg Config, source FrameSource, commands CommandSource, ctrl *Controller, renderer Renderer, logger *slog.Logger) *Loop {
	if renderer == nil {
		renderer = NopRenderer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:      cfg.withDefaults(),
		source:   source,
		commands: commands,
		ctrl:     ctrl,
		renderer: renderer,
		logger:   logger.With("component", "guide.loop"),
	}
}

// Run ticks until a quit command, a renderer quit or ctx is done.
// It returns nil on quit and ctx.Err() on cancellation; camera read
// failures are retried.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("frame loop started", "skip_factor", l.cfg.SkipFactor)
	defer l.logger.Info("frame loop stopped", "captured", l.captured)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := l.source.Next()
		if err != nil {
			l.logger.Debug("frame read failed, retrying", "error", err)
			if !sleep(ctx, l.cfg.RetryDelay) {
				return ctx.Err()
			}
			continue
		}

		quit := l.tick(ctx, frame)
		if c, ok := frame.(io.Closer); ok {
			c.Close()
		}
		if quit {
			return nil
		}
	}
}

func (l *Loop) tick(ctx context.Context, frame vision.Frame) (quit bool) {
	if cmd, ok := l.commands.Poll(); ok {
		if !l.ctrl.Apply(cmd) {
			return true
		}
	}

	l.captured++
	var view View
	if l.captured%int64(l.cfg.SkipFactor) != 0 {
		view = l.ctrl.Skip()
	} else {
		view = l.ctrl.Process(ctx, frame)
	}
	return l.renderer.Render(frame, view)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
