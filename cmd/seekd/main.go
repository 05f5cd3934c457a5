// Command seekd is a small launcher daemon: it starts and stops the seek
// binary on request so a browser front end can control it.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/teslashibe/go-seek/internal/log"
	"github.com/teslashibe/go-seek/pkg/launcher"
)

func main() {
	addr := flag.String("addr", ":8000", "Listen address")
	bin := flag.String("seek", defaultSeekPath(), "Path to the seek binary")
	static := flag.String("static", "", "Directory with front-end files to serve at /")
	stopTimeout := flag.Duration("stop-timeout", launcher.DefaultStopTimeout, "Grace period before SIGKILL")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.Component("seekd")

	sup := launcher.New(launcher.Config{
		Path:        *bin,
		Args:        flag.Args(),
		StopTimeout: *stopTimeout,
	}, logger)

	app := newAPI(sup, *static, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("launcher listening", "addr", *addr, "seek", *bin)
		errCh <- app.Listen(*addr)
	}()

	select {
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	stopCtx, done := context.WithTimeout(context.Background(), *stopTimeout+time.Second)
	defer done()
	if err := sup.Stop(stopCtx); err == nil {
		logger.Info("stopped seek on shutdown")
	}
	if err := app.Shutdown(); err != nil {
		logger.Warn("shutdown failed", "error", err)
	}
}

// defaultSeekPath looks for seek next to this binary.
func defaultSeekPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "seek"
	}
	return filepath.Join(filepath.Dir(exe), "seek")
}
