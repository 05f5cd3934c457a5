// Command seek is the hands-free object finder: it watches the camera,
// listens for voice commands and speaks directions to the requested item.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-seek/internal/config"
	"github.com/teslashibe/go-seek/internal/log"
	"github.com/teslashibe/go-seek/pkg/app"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	envFile := flag.String("env", ".env", "Path to a .env file (ignored if missing)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	headless := flag.Bool("headless", false, "Run without the overlay window")
	noVoice := flag.Bool("no-voice", false, "Disable voice commands (HTTP API only)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seek: %v\n", err)
		os.Exit(2)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if *headless {
		cfg.Headless = true
	}
	if *noVoice {
		cfg.Voice.Enabled = false
	}

	log.Setup(cfg.Log.Level, cfg.Log.JSON)
	logger := log.Component("seek")

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		logger.Error("initialization failed", "error", err)
		a.Shutdown()
		os.Exit(1)
	}

	err = a.Run(ctx)
	a.Shutdown()
	if err != nil {
		logger.Error("stopped with error", "error", err)
		os.Exit(1)
	}
}
