// Package web serves the status and command API, Prometheus metrics and
// the live status websocket.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-seek/pkg/command"
	"github.com/teslashibe/go-seek/pkg/guide"
	"github.com/teslashibe/go-seek/pkg/hub"
)

// CommandSink accepts commands without blocking.
type CommandSink interface {
	TryPush(cmd command.Command) error
}

// Options configures a Server. Status and Commands are required.
type Options struct {
	Addr     string
	Status   func() guide.Status
	Commands CommandSink
	Metrics  http.Handler // optional
	Logger   *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	status   func() guide.Status
	commands CommandSink
	statuses *hub.Hub
}

// NewServer builds the fiber app and routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:     opts.Addr,
		logger:   logger.With("component", "web"),
		status:   opts.Status,
		commands: opts.Commands,
		statuses: hub.New("status", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "seek",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/command", s.handleCommand)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// PublishStatus pushes a status snapshot to websocket clients.
func (s *Server) PublishStatus(st guide.Status) {
	if err := s.statuses.BroadcastJSON(st); err != nil {
		s.logger.Warn("status broadcast failed", "error", err)
	}
}

// Run serves until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	go s.statuses.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", s.addr)
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
