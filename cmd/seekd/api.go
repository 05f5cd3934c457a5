package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-seek/pkg/launcher"
)

// supervisor is the subset of launcher.Supervisor the API drives.
type supervisor interface {
	Start() (launcher.Status, error)
	Stop(ctx context.Context) error
	Status(ctx context.Context) launcher.Status
}

var _ supervisor = (*launcher.Supervisor)(nil)

type startResponse struct {
	Status string `json:"status"`
	PID    int    `json:"pid"`
	RunID  string `json:"run_id"`
}

type stopResponse struct {
	Stopped bool `json:"stopped"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newAPI(sup supervisor, static string, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "seekd",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")

	api.Post("/start", func(c *fiber.Ctx) error {
		st, err := sup.Start()
		switch {
		case errors.Is(err, launcher.ErrRunning):
			return c.Status(fiber.StatusConflict).JSON(errorResponse{Error: err.Error()})
		case err != nil:
			logger.Error("start failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
		}
		return c.JSON(startResponse{Status: "started", PID: st.PID, RunID: st.RunID})
	})

	api.Post("/stop", func(c *fiber.Ctx) error {
		err := sup.Stop(c.UserContext())
		switch {
		case errors.Is(err, launcher.ErrNotRunning):
			return c.JSON(stopResponse{Stopped: false})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
		}
		return c.JSON(stopResponse{Stopped: true})
	})

	api.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(sup.Status(c.UserContext()))
	})

	if static != "" {
		app.Static("/", static)
	}
	return app
}
