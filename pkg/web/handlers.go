package web

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-seek/pkg/command"
	"github.com/teslashibe/go-seek/pkg/hub"
)

// CommandRequest is the body of POST /api/command. Either Text (parsed
// with the voice grammar) or Action must be set.
type CommandRequest struct {
	Text     string `json:"text"`
	Action   string `json:"action"`
	Argument string `json:"argument"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	var (
		cmd command.Command
		err error
	)
	if strings.TrimSpace(req.Text) != "" {
		cmd, err = command.Parse(req.Text)
	} else {
		cmd, err = command.New(req.Action, req.Argument)
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.commands.TryPush(cmd); err != nil {
		if errors.Is(err, command.ErrFull) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Info("command accepted", "action", cmd.Action, "argument", cmd.Argument, "source", "http")
	return c.Status(fiber.StatusAccepted).JSON(cmd)
}

func (s *Server) handleStatusWS(conn *websocket.Conn) {
	hub.NewClient(s.statuses, conn).Run()
}
