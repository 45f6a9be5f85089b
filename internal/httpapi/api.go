// Package httpapi exposes read-only snapshots of the chat state over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/omochice/roomchat/internal/chat"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = chat.HistoryCapacity
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Users       int    `json:"users"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}

// ConnectionCounter reports how many line protocol connections are open.
type ConnectionCounter interface {
	ClientCount() int
}

// MessageResponse is one entry of a room history.
type MessageResponse struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// API serves the HTTP listing endpoints.
type API struct {
	app     *fiber.App
	server  *chat.Server
	clients ConnectionCounter
	logger  *slog.Logger
}

// New creates the API and registers its routes.
func New(server *chat.Server, clients ConnectionCounter, logger *slog.Logger) *API {
	a := &API{server: server, clients: clients, logger: logger}
	a.app = fiber.New(fiber.Config{
		AppName:               "roomchat",
		DisableStartupMessage: true,
		ErrorHandler:          a.errorHandler,
	})

	a.app.Use(recover.New())
	a.app.Use(cors.New())

	a.app.Get("/health", a.health)
	a.app.Get("/rooms", a.listRooms)
	a.app.Get("/rooms/:name/history", a.roomHistory)
	return a
}

// App returns the underlying fiber app.
func (a *API) App() *fiber.App {
	return a.app
}

// Start listens on addr until Shutdown is called.
func (a *API) Start(addr string) error {
	a.logger.Info("HTTP API started", "address", addr)
	return a.app.Listen(addr)
}

// Shutdown stops the listener and waits for in-flight requests.
func (a *API) Shutdown(ctx context.Context) error {
	return a.app.ShutdownWithContext(ctx)
}

func (a *API) health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:      "ok",
		Users:       a.server.UserCount(),
		Rooms:       len(a.server.RoomNames()),
		Connections: a.clients.ClientCount(),
	})
}

func (a *API) listRooms(c *fiber.Ctx) error {
	return c.JSON(a.server.RoomNames())
}

func (a *API) roomHistory(c *fiber.Ctx) error {
	room, ok := a.server.Room(c.Params("name"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "room not found")
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be positive")
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	history := room.History(limit)
	out := make([]MessageResponse, 0, len(history))
	for _, msg := range history {
		out = append(out, MessageResponse{Sender: msg.Sender, Content: msg.Content, Timestamp: msg.Timestamp.UTC()})
	}
	return c.JSON(out)
}

func (a *API) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		a.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{Error: message})
}
