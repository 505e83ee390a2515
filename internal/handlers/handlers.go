// Package handlers exposes the HTTP surface around the chat core: the
// websocket endpoint, file upload, push subscription, and a presence
// listing for diagnostics.
package handlers

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"huddle/internal/chat"
	"huddle/internal/push"
)

// Websocket attaches a new connection to the hub and runs its pumps.
// ReadPump unregisters the client when the connection drops.
func Websocket(hub *chat.Hub, sendBuffer int) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := chat.NewClient(conn, sendBuffer)
		hub.Register <- client
		go client.WritePump()
		client.ReadPump(hub)
	}
}

// Upload stores a multipart file under uploadDir and returns its relative
// URL. The chat core treats uploaded-file URLs as opaque message text.
func Upload(log *slog.Logger, uploadDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		file, err := c.FormFile("file")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("No file uploaded.")
		}
		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			log.Error("creating upload dir failed", "dir", uploadDir, "error", err)
			return c.SendStatus(fiber.StatusInternalServerError)
		}

		name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], filepath.Ext(file.Filename))
		if err := c.SaveFile(file, filepath.Join(uploadDir, name)); err != nil {
			log.Error("saving upload failed", "file", name, "error", err)
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString("/uploads/" + name)
	}
}

// Subscribe stores the caller's web-push subscription under the username
// given as a query parameter.
func Subscribe(log *slog.Logger, registry *push.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username := c.Query("username")
		if username == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username required"})
		}

		var sub webpush.Subscription
		if err := c.BodyParser(&sub); err != nil {
			log.Error("parsing subscription failed", "user", username, "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subscription"})
		}
		registry.Subscribe(username, &sub)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{})
	}
}

// Online returns the current presence snapshot.
func Online(presence *chat.Presence) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(presence.Snapshot())
	}
}
