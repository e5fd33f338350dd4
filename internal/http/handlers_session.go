package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"scribe/internal/config"
	"scribe/internal/metrics"
	"scribe/internal/session"
	"scribe/internal/uploads"
)

// sessionEndHandler tears down the caller's session: discards its
// jobs, deletes its uploaded files, and clears the cookie.
func sessionEndHandler(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)
	sessions := c.Locals("sessions").(*session.Manager)

	cookieName := cfg.Session.CookieName
	if cookieName == "" {
		cookieName = "scribe_session"
	}

	sessionID := c.Cookies(cookieName)
	if sessionID == "" {
		return c.JSON(SessionEndResponse{
			Success: true,
			Message: "No active session",
		})
	}

	result := sessions.End(sessionID)
	metrics.RecordSessionEnd(int64(result.FilesDeleted))

	c.ClearCookie(cookieName)

	return c.JSON(SessionEndResponse{
		Success:   true,
		Message:   "Session ended and files cleaned up",
		EndResult: result,
	})
}

// uploadsSizeHandler reports the current footprint of the uploads
// directory.
func uploadsSizeHandler(c *fiber.Ctx) error {
	up := c.Locals("uploads").(*uploads.Store)

	total, err := up.DirSize()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "UPLOADS_SIZE_FAILED",
			Error:   err.Error(),
		})
	}

	return c.JSON(UploadsSizeResponse{
		Success:   true,
		Bytes:     total,
		Formatted: uploads.FormatSize(total),
	})
}
