package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/session"
	"scribe/internal/uploads"
)

// uploadHandler accepts a media upload, stores the file under the
// caller's session, creates a queued job, and starts its worker.
func uploadHandler(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)
	store := c.Locals("store").(*jobs.Store)
	runner := c.Locals("runner").(*jobs.Runner)
	sessions := c.Locals("sessions").(*session.Manager)
	up := c.Locals("uploads").(*uploads.Store)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "Missing required field 'file'",
		})
	}

	includeTimestamps := true
	if v := c.FormValue("include_timestamps"); v != "" {
		includeTimestamps = v == "true" || v == "1" || v == "on"
	}
	language := strings.TrimSpace(c.FormValue("language"))

	if err := up.Validate(fileHeader.Filename, fileHeader.Size); err != nil {
		msg := err.Error()
		if errors.Is(err, uploads.ErrUnsupportedType) {
			msg = "Invalid file type. Allowed: " + up.AllowedList()
		}
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "INVALID_UPLOAD",
			Error:   msg,
		})
	}

	sessionID := getOrCreateSession(c, cfg, sessions)

	src, err := fileHeader.Open()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "UPLOAD_SAVE_FAILED",
			Error:   "Failed to read uploaded file",
		})
	}
	defer src.Close()

	path, err := up.Save(session.FilePrefix(sessionID), fileHeader.Filename, src)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "UPLOAD_SAVE_FAILED",
			Error:   "Failed to save uploaded file",
		})
	}
	sessions.AddFile(sessionID, path)

	jobID, err := store.Create(jobs.Request{
		SessionID:         sessionID,
		MediaPath:         path,
		MediaFilename:     fileHeader.Filename,
		Language:          language,
		IncludeTimestamps: includeTimestamps,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrStoreExhausted) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Success: false,
				Code:    "STORE_EXHAUSTED",
				Error:   "Too many jobs in flight, try again later",
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_CREATE_FAILED",
			Error:   err.Error(),
		})
	}
	sessions.AddJob(sessionID, jobID)

	// The job outlives this request, so the worker gets a fresh
	// context rather than the request-scoped one.
	runner.Start(context.Background(), jobID)

	if logger := requestLogger(c); logger != nil {
		logger.Info("job_submitted",
			"job_id", jobID,
			"session_id", session.FilePrefix(sessionID),
			"media", fileHeader.Filename,
			"size", fileHeader.Size,
		)
	}

	return c.Status(fiber.StatusAccepted).JSON(UploadResponse{
		Success: true,
		JobID:   jobID,
	})
}

// jobStatusHandler returns the current snapshot synchronously. This
// is the reconciliation path clients use after a dropped stream or
// instead of streaming.
func jobStatusHandler(c *fiber.Ctx) error {
	store := c.Locals("store").(*jobs.Store)

	snap, err := store.Get(c.Params("id"))
	if err != nil {
		return jobNotFound(c)
	}

	return c.JSON(snap)
}

// jobResultHandler returns the final transcript payload for a
// completed job. Timestamps follow the job's include_timestamps flag
// unless overridden by the ?timestamps query parameter.
func jobResultHandler(c *fiber.Ctx) error {
	store := c.Locals("store").(*jobs.Store)

	snap, err := store.Get(c.Params("id"))
	if err != nil {
		return jobNotFound(c)
	}

	if snap.Status != jobs.StatusCompleted || snap.Result == nil {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_NOT_COMPLETED",
			Error:   fmt.Sprintf("job is %s, result is only available once completed", snap.Status),
		})
	}

	result := *snap.Result
	withTimestamps := result.IncludeTimestamps
	if v := c.Query("timestamps"); v != "" {
		withTimestamps = v == "true" || v == "1"
	}
	result.IncludeTimestamps = withTimestamps
	if !withTimestamps {
		result.Timestamps = nil
	}

	return c.JSON(ResultResponse{
		Success: true,
		JobID:   snap.JobID,
		Result:  result,
	})
}

// jobDownloadHandler renders the transcript as a plain-text download,
// with a timestamped layout when the job asked for timestamps.
func jobDownloadHandler(c *fiber.Ctx) error {
	store := c.Locals("store").(*jobs.Store)

	snap, err := store.Get(c.Params("id"))
	if err != nil {
		return jobNotFound(c)
	}

	if snap.Status != jobs.StatusCompleted || snap.Result == nil {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_NOT_COMPLETED",
			Error:   "transcript is only available once the job has completed",
		})
	}

	result := snap.Result
	content := result.Text
	if result.IncludeTimestamps && len(result.Timestamps) > 0 {
		var b strings.Builder
		b.WriteString("TRANSCRIPTION WITH TIMESTAMPS\n")
		b.WriteString(strings.Repeat("=", 40))
		b.WriteString("\n\n")
		for _, seg := range result.Timestamps {
			fmt.Fprintf(&b, "[%s - %s]\n%s\n\n",
				formatClock(seg.StartTime), formatClock(seg.EndTime), seg.Text)
		}
		content = b.String()
	}

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="transcription.txt"`)
	return c.SendString(content)
}

func formatClock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func jobNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Success: false,
		Code:    "NOT_FOUND",
		Error:   "job not found",
	})
}

func requestLogger(c *fiber.Ctx) interface {
	Info(msg string, args ...any)
} {
	if v := c.Locals("logger"); v != nil {
		if lg, ok := v.(interface {
			Info(msg string, args ...any)
		}); ok {
			return lg
		}
	}
	return nil
}
