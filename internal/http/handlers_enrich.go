package http

import (
	"github.com/gofiber/fiber/v2"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/llm"
)

// completedTranscript fetches the job's transcript text, or writes
// the appropriate error response and returns ok=false.
func completedTranscript(c *fiber.Ctx) (jobs.Snapshot, string, bool) {
	store := c.Locals("store").(*jobs.Store)

	snap, err := store.Get(c.Params("id"))
	if err != nil {
		_ = jobNotFound(c)
		return jobs.Snapshot{}, "", false
	}

	if snap.Status != jobs.StatusCompleted || snap.Result == nil || snap.Result.Text == "" {
		_ = c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_NOT_COMPLETED",
			Error:   "no transcript available yet",
		})
		return jobs.Snapshot{}, "", false
	}

	return snap, snap.Result.Text, true
}

// enrichClient resolves the LLM client: the injected one when the
// server was built with it, otherwise from config with an optional
// ?provider override.
func enrichClient(c *fiber.Ctx) (llm.Client, bool) {
	if v := c.Locals("llm"); v != nil {
		if client, ok := v.(llm.Client); ok {
			return client, true
		}
	}

	cfg := c.Locals("config").(*config.Config)
	client, _, _, err := llm.NewClientFromConfig(cfg, c.Query("provider"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "LLM_NOT_CONFIGURED",
			Error:   err.Error(),
		})
		return nil, false
	}
	return client, true
}

// summarizeHandler produces an LLM summary of a completed transcript.
func summarizeHandler(c *fiber.Ctx) error {
	snap, transcript, ok := completedTranscript(c)
	if !ok {
		return nil
	}

	client, ok := enrichClient(c)
	if !ok {
		return nil
	}

	summary, err := client.Summarize(c.Context(), transcript)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Success: false,
			Code:    "LLM_FAILED",
			Error:   err.Error(),
		})
	}

	return c.JSON(SummaryResponse{
		Success: true,
		JobID:   snap.JobID,
		Summary: summary,
	})
}

// minutesHandler extracts structured meeting minutes from a completed
// transcript.
func minutesHandler(c *fiber.Ctx) error {
	snap, transcript, ok := completedTranscript(c)
	if !ok {
		return nil
	}

	client, ok := enrichClient(c)
	if !ok {
		return nil
	}

	minutes, err := client.ExtractMinutes(c.Context(), transcript)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Success: false,
			Code:    "LLM_FAILED",
			Error:   err.Error(),
		})
	}

	return c.JSON(MinutesResponse{
		Success: true,
		JobID:   snap.JobID,
		Minutes: minutes,
	})
}
