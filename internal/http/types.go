package http

import (
	"scribe/internal/jobs"
	"scribe/internal/llm"
	"scribe/internal/session"
)

// ErrorResponse is the failure envelope shared by all endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// UploadResponse acknowledges an accepted submission.
type UploadResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
}

// ResultResponse carries the final transcript payload.
type ResultResponse struct {
	Success bool        `json:"success"`
	JobID   string      `json:"job_id"`
	Result  jobs.Result `json:"result"`
}

// SummaryResponse carries an LLM transcript summary.
type SummaryResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Summary string `json:"summary"`
}

// MinutesResponse carries structured meeting minutes.
type MinutesResponse struct {
	Success bool        `json:"success"`
	JobID   string      `json:"job_id"`
	Minutes llm.Minutes `json:"minutes"`
}

// SessionEndResponse reports what a session teardown reclaimed.
type SessionEndResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	session.EndResult
}

// UploadsSizeResponse reports the uploads directory footprint.
type UploadsSizeResponse struct {
	Success   bool   `json:"success"`
	Bytes     int64  `json:"bytes"`
	Formatted string `json:"formatted"`
}
