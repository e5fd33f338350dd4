package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"scribe/internal/jobs"
	"scribe/internal/llm"
)

type fakeLLM struct {
	summary string
	minutes llm.Minutes
	err     error
}

func (f *fakeLLM) Summarize(ctx context.Context, transcript string) (string, error) {
	return f.summary, f.err
}

func (f *fakeLLM) ExtractMinutes(ctx context.Context, transcript string) (llm.Minutes, error) {
	return f.minutes, f.err
}

func completedJob(t *testing.T, env *testEnv, text string) string {
	t.Helper()
	id, err := env.store.Create(jobs.Request{MediaFilename: "meeting.mp4"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	env.store.Complete(id, &jobs.Result{Text: text, MediaFilename: "meeting.mp4"}, "done")
	return id
}

func TestSummarizeRequiresCompletedJob(t *testing.T) {
	env := newTestEnv(t, &stubEngine{}, &fakeLLM{})

	id, err := env.store.Create(jobs.Request{MediaFilename: "meeting.mp4"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/summarize", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestSummarizeReturnsSummary(t *testing.T) {
	env := newTestEnv(t, &stubEngine{}, &fakeLLM{summary: "Short recap."})
	id := completedJob(t, env, "a long transcript")

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/summarize", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeJSON[SummaryResponse](t, resp)
	if body.Summary != "Short recap." || body.JobID != id {
		t.Fatalf("unexpected summary response: %+v", body)
	}
}

func TestSummarizeProviderFailure(t *testing.T) {
	env := newTestEnv(t, &stubEngine{}, &fakeLLM{err: errors.New("upstream timeout")})
	id := completedJob(t, env, "a long transcript")

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/summarize", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	body := decodeJSON[ErrorResponse](t, resp)
	if body.Code != "LLM_FAILED" {
		t.Fatalf("expected LLM_FAILED, got %s", body.Code)
	}
}

func TestMinutesReturnsStructuredPayload(t *testing.T) {
	env := newTestEnv(t, &stubEngine{}, &fakeLLM{minutes: llm.Minutes{
		Attendees:   []string{"Alice", "Bob"},
		AgendaItems: []string{"Roadmap"},
		ActionItems: []llm.ActionItem{{Task: "Ship it", Assignee: "Alice"}},
		Decisions:   []string{"Launch Friday"},
	}})
	id := completedJob(t, env, "a long transcript")

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/minutes", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeJSON[MinutesResponse](t, resp)
	if len(body.Minutes.Attendees) != 2 || len(body.Minutes.ActionItems) != 1 {
		t.Fatalf("unexpected minutes payload: %+v", body.Minutes)
	}
}

func TestMinutesWithoutConfiguredProvider(t *testing.T) {
	// No injected client and an empty LLM config section.
	env := newTestEnv(t, &stubEngine{}, nil)
	id := completedJob(t, env, "a long transcript")

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/minutes", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decodeJSON[ErrorResponse](t, resp)
	if body.Code != "LLM_NOT_CONFIGURED" {
		t.Fatalf("expected LLM_NOT_CONFIGURED, got %s", body.Code)
	}
}
