package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scribe/internal/config"
)

// Provider represents a logical LLM provider.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGoogle Provider = "google"
)

// ActionItem is a single task extracted from a transcript.
type ActionItem struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee,omitempty"`
	DueDate  string `json:"due_date,omitempty"`
}

// Minutes is the structured meeting-minutes view of a transcript.
type Minutes struct {
	Attendees   []string     `json:"attendees"`
	AgendaItems []string     `json:"agenda_items"`
	ActionItems []ActionItem `json:"action_items"`
	Decisions   []string     `json:"decisions"`
}

// Client is the enrichment abstraction used by the HTTP layer.
type Client interface {
	Summarize(ctx context.Context, transcript string) (string, error)
	ExtractMinutes(ctx context.Context, transcript string) (Minutes, error)
}

const summarizeSystem = "You summarize meeting and media transcripts. Respond with a concise markdown summary and no preamble."

const minutesSystem = "You are a JSON-only extractor of meeting minutes. Respond with a single JSON object with keys attendees (array of strings), agenda_items (array of strings), action_items (array of {task, assignee, due_date}), and decisions (array of strings). No extra text."

func summarizePrompt(transcript string) string {
	return "Summarize the following transcript. Cover the main topics in order, key numbers, and decisions.\n\nTranscript:\n" + transcript
}

func minutesPrompt(transcript string) string {
	return "Extract meeting minutes from the following transcript.\n\nTranscript:\n" + transcript
}

// parseMinutes attempts to parse a Minutes JSON object from model
// output, tolerating surrounding prose or markdown fences.
func parseMinutes(content string) (Minutes, error) {
	var m Minutes
	if err := json.Unmarshal([]byte(content), &m); err == nil {
		return m, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return Minutes{}, errors.New("no JSON object found in content")
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &m); err != nil {
		return Minutes{}, err
	}
	return m, nil
}

// NewClientFromConfig constructs a Client based on config and an
// optional per-request provider override.
func NewClientFromConfig(cfg *config.Config, providerOverride string) (Client, Provider, string, error) {
	providerName := cfg.LLM.DefaultProvider
	if providerOverride != "" {
		providerName = providerOverride
	}

	timeout := time.Duration(cfg.LLM.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	prov := Provider(providerName)

	switch prov {
	case ProviderOpenAI:
		openaiCfg := cfg.LLM.OpenAI
		if openaiCfg.APIKey == "" || openaiCfg.Model == "" {
			return nil, prov, openaiCfg.Model, errors.New("openai llm provider is not fully configured")
		}
		return &openAIClient{
			apiKey:  openaiCfg.APIKey,
			baseURL: openaiCfg.BaseURL,
			model:   openaiCfg.Model,
			http:    &http.Client{Timeout: timeout},
		}, prov, openaiCfg.Model, nil
	case ProviderGoogle:
		googleCfg := cfg.LLM.Google
		if googleCfg.APIKey == "" || googleCfg.Model == "" {
			return nil, prov, googleCfg.Model, errors.New("google llm provider is not fully configured")
		}
		return &googleClient{
			apiKey: googleCfg.APIKey,
			model:  googleCfg.Model,
			http:   &http.Client{Timeout: timeout},
		}, prov, googleCfg.Model, nil
	default:
		return nil, prov, "", fmt.Errorf("unsupported llm provider: %s", providerName)
	}
}

// openAIClient implements Client using OpenAI-compatible Chat Completions.
type openAIClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// googleClient implements Client using Google Gemini (Generative Language API).
type googleClient struct {
	apiKey string
	model  string
	http   *http.Client
}

// openAIChatRequest is a minimal representation of the Chat Completions API.
type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIChatMessage   `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

// googleGenerateContentRequest & response are minimal shapes for Gemini's generateContent.
type googleGenerateContentRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text,omitempty"`
}

type googleGenerateContentResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

func (c *openAIClient) chat(ctx context.Context, system, user string, jsonOnly bool) (string, error) {
	body := openAIChatRequest{
		Model: c.model,
		Messages: []openAIChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}
	if jsonOnly {
		body.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint = endpoint + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai chat completion failed with status %d", resp.StatusCode)
	}

	var parsed openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *openAIClient) Summarize(ctx context.Context, transcript string) (string, error) {
	content, err := c.chat(ctx, summarizeSystem, summarizePrompt(transcript), false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *openAIClient) ExtractMinutes(ctx context.Context, transcript string) (Minutes, error) {
	content, err := c.chat(ctx, minutesSystem, minutesPrompt(transcript), true)
	if err != nil {
		return Minutes{}, err
	}

	minutes, err := parseMinutes(content)
	if err != nil {
		return Minutes{}, fmt.Errorf("failed to parse JSON from LLM response: %w", err)
	}
	return minutes, nil
}

func (c *googleClient) generate(ctx context.Context, prompt string) (string, error) {
	body := googleGenerateContentRequest{
		Contents: []googleContent{
			{
				Parts: []googlePart{{Text: prompt}},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	base := "https://generativelanguage.googleapis.com/v1beta"
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", base, c.model, url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("google generateContent failed with status %d", resp.StatusCode)
	}

	var parsed googleGenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("google generateContent returned no candidates")
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (c *googleClient) Summarize(ctx context.Context, transcript string) (string, error) {
	content, err := c.generate(ctx, summarizeSystem+"\n\n"+summarizePrompt(transcript))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *googleClient) ExtractMinutes(ctx context.Context, transcript string) (Minutes, error) {
	content, err := c.generate(ctx, minutesSystem+"\n\n"+minutesPrompt(transcript))
	if err != nil {
		return Minutes{}, err
	}

	minutes, err := parseMinutes(content)
	if err != nil {
		return Minutes{}, fmt.Errorf("failed to parse JSON from LLM response: %w", err)
	}
	return minutes, nil
}
