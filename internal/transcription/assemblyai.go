package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAssemblyAIBaseURL is the public AssemblyAI API root.
const DefaultAssemblyAIBaseURL = "https://api.assemblyai.com"

// AssemblyAI talks to the AssemblyAI v2 REST API.
type AssemblyAI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAssemblyAI creates an AssemblyAI provider. An empty baseURL selects the
// public API; a nil client gets a 30 second timeout.
func NewAssemblyAI(apiKey, baseURL string, client *http.Client) *AssemblyAI {
	if baseURL == "" {
		baseURL = DefaultAssemblyAIBaseURL
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &AssemblyAI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (a *AssemblyAI) Name() string { return "assemblyai" }

func (a *AssemblyAI) Configured() bool { return a.apiKey != "" }

func (a *AssemblyAI) Ingest(ctx context.Context, data []byte) (string, error) {
	var out struct {
		UploadURL string `json:"upload_url"`
	}

	err := a.do(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", bytes.NewReader(data), &out)
	if err != nil {
		return "", err
	}

	if out.UploadURL == "" {
		return "", fmt.Errorf("assemblyai upload: response has no upload_url")
	}

	return out.UploadURL, nil
}

func (a *AssemblyAI) SubmitJob(ctx context.Context, audioURL, languageHint string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"audio_url":     audioURL,
		"language_code": languageHint,
	})
	if err != nil {
		return "", fmt.Errorf("encode transcript request: %w", err)
	}

	var out struct {
		ID string `json:"id"`
	}

	if err := a.do(ctx, http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(body), &out); err != nil {
		return "", err
	}

	if out.ID == "" {
		return "", fmt.Errorf("assemblyai submit: response has no id")
	}

	return out.ID, nil
}

func (a *AssemblyAI) PollJob(ctx context.Context, jobID string) (*Job, error) {
	var out struct {
		ID     string  `json:"id"`
		Status string  `json:"status"`
		Text   *string `json:"text"`
		Error  *string `json:"error"`
	}

	if err := a.do(ctx, http.MethodGet, "/v2/transcript/"+url.PathEscape(jobID), "", nil, &out); err != nil {
		return nil, err
	}

	job := &Job{ID: out.ID, Status: JobStatus(out.Status)}
	if out.Text != nil {
		job.Text = *out.Text
	}

	if out.Error != nil {
		job.Error = *out.Error
	}

	return job, nil
}

func (a *AssemblyAI) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build assemblyai request: %w", err)
	}

	req.Header.Set("Authorization", a.apiKey)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("assemblyai %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return fmt.Errorf("assemblyai %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode assemblyai response: %w", err)
	}

	return nil
}
