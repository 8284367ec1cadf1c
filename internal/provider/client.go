// Package provider is the HTTP client for the external HDR-merge service.
// The service accepts a batch of bracketed assets and reports progress and
// completion through the webhook callback.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type MergeAsset struct {
	AssetID   string `json:"asset_id"`
	SourceURL string `json:"source_url"`
}

type MergeRequest struct {
	Assets      []MergeAsset `json:"assets"`
	CallbackURL string       `json:"callback_url,omitempty"`
	HDRMerge    bool         `json:"hdr_merge"`
}

type MergeResponse struct {
	Data struct {
		JobID string `json:"job_id"`
	} `json:"data"`
}

type JobStatusResponse struct {
	Status  string `json:"status"` // "queued", "running", "completed", "failed"
	Stage   string `json:"stage,omitempty"`
	Percent int    `json:"percent"`
	Error   string `json:"error,omitempty"`
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitMerge submits a merge job and returns the provider's job id.
func (c *Client) SubmitMerge(ctx context.Context, req MergeRequest) (string, error) {
	url := strings.TrimSuffix(c.baseURL, "/") + "/merges/"

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("failed to submit merge: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result MergeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	if result.Data.JobID == "" {
		return "", fmt.Errorf("job_id is empty in response, body: %s", string(body))
	}

	return result.Data.JobID, nil
}

// GetJobStatus polls a job directly, used when callbacks are suspected lost.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	url := strings.TrimSuffix(c.baseURL, "/") + "/merges/" + jobID

	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get job status: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result JobStatusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return &result, nil
}

// RetryWithBackoff executes a function with exponential backoff retry logic
func (c *Client) RetryWithBackoff(fn func() error, maxRetries int) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if i < len(backoffs) {
			time.Sleep(backoffs[i])
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
