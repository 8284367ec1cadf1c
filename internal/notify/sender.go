package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shootflow-backend/internal/models"
)

// HTTPSender posts dispatch requests to the messaging collaborator.
type HTTPSender struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPSender(baseURL, apiKey string) *HTTPSender {
	return &HTTPSender{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *HTTPSender) Send(ctx context.Context, req models.DispatchRequest) error {
	url := strings.TrimSuffix(s.baseURL, "/") + "/messages"

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("messaging API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
