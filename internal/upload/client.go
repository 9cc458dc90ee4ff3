package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ringvault/ringvault/internal/models"
)

// Response is the upload endpoint's reply.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Client sends data to the RingVault server over HTTP.
type Client struct {
	serverURL  string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the RingVault server.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// Ping checks the server's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("checking health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, body)
	}
	return nil
}

// SendPayload POSTs one batch to the server's upload endpoint.
// Retries up to 3 times with exponential backoff on network errors and 5xx
// responses; a 4xx is returned immediately.
func (c *Client) SendPayload(ctx context.Context, payload models.UploadPayload) (*Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(1<<uint(attempt-1))):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/qring/upload", bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("creating upload request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "ringvaultctl")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var out Response
		_ = json.Unmarshal(body, &out)

		switch {
		case resp.StatusCode == http.StatusOK:
			return &out, nil
		case resp.StatusCode < http.StatusInternalServerError:
			return &out, fmt.Errorf("upload rejected (status %d): %s", resp.StatusCode, errorText(out, body))
		}
		lastErr = fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, errorText(out, body))
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func errorText(r Response, body []byte) string {
	if r.Error != "" {
		return r.Error
	}
	return string(body)
}
