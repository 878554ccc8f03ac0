// Package tracker is the HTTP client for the internal status-tracking and
// queue API.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/speech-publisher/internal/core"
)

// API endpoints and paths.
const (
	apiUpdateStatus   = "/updateStatus"
	apiQueuedArticle  = "/getQueuedArticle"
	apiUploadedRecord = "/addUploadedEpisole" // spelled as the remote API expects
)

// HTTP headers.
const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"
	maxErrorBodyBytes   = 4096
)

const errFmtNonOKStatus = "tracker returned %s: %s"

// Client calls the tracking API with a bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
}

// QueuedResponse is the envelope returned by the queue endpoint. A nil Data
// means the queue is empty.
type QueuedResponse struct {
	Data *core.WorkItem `json:"data"`
}

// NewClient creates a tracker client. The timeout bounds every call.
func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiToken:   apiToken,
	}
}

// UpdateStatus sends one status update.
func (c *Client) UpdateStatus(ctx context.Context, update core.StatusUpdate) error {
	err := c.post(ctx, apiUpdateStatus, update, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStatusReport, err)
	}

	return nil
}

// AddUploadedEpisode records a published episode.
func (c *Client) AddUploadedEpisode(ctx context.Context, episode core.Episode) error {
	err := c.post(ctx, apiUploadedRecord, episode, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStatusReport, err)
	}

	return nil
}

// FetchQueuedItem pulls one queued item. It returns nil, nil when the queue is
// empty or the item has no content.
func (c *Client) FetchQueuedItem(ctx context.Context) (*core.WorkItem, error) {
	var response QueuedResponse

	err := c.post(ctx, apiQueuedArticle, struct{}{}, &response)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch queued item: %w", err)
	}

	if response.Data == nil || response.Data.Content == "" {
		return nil, nil
	}

	return response.Data, nil
}

func (c *Client) post(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)

	if c.apiToken != "" {
		req.Header.Set(headerAuthorization, "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

		return fmt.Errorf(errFmtNonOKStatus, resp.Status, string(errorBody))
	}

	if target == nil {
		return nil
	}

	decodeErr := json.NewDecoder(resp.Body).Decode(target)
	if decodeErr != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, decodeErr)
	}

	return nil
}
