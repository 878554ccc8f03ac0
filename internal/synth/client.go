// Package synth provides the speech-model backends and the Runtime that owns
// their load/shutdown lifecycle.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Error messages.
const (
	errFmtUnexpectedContentType = "unexpected content type: expected audio/wav, got %q"
	errFmtServiceErrorWithCode  = "model service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus    = "model service returned non-OK status: %s, body: %s"
)

// Static errors.
var (
	ErrTextEmpty          = errors.New("text cannot be empty")
	ErrReceivedEmptyAudio = errors.New("received empty audio data")
)

// HTTPClient talks to a standalone model server that renders one text chunk
// per request.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// SpeechRequest is the JSON payload of one generation request.
type SpeechRequest struct {
	// Text is the chunk to render. Must be non-empty.
	Text string `json:"text"`

	// SpeakerRefPath optionally points at a server-side voice prompt.
	SpeakerRefPath string `json:"speaker_ref_path,omitempty"`

	Exaggeration float64 `json:"exaggeration"`
	MinP         float64 `json:"min_p"`
}

// ErrorResponse is the structured error body returned by the model server.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client. The timeout applies to every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GenerateSpeech renders one chunk and returns the WAV bytes.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerateSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to model service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if !isWAVContentType(contentType) {
		return nil, fmt.Errorf(errFmtUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrReceivedEmptyAudio
	}

	return audioData, nil
}

// HealthCheck verifies that the model server is up.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// isWAVContentType accepts the registered and the legacy WAV media types, with
// or without parameters.
func isWAVContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	switch mediaType {
	case contentTypeWAV, "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return true
	default:
		return false
	}
}

// parseErrorResponse prefers the structured error body and falls back to the
// raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
