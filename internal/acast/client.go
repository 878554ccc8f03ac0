// Package acast uploads finished audio to the Acast podcast-hosting API.
package acast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/core"
)

// DefaultBaseURL is the public Acast REST root.
const DefaultBaseURL = "https://open.acast.com/rest"

const (
	headerAPIKey      = "X-API-Key"
	headerUserAgent   = "User-Agent"
	headerContentType = "Content-Type"
	userAgent         = "speech-publisher/1.0"
	episodeStatus     = "draft"
	maxErrorBody      = 64 * 1024
)

// Form field names.
const (
	formFieldTitle    = "title"
	formFieldSubtitle = "subtitle"
	formFieldSummary  = "summary"
	formFieldStatus   = "status"
	formFieldAudio    = "audio"
)

// Error messages.
const (
	errFmtOpenFile        = "failed to open audio file: %w"
	errFmtCreateFormFile  = "failed to create form file %s: %w"
	errFmtCopyFileData    = "failed to copy file data: %w"
	errFmtWriteField      = "failed to write %s field: %w"
	errFmtCloseWriter     = "failed to close multipart writer: %w"
	errFmtCreateRequest   = "failed to create request: %w"
	errFmtDecodeEpisode   = "failed to decode episode response: %w"
	logFmtCloseFileFailed = "Failed to close file %s: %v"
)

// Static errors.
var (
	ErrMissingAPIKey    = errors.New("acast API key is not configured")
	ErrMissingShowID    = errors.New("showId must be provided or configured as a default")
	ErrMissingEpisodeID = errors.New("episode response has no id")
)

// auxiliaryAssets maps optional form fields to the files looked up in the
// assets directory. Missing files are skipped.
var auxiliaryAssets = []struct {
	field string
	file  string
}{
	{field: "cover", file: "cover.jpg"},
	{field: "privateIntro", file: "private-intro.mp3"},
	{field: "privateOutro", file: "private-outro.mp3"},
	{field: "publicIntro", file: "public-intro.mp3"},
	{field: "publicOutro", file: "public-outro.mp3"},
}

// Kind tells a transport failure from a rejection by the remote service.
type Kind int

// Upload failure kinds.
const (
	KindNetwork Kind = iota
	KindRejected
)

// UploadError is returned by Upload. It unwraps to core.ErrUpload.
type UploadError struct {
	Kind       Kind
	StatusCode int
	Message    string
	cause      error
}

func (e *UploadError) Error() string {
	if e.Kind == KindNetwork {
		return "network error creating episode: " + e.Message
	}

	return e.Message
}

// Unwrap exposes the upload sentinel and the transport cause, if any.
func (e *UploadError) Unwrap() []error {
	if e.cause == nil {
		return []error{core.ErrUpload}
	}

	return []error{core.ErrUpload, e.cause}
}

// RemoteMessage returns the message without the kind prefix.
func (e *UploadError) RemoteMessage() string {
	return e.Message
}

// Code returns the status error code matching the failure kind.
func (e *UploadError) Code() string {
	if e.Kind == KindNetwork {
		return core.CodeUploadNetworkError
	}

	return core.CodeUploadRejected
}

// Config holds the connection settings.
type Config struct {
	BaseURL       string
	APIKey        string
	DefaultShowID string
	AssetsDir     string
	Timeout       time.Duration
}

// Client creates draft episodes. It implements core.Uploader.
type Client struct {
	httpClient *http.Client
	cfg        Config
	reporter   core.StatusReporter
	log        *logger.Logger
}

type episodeResponse struct {
	ID       string `json:"id"`
	LegacyID string `json:"_id"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// NewClient validates the credential and creates a client. Status updates
// about the upload go to reporter.
func NewClient(cfg Config, reporter core.StatusReporter, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, ErrMissingAPIKey)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		reporter:   reporter,
		log:        log,
	}, nil
}

// Upload posts the audio file with its metadata and returns the episode id.
// On success the local file is deleted. On failure it is left in place and
// the returned error is an *UploadError.
func (c *Client) Upload(ctx context.Context, req core.UploadRequest) (string, error) {
	showID := req.ShowID
	if showID == "" {
		showID = c.cfg.DefaultShowID
	}

	if showID == "" {
		return "", fmt.Errorf("%w: %w", core.ErrConfiguration, ErrMissingShowID)
	}

	c.log.Info("Uploading %s to show %s", req.AudioPath, showID)

	episodeID, err := c.createEpisode(ctx, showID, req)
	if err != nil {
		c.reportFailure(ctx, req, err)

		return "", err
	}

	c.log.Info("Created episode %s for %s", episodeID, req.Title)

	removeErr := os.Remove(req.AudioPath)
	if removeErr != nil {
		c.log.Warn("Failed to delete audio file %s: %v", req.AudioPath, removeErr)
	}

	c.reporter.RecordEpisode(ctx, core.Episode{
		EpisodeID: episodeID,
		ItemID:    req.ItemID,
		ShowID:    showID,
		Title:     req.Title,
	})

	uploaded := true
	c.reporter.Report(ctx, core.StatusUpdate{
		Status:   core.StatusFinished,
		ItemID:   req.ItemID,
		FileName: filepath.Base(req.AudioPath),
		Uploaded: &uploaded,
	})

	return episodeID, nil
}

func (c *Client) reportFailure(ctx context.Context, req core.UploadRequest, err error) {
	code := core.CodeUploadRejected

	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		code = uploadErr.Code()
	}

	c.log.Error("Failed to upload %s: %v", req.AudioPath, err)

	uploaded := false
	c.reporter.Report(ctx, core.StatusUpdate{
		Status:    core.StatusError,
		ItemID:    req.ItemID,
		FileName:  filepath.Base(req.AudioPath),
		Uploaded:  &uploaded,
		ErrorCode: code,
		ErrorMsg:  err.Error(),
	})
}

func (c *Client) createEpisode(ctx context.Context, showID string, req core.UploadRequest) (string, error) {
	body, contentType, err := c.buildForm(req)
	if err != nil {
		return "", &UploadError{Kind: KindNetwork, Message: err.Error(), cause: err}
	}

	url := fmt.Sprintf("%s/shows/%s/episodes", c.cfg.BaseURL, showID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", &UploadError{Kind: KindNetwork, Message: err.Error(), cause: fmt.Errorf(errFmtCreateRequest, err)}
	}

	httpReq.Header.Set(headerAPIKey, c.cfg.APIKey)
	httpReq.Header.Set(headerUserAgent, userAgent)
	httpReq.Header.Set(headerContentType, contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &UploadError{Kind: KindNetwork, Message: err.Error(), cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", rejection(resp)
	}

	var episode episodeResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&episode)
	if decodeErr != nil {
		return "", &UploadError{
			Kind:       KindRejected,
			StatusCode: resp.StatusCode,
			Message:    fmt.Errorf(errFmtDecodeEpisode, decodeErr).Error(),
			cause:      decodeErr,
		}
	}

	episodeID := episode.ID
	if episodeID == "" {
		episodeID = episode.LegacyID
	}

	if episodeID == "" {
		return "", &UploadError{
			Kind:       KindRejected,
			StatusCode: resp.StatusCode,
			Message:    ErrMissingEpisodeID.Error(),
			cause:      ErrMissingEpisodeID,
		}
	}

	return episodeID, nil
}

// rejection prefers the JSON "message" field and falls back to the raw body,
// then to the status line.
func rejection(resp *http.Response) *UploadError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := fmt.Sprintf("failed to create episode: %s", resp.Status)

	var parsed errorResponse

	err := json.Unmarshal(body, &parsed)

	switch {
	case err == nil && parsed.Message != "":
		message = parsed.Message
	case len(bytes.TrimSpace(body)) > 0:
		message = string(body)
	}

	return &UploadError{Kind: KindRejected, StatusCode: resp.StatusCode, Message: message}
}

func (c *Client) buildForm(req core.UploadRequest) (io.Reader, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	fields := []struct {
		name  string
		value string
	}{
		{name: formFieldTitle, value: req.Title},
		{name: formFieldSubtitle, value: req.Subtitle},
		{name: formFieldSummary, value: req.Summary},
		{name: formFieldStatus, value: episodeStatus},
	}

	for _, field := range fields {
		if field.value == "" {
			continue
		}

		err := writer.WriteField(field.name, field.value)
		if err != nil {
			return nil, "", fmt.Errorf(errFmtWriteField, field.name, err)
		}
	}

	err := c.attachFile(writer, formFieldAudio, req.AudioPath)
	if err != nil {
		return nil, "", err
	}

	for _, asset := range auxiliaryAssets {
		assetPath := filepath.Join(c.cfg.AssetsDir, asset.file)

		_, statErr := os.Stat(assetPath)
		if statErr != nil {
			continue
		}

		err = c.attachFile(writer, asset.field, assetPath)
		if err != nil {
			return nil, "", err
		}
	}

	closeErr := writer.Close()
	if closeErr != nil {
		return nil, "", fmt.Errorf(errFmtCloseWriter, closeErr)
	}

	return &buf, writer.FormDataContentType(), nil
}

func (c *Client) attachFile(writer *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf(errFmtOpenFile, err)
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			c.log.Warn(logFmtCloseFileFailed, path, closeErr)
		}
	}()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf(errFmtCreateFormFile, field, err)
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return fmt.Errorf(errFmtCopyFileData, err)
	}

	return nil
}
