package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Defaults applied when neither the request nor the configuration sets the
// synthesis parameters.
const (
	DefaultExaggeration = 0.5
	DefaultMinP         = 0.1
)

// WorkItem is one unit of text plus destination metadata. A zero Exaggeration
// or MinP means the request left it unset.
type WorkItem struct {
	ID           string  `json:"id,omitempty"`
	Content      string  `json:"content"`
	ShowID       string  `json:"showId"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle,omitempty"`
	Exaggeration float64 `json:"exaggeration"`
	MinP         float64 `json:"min_p"`
}

// UnmarshalJSON accepts "input" as an alias for "content".
func (w *WorkItem) UnmarshalJSON(data []byte) error {
	type plain WorkItem

	decoded := struct {
		plain

		Input string `json:"input"`
	}{}

	err := json.Unmarshal(data, &decoded)
	if err != nil {
		return fmt.Errorf("failed to decode work item: %w", err)
	}

	if decoded.Content == "" {
		decoded.Content = decoded.Input
	}

	*w = WorkItem(decoded.plain)

	return nil
}

// Validate rejects items that cannot be processed.
func (w *WorkItem) Validate() error {
	if strings.TrimSpace(w.Content) == "" {
		return fmt.Errorf("%w: content cannot be empty", ErrValidation)
	}

	if strings.TrimSpace(w.ShowID) == "" {
		return fmt.Errorf("%w: showId cannot be empty", ErrValidation)
	}

	if strings.TrimSpace(w.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}

	return nil
}

// Status is a state understood by the status-tracking API.
type Status string

// Status values.
const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusFinished   Status = "finished"
	StatusError      Status = "error"
)

// Error codes attached to StatusError updates.
const (
	CodeSynthesisFailed    = "SYNTHESIS_FAILED"
	CodeStorageFailed      = "STORAGE_FAILED"
	CodeUploadNetworkError = "UPLOAD_NETWORK_ERROR"
	CodeUploadRejected     = "UPLOAD_REJECTED"
)

// StatusUpdate is the payload of one status report.
type StatusUpdate struct {
	Status    Status `json:"status"`
	ItemID    string `json:"id"`
	FileName  string `json:"fileName,omitempty"`
	Uploaded  *bool  `json:"uploaded,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	ErrorMsg  string `json:"errorMsg,omitempty"`
}

// Episode records a successful upload.
type Episode struct {
	EpisodeID string `json:"episodeId"`
	ItemID    string `json:"id,omitempty"`
	ShowID    string `json:"showId"`
	Title     string `json:"title"`
}
