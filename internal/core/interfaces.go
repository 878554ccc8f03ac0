// Package core defines the domain types and the interfaces that connect the
// speech-publisher components.
package core

import "context"

// ObjectStore is a write target for archived blobs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// SynthesisParams holds the per-request knobs passed to the speech model.
type SynthesisParams struct {
	PromptPath   string
	Exaggeration float64
	MinP         float64
}

// Synthesizer is the speech-generation capability. Generate returns one sample
// buffer per chunk, in the same order as chunks.
type Synthesizer interface {
	Generate(ctx context.Context, chunks []string, params SynthesisParams) ([][]float32, error)
	SampleRate() int
}

// UploadRequest carries a persisted artifact and the episode metadata.
type UploadRequest struct {
	ItemID    string
	AudioPath string
	ShowID    string
	Title     string
	Subtitle  string
	Summary   string
}

// Uploader publishes a finished artifact and returns the remote episode id.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (string, error)
}

// StatusReporter is the best-effort sink for status updates. Implementations
// never return errors to the caller.
type StatusReporter interface {
	Report(ctx context.Context, update StatusUpdate)
	RecordEpisode(ctx context.Context, episode Episode)
}

// QueueSource hands out queued work. A nil item with a nil error means the
// queue is empty.
type QueueSource interface {
	FetchQueuedItem(ctx context.Context) (*WorkItem, error)
}

// ArtifactArchive keeps a copy of an encoded artifact outside the local disk.
type ArtifactArchive interface {
	Archive(ctx context.Context, itemID, name string, data []byte) (string, error)
}
