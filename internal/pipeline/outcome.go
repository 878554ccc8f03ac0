package pipeline

import (
	"errors"

	"github.com/book-expert/speech-publisher/internal/core"
)

// Kind classifies how a pipeline run ended.
type Kind int

// Outcome kinds.
const (
	Success Kind = iota
	ValidationFailure
	SynthesisFailure
	StorageFailure
	UploadFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case ValidationFailure:
		return "validation failure"
	case SynthesisFailure:
		return "synthesis failure"
	case StorageFailure:
		return "storage failure"
	case UploadFailure:
		return "upload failure"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one run. ArtifactPath and Audio are set
// whenever the artifact was persisted, including after an upload failure.
type Outcome struct {
	Kind         Kind
	Reason       string
	ItemID       string
	ArtifactPath string
	EpisodeID    string
	Audio        []byte
	cause        error
}

// Generated reports whether audio was produced and persisted.
func (o Outcome) Generated() bool {
	return o.Kind == Success || o.Kind == UploadFailure
}

// Err maps the outcome back onto the core error taxonomy. It is nil on
// success.
func (o Outcome) Err() error {
	var sentinel error

	switch o.Kind {
	case Success:
		return nil
	case ValidationFailure:
		sentinel = core.ErrValidation
	case SynthesisFailure:
		sentinel = core.ErrSynthesis
	case StorageFailure:
		sentinel = core.ErrStorage
	case UploadFailure:
		sentinel = core.ErrUpload
	}

	if o.cause != nil && errors.Is(o.cause, sentinel) {
		return o.cause
	}

	if o.cause != nil {
		return errors.Join(sentinel, o.cause)
	}

	return errors.Join(sentinel, errors.New(o.Reason))
}
