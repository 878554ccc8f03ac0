// Package pipeline drives one work item through chunk, synthesize, stitch,
// persist, upload and status report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/artifact"
	"github.com/book-expert/speech-publisher/internal/audio"
	"github.com/book-expert/speech-publisher/internal/chunker"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/fileutil"
	"github.com/google/uuid"
)

const (
	summaryPrefix   = "Generated speech from text: "
	summarySuffix   = "..."
	summaryMaxRunes = 100
)

// ErrNoSpeakableText is returned when the content only holds comment lines or
// whitespace.
var ErrNoSpeakableText = errors.New("content has no speakable text")

// ErrEmptySynthesis is returned when the model produced no audio.
var ErrEmptySynthesis = errors.New("speech model returned no audio")

// Dependencies are the collaborators of a Pipeline. Archive is optional.
type Dependencies struct {
	Chunker     *chunker.Chunker
	Synthesizer core.Synthesizer
	Store       *artifact.Store
	Uploader    core.Uploader
	Reporter    core.StatusReporter
	Archive     core.ArtifactArchive
	Logger      *logger.Logger
}

// Options control how a Pipeline synthesizes and encodes. Zero synthesis
// parameters select core.DefaultExaggeration and core.DefaultMinP.
type Options struct {
	Format       audio.Format
	PromptPath   string
	Exaggeration float64
	MinP         float64
}

// Pipeline processes one work item at a time per call. Concurrent calls are
// allowed; they share only the synthesizer and the output directory.
type Pipeline struct {
	deps Dependencies
	opts Options
}

// New creates a Pipeline. Items that leave a synthesis parameter unset get
// the value from opts.
func New(deps Dependencies, opts Options) (*Pipeline, error) {
	if deps.Chunker == nil || deps.Synthesizer == nil || deps.Store == nil ||
		deps.Uploader == nil || deps.Reporter == nil || deps.Logger == nil {
		return nil, fmt.Errorf("%w: pipeline dependencies are incomplete", core.ErrConfiguration)
	}

	if opts.Exaggeration <= 0 {
		opts.Exaggeration = core.DefaultExaggeration
	}

	if opts.MinP <= 0 {
		opts.MinP = core.DefaultMinP
	}

	return &Pipeline{
		deps: deps,
		opts: opts,
	}, nil
}

// Process runs item to completion. It never retries; retry policy belongs to
// the caller.
func (p *Pipeline) Process(ctx context.Context, item core.WorkItem) Outcome {
	log := p.deps.Logger

	validationErr := item.Validate()
	if validationErr != nil {
		log.Warn("Rejected work item %q: %v", item.ID, validationErr)

		return failed(ValidationFailure, item.ID, validationErr)
	}

	chunks := p.deps.Chunker.Split(item.Content)
	if len(chunks) == 0 {
		err := fmt.Errorf("%w: %w", core.ErrValidation, ErrNoSpeakableText)
		log.Warn("Rejected work item %q: %v", item.ID, err)

		return failed(ValidationFailure, item.ID, err)
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	p.deps.Reporter.Report(ctx, core.StatusUpdate{Status: core.StatusProcessing, ItemID: item.ID})

	log.Info("Processing item %s (%q): %d chunks", item.ID, item.Title, len(chunks))

	start := time.Now()

	encoded, synthErr := p.synthesize(ctx, chunks, item)
	if synthErr != nil {
		log.Error("Synthesis failed for item %s: %v", item.ID, synthErr)
		p.reportError(ctx, item.ID, "", core.CodeSynthesisFailed, synthErr)

		return failed(SynthesisFailure, item.ID, synthErr)
	}

	fileName := fileutil.ArtifactFileName(item.Title, p.opts.Format.Extension())

	stored, storeErr := p.deps.Store.Write(fileName, encoded)
	if storeErr != nil {
		log.Error("Storage failed for item %s: %v", item.ID, storeErr)
		p.reportError(ctx, item.ID, fileName, core.CodeStorageFailed, storeErr)

		return failed(StorageFailure, item.ID, storeErr)
	}

	log.Info("Saved %s (%s) in %s", stored.Path, fileutil.FormatFileSize(int64(stored.Size)),
		fileutil.FormatDuration(time.Since(start)))

	p.archive(ctx, item.ID, fileName, encoded)

	outcome := Outcome{
		Kind:         Success,
		ItemID:       item.ID,
		ArtifactPath: stored.Path,
		Audio:        encoded,
	}

	episodeID, uploadErr := p.deps.Uploader.Upload(ctx, core.UploadRequest{
		ItemID:    item.ID,
		AudioPath: stored.Path,
		ShowID:    item.ShowID,
		Title:     item.Title,
		Subtitle:  item.Subtitle,
		Summary:   Summary(item.Content),
	})
	if uploadErr != nil {
		log.Error("Upload failed for item %s, artifact kept at %s: %v", item.ID, stored.Path, uploadErr)

		outcome.Kind = UploadFailure
		outcome.Reason = uploadReason(uploadErr)
		outcome.cause = uploadErr
	} else {
		outcome.EpisodeID = episodeID
	}

	uploaded := uploadErr == nil
	p.deps.Reporter.Report(ctx, core.StatusUpdate{
		Status:   core.StatusFinished,
		ItemID:   item.ID,
		FileName: filepath.Base(stored.Path),
		Uploaded: &uploaded,
	})

	return outcome
}

func (p *Pipeline) synthesize(ctx context.Context, chunks []string, item core.WorkItem) ([]byte, error) {
	params := core.SynthesisParams{
		PromptPath:   p.opts.PromptPath,
		Exaggeration: item.Exaggeration,
		MinP:         item.MinP,
	}

	if params.Exaggeration <= 0 {
		params.Exaggeration = p.opts.Exaggeration
	}

	if params.MinP <= 0 {
		params.MinP = p.opts.MinP
	}

	segments, err := p.deps.Synthesizer.Generate(ctx, chunks, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, ErrEmptySynthesis)
	}

	if len(segments) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d segments for %d chunks", core.ErrSynthesis, len(segments), len(chunks))
	}

	stitched, err := audio.Stitch(segments, p.deps.Synthesizer.SampleRate())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	encoded, err := audio.Encode(stitched, p.opts.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	p.deps.Logger.Info("Stitched %d segments into %s of audio", len(segments),
		fileutil.FormatDuration(stitched.Duration()))

	return encoded, nil
}

func (p *Pipeline) archive(ctx context.Context, itemID, fileName string, data []byte) {
	if p.deps.Archive == nil {
		return
	}

	key, err := p.deps.Archive.Archive(ctx, itemID, fileName, data)
	if err != nil {
		p.deps.Logger.Warn("Failed to archive %s for item %s: %v", fileName, itemID, err)

		return
	}

	p.deps.Logger.Info("Archived %s as %s", fileName, key)
}

func (p *Pipeline) reportError(ctx context.Context, itemID, fileName, code string, err error) {
	p.deps.Reporter.Report(ctx, core.StatusUpdate{
		Status:    core.StatusError,
		ItemID:    itemID,
		FileName:  fileName,
		ErrorCode: code,
		ErrorMsg:  err.Error(),
	})
}

// Summary derives the episode summary from the first 100 characters of the
// content.
func Summary(content string) string {
	if utf8.RuneCountInString(content) <= summaryMaxRunes {
		return summaryPrefix + content + summarySuffix
	}

	runes := []rune(content)

	return summaryPrefix + string(runes[:summaryMaxRunes]) + summarySuffix
}

// uploadReason prefers the remote message carried by the uploader's error.
func uploadReason(err error) string {
	var messenger interface{ RemoteMessage() string }
	if errors.As(err, &messenger) {
		return messenger.RemoteMessage()
	}

	return err.Error()
}

func failed(kind Kind, itemID string, err error) Outcome {
	return Outcome{
		Kind:   kind,
		Reason: err.Error(),
		ItemID: itemID,
		cause:  err,
	}
}
