// Package status turns pipeline events into best-effort status updates.
package status

import (
	"context"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/core"
)

// Sink is the remote side of the reporter.
type Sink interface {
	UpdateStatus(ctx context.Context, update core.StatusUpdate) error
	AddUploadedEpisode(ctx context.Context, episode core.Episode) error
}

// Reporter forwards updates to a Sink. Failures are logged and dropped; a
// status update never changes the outcome of the work it describes.
type Reporter struct {
	sink    Sink
	timeout time.Duration
	log     *logger.Logger
}

// NewReporter creates a Reporter. A nil sink turns it into a logger only.
func NewReporter(sink Sink, timeout time.Duration, log *logger.Logger) *Reporter {
	return &Reporter{
		sink:    sink,
		timeout: timeout,
		log:     log,
	}
}

// Report sends update and swallows any failure.
func (r *Reporter) Report(ctx context.Context, update core.StatusUpdate) {
	r.log.Info("Status %s for item %s", update.Status, update.ItemID)

	if r.sink == nil {
		return
	}

	ctx, cancel := r.bounded(ctx)
	defer cancel()

	err := r.sink.UpdateStatus(ctx, update)
	if err != nil {
		r.log.Warn("Discarding status update %s for item %s: %v", update.Status, update.ItemID, err)
	}
}

// RecordEpisode registers an uploaded episode and swallows any failure.
func (r *Reporter) RecordEpisode(ctx context.Context, episode core.Episode) {
	if r.sink == nil {
		return
	}

	ctx, cancel := r.bounded(ctx)
	defer cancel()

	err := r.sink.AddUploadedEpisode(ctx, episode)
	if err != nil {
		r.log.Warn("Discarding episode record %s: %v", episode.EpisodeID, err)
	}
}

func (r *Reporter) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, r.timeout)
}
