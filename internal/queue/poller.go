// Package queue runs the background loop that drains the remote work queue
// into the pipeline.
package queue

import (
	"context"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/pipeline"
)

// Default cadence.
const (
	DefaultWarmup = 10 * time.Second
	DefaultIdle   = 5 * time.Minute
)

// Processor runs one work item. *pipeline.Pipeline implements it.
type Processor interface {
	Process(ctx context.Context, item core.WorkItem) pipeline.Outcome
}

// ModelState reports whether the synthesis model can take work.
// *synth.Runtime implements it.
type ModelState interface {
	Loaded() bool
}

// Poller alternates between Fetching and Idle. After a successful item it
// fetches again immediately; an empty queue, a fetch error or a failed item
// puts it to sleep for the idle delay. Nothing is fetched while the model is
// not loaded.
type Poller struct {
	source    core.QueueSource
	processor Processor
	model     ModelState
	warmup    time.Duration
	idle      time.Duration
	log       *logger.Logger
}

// NewPoller creates a Poller. Non-positive durations select the defaults and a
// nil model is treated as always loaded.
func NewPoller(
	source core.QueueSource,
	processor Processor,
	model ModelState,
	warmup, idle time.Duration,
	log *logger.Logger,
) *Poller {
	if warmup <= 0 {
		warmup = DefaultWarmup
	}

	if idle <= 0 {
		idle = DefaultIdle
	}

	return &Poller{
		source:    source,
		processor: processor,
		model:     model,
		warmup:    warmup,
		idle:      idle,
		log:       log,
	}
}

// Step performs one Fetching pass and returns how long to stay Idle before
// the next one.
func (p *Poller) Step(ctx context.Context) time.Duration {
	if p.model != nil && !p.model.Loaded() {
		p.log.Warn("Model not loaded, skipping queue poll for %s", p.idle)

		return p.idle
	}

	item, err := p.source.FetchQueuedItem(ctx)
	if err != nil {
		p.log.Warn("Failed to fetch queued item: %v", err)

		return p.idle
	}

	if item == nil {
		p.log.Info("Queue is empty, next poll in %s", p.idle)

		return p.idle
	}

	p.log.Info("Fetched queued item %s (%q)", item.ID, item.Title)

	outcome := p.processor.Process(ctx, *item)
	if outcome.Kind != pipeline.Success {
		p.log.Error("Queued item %s ended with %s: %s", outcome.ItemID, outcome.Kind, outcome.Reason)

		return p.idle
	}

	p.log.Info("Queued item %s published as episode %s", outcome.ItemID, outcome.EpisodeID)

	return 0
}

// Run waits for the warm-up delay and then polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.log.System("Queue poller starting in %s", p.warmup)

	timer := time.NewTimer(p.warmup)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.System("Queue poller stopped: %v", ctx.Err())

			return
		case <-timer.C:
		}

		delay := p.Step(ctx)

		timer.Reset(delay)
	}
}
