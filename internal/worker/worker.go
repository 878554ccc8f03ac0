// Package worker exposes the pipeline as a NATS request/reply service.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/pipeline"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultHandleTimeout bounds one pipeline run triggered by a message.
const DefaultHandleTimeout = 15 * time.Minute

// ErrEmptySubject is returned when the worker has nothing to subscribe to.
var ErrEmptySubject = errors.New("speech subject cannot be empty")

// Processor runs one work item. *pipeline.Pipeline implements it.
type Processor interface {
	Process(ctx context.Context, item core.WorkItem) pipeline.Outcome
}

// Reply answers a speech request.
type Reply struct {
	Header       events.EventHeader `json:"header"`
	Status       core.Status        `json:"status"`
	ItemID       string             `json:"id,omitempty"`
	ArtifactPath string             `json:"artifactPath,omitempty"`
	EpisodeID    string             `json:"episodeId,omitempty"`
	Error        string             `json:"error,omitempty"`
}

type requestEnvelope struct {
	Header events.EventHeader `json:"header"`
}

// NatsWorker listens for work items on a subject, processes each one and
// replies with a Reply when the message has a reply subject.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	processor      Processor
	timeout        time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a worker. A non-positive timeout selects
// DefaultHandleTimeout.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	processor Processor,
	timeout time.Duration,
	log *logger.Logger,
) (*NatsWorker, error) {
	if subject == "" {
		return nil, ErrEmptySubject
	}

	if timeout <= 0 {
		timeout = DefaultHandleTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		processor:      processor,
		timeout:        timeout,
		log:            log,
	}, nil
}

// Run subscribes and blocks until ctx is cancelled, then drains.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.System("Listening for speech requests on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	header, item, err := parseRequest(msg.Data)
	if err != nil {
		w.log.Error("Failed to parse speech request: %v", err)
		w.respond(msg, Reply{
			Header: replyHeader(header, ""),
			Status: core.StatusError,
			Error:  err.Error(),
		})

		return
	}

	outcome := w.processor.Process(ctx, item)

	reply := Reply{
		Header:       replyHeader(header, outcome.ItemID),
		Status:       core.StatusFinished,
		ItemID:       outcome.ItemID,
		ArtifactPath: outcome.ArtifactPath,
		EpisodeID:    outcome.EpisodeID,
	}

	if outcome.Kind != pipeline.Success {
		w.log.Error("Speech request %s ended with %s: %s", outcome.ItemID, outcome.Kind, outcome.Reason)

		reply.Error = outcome.Reason
		if !outcome.Generated() {
			reply.Status = core.StatusError
		}
	}

	w.respond(msg, reply)
}

func (w *NatsWorker) respond(msg *nats.Msg, reply Reply) {
	if msg.Reply == "" {
		return
	}

	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal reply: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply for workflow %s: %v", reply.Header.WorkflowID, err)
	}
}

func parseRequest(data []byte) (events.EventHeader, core.WorkItem, error) {
	var (
		envelope requestEnvelope
		item     core.WorkItem
	)

	err := json.Unmarshal(data, &envelope)
	if err != nil {
		return envelope.Header, item, fmt.Errorf("%w: failed to unmarshal request: %w", core.ErrValidation, err)
	}

	err = json.Unmarshal(data, &item)
	if err != nil {
		return envelope.Header, item, fmt.Errorf("%w: %w", core.ErrValidation, err)
	}

	return envelope.Header, item, nil
}

// replyHeader keeps the caller's workflow and tenant and stamps a new event.
func replyHeader(request events.EventHeader, itemID string) events.EventHeader {
	workflowID := request.WorkflowID
	if workflowID == "" {
		workflowID = itemID
	}

	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: workflowID,
		EventID:    uuid.NewString(),
		UserID:     request.UserID,
		TenantID:   request.TenantID,
	}
}
