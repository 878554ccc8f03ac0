package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn the archive needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Archive implements core.ArtifactArchive. Each artifact is stored under
// "<itemID>/<name>" and an AudioChunkCreatedEvent is published when a
// subject is configured.
type Archive struct {
	store     core.ObjectStore
	publisher Publisher
	subject   string
}

var _ Publisher = (*nats.Conn)(nil)

// NewArchive creates an Archive. publisher may be nil, and so may subject;
// then nothing is announced.
func NewArchive(store core.ObjectStore, publisher Publisher, subject string) *Archive {
	return &Archive{
		store:     store,
		publisher: publisher,
		subject:   subject,
	}
}

// Archive stores data and returns its key.
func (a *Archive) Archive(ctx context.Context, itemID, name string, data []byte) (string, error) {
	key := ObjectKey(itemID, name)

	err := a.store.Upload(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("failed to archive artifact: %w", err)
	}

	if a.publisher == nil || a.subject == "" {
		return key, nil
	}

	event := events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: itemID,
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		AudioKey:   key,
		PageNumber: 1,
		TotalPages: 1,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return key, fmt.Errorf("failed to marshal audio created event: %w", err)
	}

	err = a.publisher.Publish(a.subject, payload)
	if err != nil {
		return key, fmt.Errorf("failed to publish audio created event on %s: %w", a.subject, err)
	}

	return key, nil
}

// ObjectKey returns the object name used for an item's artifact.
func ObjectKey(itemID, name string) string {
	return itemID + "/" + name
}
