// Package worker_test tests the NATS request/reply trigger.
package worker_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/pipeline"
	"github.com/book-expert/speech-publisher/internal/worker"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSubject = "speech.requests"

type mockProcessor struct {
	mu      sync.Mutex
	outcome pipeline.Outcome
	items   []core.WorkItem
}

func (m *mockProcessor) Process(_ context.Context, item core.WorkItem) pipeline.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = append(m.items, item)

	return m.outcome
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func startWorker(t *testing.T, processor *mockProcessor) *nats.Conn {
	t.Helper()

	natsConnection := createTestNatsClient(t)

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	workerInstance, err := worker.NewNatsWorker(natsConnection, testSubject, processor, time.Minute, testLogger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan, "worker.Run should not error on graceful shutdown")
	})

	require.Eventually(t, func() bool {
		_, reqErr := natsConnection.Request(testSubject, []byte("not json"), 200*time.Millisecond)

		return reqErr == nil
	}, 5*time.Second, 20*time.Millisecond)

	return natsConnection
}

func request(t *testing.T, natsConnection *nats.Conn, payload any) worker.Reply {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	msg, err := natsConnection.Request(testSubject, data, 5*time.Second)
	require.NoError(t, err)

	var reply worker.Reply
	require.NoError(t, json.Unmarshal(msg.Data, &reply))

	return reply
}

func TestNewNatsWorker_EmptySubject(t *testing.T) {
	t.Parallel()

	_, err := worker.NewNatsWorker(nil, "", &mockProcessor{}, 0, nil)
	require.ErrorIs(t, err, worker.ErrEmptySubject)
}

func TestWorker_Success(t *testing.T) {
	t.Parallel()

	processor := &mockProcessor{outcome: pipeline.Outcome{
		Kind:         pipeline.Success,
		ItemID:       "item-1",
		ArtifactPath: "output/T.wav",
		EpisodeID:    "ep-1",
	}}
	natsConnection := startWorker(t, processor)

	workflowID := uuid.NewString()

	reply := request(t, natsConnection, map[string]any{
		"header":  events.EventHeader{Timestamp: time.Now(), WorkflowID: workflowID, EventID: uuid.NewString(), TenantID: "tenant"},
		"id":      "item-1",
		"input":   "Hello there.",
		"showId":  "show",
		"title":   "T",
		"min_p":   0.2,
		"unknown": true,
	})

	assert.Equal(t, core.StatusFinished, reply.Status)
	assert.Equal(t, "ep-1", reply.EpisodeID)
	assert.Equal(t, "output/T.wav", reply.ArtifactPath)
	assert.Empty(t, reply.Error)
	assert.Equal(t, workflowID, reply.Header.WorkflowID)
	assert.Equal(t, "tenant", reply.Header.TenantID)

	processor.mu.Lock()
	defer processor.mu.Unlock()

	last := processor.items[len(processor.items)-1]
	assert.Equal(t, "Hello there.", last.Content)
	assert.InDelta(t, 0.2, last.MinP, 1e-9)
	assert.Zero(t, last.Exaggeration)
}

func TestWorker_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		outcome        pipeline.Outcome
		expectedStatus core.Status
	}{
		{
			name:           "synthesis failure",
			outcome:        pipeline.Outcome{Kind: pipeline.SynthesisFailure, ItemID: "a", Reason: "model down"},
			expectedStatus: core.StatusError,
		},
		{
			name:           "upload failure still generated",
			outcome:        pipeline.Outcome{Kind: pipeline.UploadFailure, ItemID: "a", Reason: "quota exceeded"},
			expectedStatus: core.StatusFinished,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			natsConnection := startWorker(t, &mockProcessor{outcome: testCase.outcome})

			reply := request(t, natsConnection, map[string]any{"content": "x", "showId": "s", "title": "t"})

			assert.Equal(t, testCase.expectedStatus, reply.Status)
			assert.Equal(t, testCase.outcome.Reason, reply.Error)
			assert.Equal(t, "a", reply.Header.WorkflowID)
		})
	}
}

func TestWorker_MalformedRequest(t *testing.T) {
	t.Parallel()

	processor := &mockProcessor{}
	natsConnection := startWorker(t, processor)

	msg, err := natsConnection.Request(testSubject, []byte("{broken"), 5*time.Second)
	require.NoError(t, err)

	var reply worker.Reply
	require.NoError(t, json.Unmarshal(msg.Data, &reply))

	assert.Equal(t, core.StatusError, reply.Status)
	assert.NotEmpty(t, reply.Error)

	processor.mu.Lock()
	defer processor.mu.Unlock()

	assert.Empty(t, processor.items)
}
