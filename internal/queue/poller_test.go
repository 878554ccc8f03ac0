// Package queue_test tests the queue poller state machine.
package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/pipeline"
	"github.com/book-expert/speech-publisher/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIdle = 5 * time.Minute

var errMockFetch = errors.New("mock fetch failure")

type mockSource struct {
	mu    sync.Mutex
	items []*core.WorkItem
	err   error
	calls atomic.Int32
}

func (m *mockSource) FetchQueuedItem(context.Context) (*core.WorkItem, error) {
	m.calls.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	if len(m.items) == 0 {
		return nil, nil
	}

	item := m.items[0]
	m.items = m.items[1:]

	return item, nil
}

type mockProcessor struct {
	kind      pipeline.Kind
	processed atomic.Int32
}

func (m *mockProcessor) Process(_ context.Context, item core.WorkItem) pipeline.Outcome {
	m.processed.Add(1)

	return pipeline.Outcome{Kind: m.kind, ItemID: item.ID}
}

type mockModelState struct {
	loaded atomic.Bool
}

func (m *mockModelState) Loaded() bool {
	return m.loaded.Load()
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "queue-test.log")
	require.NoError(t, err)

	return testLogger
}

func TestPoller_Step(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		source        *mockSource
		kind          pipeline.Kind
		expectedDelay time.Duration
		processed     int32
	}{
		{
			name:          "null data waits the full idle delay",
			source:        &mockSource{},
			expectedDelay: testIdle,
		},
		{
			name:          "fetch error waits",
			source:        &mockSource{err: errMockFetch},
			expectedDelay: testIdle,
		},
		{
			name:          "success fetches again immediately",
			source:        &mockSource{items: []*core.WorkItem{{ID: "a"}}},
			kind:          pipeline.Success,
			expectedDelay: 0,
			processed:     1,
		},
		{
			name:          "synthesis failure waits",
			source:        &mockSource{items: []*core.WorkItem{{ID: "a"}}},
			kind:          pipeline.SynthesisFailure,
			expectedDelay: testIdle,
			processed:     1,
		},
		{
			name:          "upload failure waits",
			source:        &mockSource{items: []*core.WorkItem{{ID: "a"}}},
			kind:          pipeline.UploadFailure,
			expectedDelay: testIdle,
			processed:     1,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			processor := &mockProcessor{kind: testCase.kind}
			poller := queue.NewPoller(testCase.source, processor, nil, time.Second, testIdle, newTestLogger(t))

			delay := poller.Step(context.Background())

			assert.Equal(t, testCase.expectedDelay, delay)
			assert.Equal(t, testCase.processed, processor.processed.Load())
		})
	}
}

func TestPoller_RunDrainsQueueThenIdles(t *testing.T) {
	t.Parallel()

	source := &mockSource{items: []*core.WorkItem{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	processor := &mockProcessor{kind: pipeline.Success}
	poller := queue.NewPoller(source, processor, nil, time.Millisecond, time.Hour, newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		poller.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return source.calls.Load() == 4
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(4), source.calls.Load())
	assert.Equal(t, int32(3), processor.processed.Load())

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestPoller_RunStopsDuringWarmup(t *testing.T) {
	t.Parallel()

	source := &mockSource{}
	poller := queue.NewPoller(source, &mockProcessor{}, nil, time.Hour, time.Hour, newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	poller.Run(ctx)

	assert.Zero(t, source.calls.Load())
}

func TestNewPoller_Defaults(t *testing.T) {
	t.Parallel()

	source := &mockSource{}
	poller := queue.NewPoller(source, &mockProcessor{}, nil, 0, 0, newTestLogger(t))

	assert.Equal(t, queue.DefaultIdle, poller.Step(context.Background()))
}

func TestPoller_StepSkipsFetchUntilModelLoaded(t *testing.T) {
	t.Parallel()

	source := &mockSource{items: []*core.WorkItem{{ID: "q-1", Content: "Hello."}}}
	processor := &mockProcessor{kind: pipeline.Success}
	model := &mockModelState{}

	poller := queue.NewPoller(source, processor, model, time.Second, testIdle, newTestLogger(t))

	assert.Equal(t, testIdle, poller.Step(context.Background()))
	assert.Equal(t, int32(0), source.calls.Load())
	assert.Equal(t, int32(0), processor.processed.Load())

	model.loaded.Store(true)

	assert.Equal(t, time.Duration(0), poller.Step(context.Background()))
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, int32(1), processor.processed.Load())
}
