// Package httpapi_test tests the HTTP routes.
package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/audio"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/httpapi"
	"github.com/book-expert/speech-publisher/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockQueue = errors.New("mock queue failure")

type staticModel bool

func (m staticModel) Loaded() bool { return bool(m) }

type mockProcessor struct {
	outcome pipeline.Outcome
	items   []core.WorkItem
}

func (m *mockProcessor) Process(_ context.Context, item core.WorkItem) pipeline.Outcome {
	m.items = append(m.items, item)

	return m.outcome
}

type mockQueue struct {
	item *core.WorkItem
	err  error
}

func (m *mockQueue) FetchQueuedItem(context.Context) (*core.WorkItem, error) {
	return m.item, m.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, processor httpapi.Processor, loaded bool, queue core.QueueSource) http.Handler {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "httpapi-test.log")
	require.NoError(t, err)

	return httpapi.NewHandler(processor, staticModel(loaded), queue, audio.FormatWAV, testLogger).Router()
}

func serve(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	return recorder
}

func TestHealth(t *testing.T) {
	t.Parallel()

	for _, loaded := range []bool{true, false} {
		recorder := serve(newRouter(t, &mockProcessor{}, loaded, nil), http.MethodGet, "/", "")

		require.Equal(t, http.StatusOK, recorder.Code)

		var health httpapi.HealthResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &health))
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, loaded, health.ModelLoaded)
	}
}

func TestSpeech_ModelNotLoaded(t *testing.T) {
	t.Parallel()

	processor := &mockProcessor{}
	recorder := serve(newRouter(t, processor, false, nil), http.MethodPost, "/speech", `{"input":"x"}`)

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Model not loaded yet")
	assert.Empty(t, processor.items)
}

func TestSpeech_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		outcome      pipeline.Outcome
		expectedCode int
		expectedBody string
	}{
		{
			name:         "success streams audio",
			outcome:      pipeline.Outcome{Kind: pipeline.Success, Audio: []byte("RIFFdata")},
			expectedCode: http.StatusOK,
			expectedBody: "RIFFdata",
		},
		{
			name:         "validation failure",
			outcome:      pipeline.Outcome{Kind: pipeline.ValidationFailure, Reason: "validation failed: title cannot be empty"},
			expectedCode: http.StatusBadRequest,
			expectedBody: "title cannot be empty",
		},
		{
			name:         "synthesis failure",
			outcome:      pipeline.Outcome{Kind: pipeline.SynthesisFailure, Reason: "model down"},
			expectedCode: http.StatusInternalServerError,
			expectedBody: "Failed to process text: model down",
		},
		{
			name:         "storage failure",
			outcome:      pipeline.Outcome{Kind: pipeline.StorageFailure, Reason: "disk full"},
			expectedCode: http.StatusInternalServerError,
			expectedBody: "disk full",
		},
		{
			name:         "upload failure",
			outcome:      pipeline.Outcome{Kind: pipeline.UploadFailure, Reason: "quota exceeded"},
			expectedCode: http.StatusBadGateway,
			expectedBody: "quota exceeded",
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			processor := &mockProcessor{outcome: testCase.outcome}
			router := newRouter(t, processor, true, nil)

			recorder := serve(router, http.MethodPost, "/speech",
				`{"input":"Hello.","showId":"s","title":"T","exaggeration":0.8}`)

			assert.Equal(t, testCase.expectedCode, recorder.Code)
			assert.Contains(t, recorder.Body.String(), testCase.expectedBody)

			require.Len(t, processor.items, 1)
			assert.Equal(t, "Hello.", processor.items[0].Content)
			assert.InDelta(t, 0.8, processor.items[0].Exaggeration, 1e-9)
			assert.Zero(t, processor.items[0].MinP)
		})
	}
}

func TestSpeech_SuccessContentType(t *testing.T) {
	t.Parallel()

	processor := &mockProcessor{outcome: pipeline.Outcome{Kind: pipeline.Success, Audio: []byte("RIFF")}}
	recorder := serve(newRouter(t, processor, true, nil), http.MethodPost, "/speech", `{"content":"a","showId":"s","title":"t"}`)

	assert.Equal(t, "audio/wav", recorder.Header().Get("Content-Type"))
}

func TestSpeech_MalformedBody(t *testing.T) {
	t.Parallel()

	processor := &mockProcessor{}
	recorder := serve(newRouter(t, processor, true, nil), http.MethodPost, "/speech", `{"input":`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Empty(t, processor.items)
}

func TestQueuedArticle(t *testing.T) {
	t.Parallel()

	t.Run("item", func(t *testing.T) {
		t.Parallel()

		queue := &mockQueue{item: &core.WorkItem{ID: "a1", Content: "c", ShowID: "s", Title: "t"}}
		recorder := serve(newRouter(t, &mockProcessor{}, true, queue), http.MethodPost, "/getQueuedArticle", "")

		require.Equal(t, http.StatusOK, recorder.Code)

		var response map[string]map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, "a1", response["data"]["id"])
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		recorder := serve(newRouter(t, &mockProcessor{}, true, &mockQueue{}), http.MethodPost, "/getQueuedArticle", "")

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{"data": null}`, recorder.Body.String())
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()

		queue := &mockQueue{err: errMockQueue}
		recorder := serve(newRouter(t, &mockProcessor{}, true, queue), http.MethodPost, "/getQueuedArticle", "")

		assert.Equal(t, http.StatusBadGateway, recorder.Code)
	})

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()

		recorder := serve(newRouter(t, &mockProcessor{}, true, nil), http.MethodPost, "/getQueuedArticle", "")

		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	})
}
