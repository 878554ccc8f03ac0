// Package httpapi serves the synchronous HTTP surface: health, direct speech
// requests and the queue proxy.
package httpapi

import (
	"context"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/audio"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/pipeline"
	"github.com/gin-gonic/gin"
)

const healthMessage = "Speech publisher API running"

// Processor runs one work item. *pipeline.Pipeline implements it.
type Processor interface {
	Process(ctx context.Context, item core.WorkItem) pipeline.Outcome
}

// ModelState reports whether the speech model can serve requests.
type ModelState interface {
	Loaded() bool
}

// HealthResponse is returned by GET /.
type HealthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ModelLoaded bool   `json:"model_loaded"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// QueueResponse mirrors the queue API's envelope.
type QueueResponse struct {
	Data *core.WorkItem `json:"data"`
}

// Handler holds the route dependencies. Queue may be nil, then the proxy
// route answers 503.
type Handler struct {
	processor Processor
	model     ModelState
	queue     core.QueueSource
	format    audio.Format
	log       *logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(
	processor Processor,
	model ModelState,
	queue core.QueueSource,
	format audio.Format,
	log *logger.Logger,
) *Handler {
	return &Handler{
		processor: processor,
		model:     model,
		queue:     queue,
		format:    format,
		log:       log,
	}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", h.Health)
	router.POST("/speech", h.Speech)
	router.POST("/getQueuedArticle", h.QueuedArticle)

	return router
}

// Health reports liveness and whether the model is loaded.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Message:     healthMessage,
		ModelLoaded: h.model.Loaded(),
	})
}

// Speech runs the pipeline for one request and streams the encoded audio
// back. Validation failures are 400, synthesis and storage failures 500 and
// upload failures 502.
func (h *Handler) Speech(c *gin.Context) {
	if !h.model.Loaded() {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Detail: "Model not loaded yet"})

		return
	}

	var item core.WorkItem

	bindErr := c.ShouldBindJSON(&item)
	if bindErr != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "Invalid request body: " + bindErr.Error()})

		return
	}

	outcome := h.processor.Process(c.Request.Context(), item)

	switch outcome.Kind {
	case pipeline.Success:
		c.Data(http.StatusOK, h.format.ContentType(), outcome.Audio)
	case pipeline.ValidationFailure:
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: outcome.Reason})
	case pipeline.UploadFailure:
		c.JSON(http.StatusBadGateway, ErrorResponse{Detail: "Failed to upload episode: " + outcome.Reason})
	case pipeline.SynthesisFailure, pipeline.StorageFailure:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "Failed to process text: " + outcome.Reason})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "Failed to process text: " + outcome.Reason})
	}
}

// QueuedArticle proxies one fetch from the remote queue.
func (h *Handler) QueuedArticle(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Detail: "Queue is not configured"})

		return
	}

	item, err := h.queue.FetchQueuedItem(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to fetch queued article: %v", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Detail: "Failed to fetch queued article: " + err.Error()})

		return
	}

	c.JSON(http.StatusOK, QueueResponse{Data: item})
}
