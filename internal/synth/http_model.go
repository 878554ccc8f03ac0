package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/audio"
	"github.com/book-expert/speech-publisher/internal/core"
)

const (
	errFmtHealthCheckFailed = "model service health check failed: %w"
	errFmtChunkFailed       = "chunk %d failed: %w"
	logFmtChunkFailed       = "Failed to synthesize chunk %d/%d: %v"
	logFmtChunkDone         = "Synthesized chunk %d/%d"
)

// ErrNoChunks is returned when Generate is called without input.
var ErrNoChunks = errors.New("no chunks to synthesize")

// HTTPModel renders chunks through an HTTPClient with a bounded worker pool.
// Results are written into index-addressed slots, so output order always
// matches input order.
type HTTPModel struct {
	client     *HTTPClient
	workers    int
	sampleRate int
	log        *logger.Logger
}

// NewHTTPModel creates a model backed by a model server.
func NewHTTPModel(client *HTTPClient, workers, sampleRate int, log *logger.Logger) *HTTPModel {
	if workers <= 0 {
		workers = 1
	}

	return &HTTPModel{
		client:     client,
		workers:    workers,
		sampleRate: sampleRate,
		log:        log,
	}
}

// Load checks that the model server is reachable.
func (m *HTTPModel) Load(ctx context.Context) error {
	healthErr := m.client.HealthCheck(ctx)
	if healthErr != nil {
		return fmt.Errorf(errFmtHealthCheckFailed, healthErr)
	}

	return nil
}

// Close is a no-op; HTTP clients hold no model state.
func (m *HTTPModel) Close() error {
	return nil
}

// SampleRate returns the rate every returned buffer is in.
func (m *HTTPModel) SampleRate() int {
	return m.sampleRate
}

// Generate renders every chunk. The first failure cancels the chunks still in
// flight and is returned.
func (m *HTTPModel) Generate(ctx context.Context, chunks []string, params core.SynthesisParams) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		waitGroup sync.WaitGroup
		errOnce   sync.Once
		firstErr  error
	)

	results := make([][]float32, len(chunks))
	workerPool := make(chan struct{}, m.workers)

	for chunkIndex, chunk := range chunks {
		waitGroup.Add(1)

		go func(index int, text string) {
			defer waitGroup.Done()

			workerPool <- struct{}{}

			defer func() { <-workerPool }()

			if ctx.Err() != nil {
				return
			}

			samples, err := m.renderChunk(ctx, text, params)
			if err != nil {
				m.log.Error(logFmtChunkFailed, index+1, len(chunks), err)
				errOnce.Do(func() {
					firstErr = fmt.Errorf(errFmtChunkFailed, index+1, err)

					cancel()
				})

				return
			}

			results[index] = samples

			m.log.Info(logFmtChunkDone, index+1, len(chunks))
		}(chunkIndex, chunk)
	}

	waitGroup.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("synthesis interrupted: %w", ctx.Err())
	}

	return results, nil
}

func (m *HTTPModel) renderChunk(ctx context.Context, text string, params core.SynthesisParams) ([]float32, error) {
	wavData, err := m.client.GenerateSpeech(ctx, SpeechRequest{
		Text:           text,
		SpeakerRefPath: params.PromptPath,
		Exaggeration:   params.Exaggeration,
		MinP:           params.MinP,
	})
	if err != nil {
		return nil, err
	}

	return decodeAtRate(wavData, m.sampleRate)
}

// decodeAtRate decodes WAV bytes and checks them against the expected rate.
func decodeAtRate(wavData []byte, expectedRate int) ([]float32, error) {
	samples, sampleRate, err := audio.DecodeWAV(wavData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode model audio: %w", err)
	}

	if sampleRate != expectedRate {
		return nil, fmt.Errorf("%w: got %d Hz, expected %d Hz", audio.ErrSampleRateMismatch, sampleRate, expectedRate)
	}

	return samples, nil
}
