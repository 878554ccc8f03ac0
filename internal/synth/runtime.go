package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/fileutil"
)

// Errors returned by the Runtime.
var (
	// ErrModelNotLoaded is returned by Generate before Load succeeded or after
	// Shutdown.
	ErrModelNotLoaded = errors.New("model not loaded yet")
	// ErrRuntimeClosed is returned by Load after Shutdown.
	ErrRuntimeClosed = errors.New("model runtime is shut down")
)

// Model is a synthesis backend with an explicit lifecycle.
type Model interface {
	core.Synthesizer
	Load(ctx context.Context) error
	Close() error
}

// Runtime owns one Model for the process lifetime. A failed Load can be
// retried; once loaded it stays loaded until Shutdown, which happens once.
// It is safe for concurrent use; the backends serialize or pool requests
// themselves.
type Runtime struct {
	model     Model
	log       *logger.Logger
	loaded    atomic.Bool
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewRuntime wraps a model. Nothing is loaded until Load is called.
func NewRuntime(model Model, log *logger.Logger) *Runtime {
	return &Runtime{
		model: model,
		log:   log,
	}
}

// Load loads the model unless it is already loaded. Concurrent callers are
// serialized.
func (r *Runtime) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}

	if r.loaded.Load() {
		return nil
	}

	r.log.System("Loading speech model...")

	start := time.Now()

	err := r.model.Load(ctx)
	if err != nil {
		r.log.Error("Failed to load model: %v", err)

		return fmt.Errorf("failed to load model: %w", err)
	}

	r.loaded.Store(true)
	r.log.System("Model loaded successfully in %s.", fileutil.FormatDuration(time.Since(start)))

	return nil
}

// LoadWithRetry calls Load every interval until it succeeds, the runtime is
// shut down or ctx is cancelled.
func (r *Runtime) LoadWithRetry(ctx context.Context, interval time.Duration) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("model load abandoned: %w", ctx.Err())
		case <-timer.C:
		}

		err := r.Load(ctx)
		if err == nil || errors.Is(err, ErrRuntimeClosed) {
			return err
		}

		r.log.Warn("Retrying model load in %s", interval)
		timer.Reset(interval)
	}
}

// Shutdown releases the model. Later calls return the first result.
func (r *Runtime) Shutdown() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.closed = true

		wasLoaded := r.loaded.Swap(false)
		if !wasLoaded {
			return
		}

		err := r.model.Close()
		if err != nil {
			r.closeErr = fmt.Errorf("failed to shut down model: %w", err)
			r.log.Error("Error during model shutdown: %v", err)

			return
		}

		r.log.System("Model shutdown successfully.")
	})

	return r.closeErr
}

// Loaded reports whether Generate can be called.
func (r *Runtime) Loaded() bool {
	return r.loaded.Load()
}

// SampleRate returns the model's output rate.
func (r *Runtime) SampleRate() int {
	return r.model.SampleRate()
}

// Generate delegates to the model once it is loaded.
func (r *Runtime) Generate(ctx context.Context, chunks []string, params core.SynthesisParams) ([][]float32, error) {
	if !r.loaded.Load() {
		return nil, ErrModelNotLoaded
	}

	return r.model.Generate(ctx, chunks, params)
}
