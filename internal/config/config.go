// Package config provides the configuration structure for speech-publisher.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/core"
)

// Environment fallbacks for the Acast credentials.
const (
	envAcastAPIKey = "ACAST_API_KEY"
	envAcastShowID = "ACAST_SHOW_ID"
)

// Model backends.
const (
	BackendHTTP    = "http"
	BackendCommand = "command"
)

// Defaults applied by ApplyDefaults.
const (
	defaultHTTPAddr        = ":8081"
	defaultOutputDir       = "output"
	defaultFallbackDir     = "."
	defaultAudioFormat     = "mp3"
	defaultMaxChunkSize    = 300
	defaultModelTimeout    = 300
	defaultModelWorkers    = 2
	defaultSampleRate      = 24000
	defaultTrackerTimeout  = 15
	defaultAcastTimeout    = 120
	defaultAcastBaseURL    = "https://open.acast.com/rest"
	defaultWarmupSeconds   = 10
	defaultIdleSeconds     = 300
	defaultRequestTimeout  = 900
	defaultAudioBucketName = "SPEECH_ARTIFACTS"
)

// Validation errors.
var (
	ErrInvalidChunkSize   = errors.New("service.max_chunk_size must be positive")
	ErrUnknownBackend     = errors.New("model.backend must be \"http\" or \"command\"")
	ErrMissingServiceURL  = errors.New("model.service_url is required for the http backend")
	ErrMissingBinaryPath  = errors.New("model.binary_path is required for the command backend")
	ErrInvalidSampleRate  = errors.New("model.sample_rate must be positive")
	ErrMissingTrackerURL  = errors.New("tracker.base_url is required when the poller is enabled")
	ErrMissingSpeechTopic = errors.New("nats.speech_subject is required when nats.url is set")
)

// ServiceConfig holds the HTTP surface and the pipeline settings.
type ServiceConfig struct {
	HTTPAddr        string  `toml:"http_addr"`
	OutputDir       string  `toml:"output_dir"`
	FallbackDir     string  `toml:"fallback_dir"`
	AudioFormat     string  `toml:"audio_format"`
	MaxChunkSize    int     `toml:"max_chunk_size"`
	AudioPromptPath string  `toml:"audio_prompt_path"`
	Exaggeration    float64 `toml:"exaggeration"`
	MinP            float64 `toml:"min_p"`
}

// ModelConfig selects and configures the synthesis backend.
type ModelConfig struct {
	Backend        string `toml:"backend"`
	ServiceURL     string `toml:"service_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Workers        int    `toml:"workers"`
	SampleRate     int    `toml:"sample_rate"`
	BinaryPath     string `toml:"binary_path"`
	ModelPath      string `toml:"model_path"`
}

// TrackerConfig holds the status-tracking and queue API settings.
type TrackerConfig struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// AcastConfig holds the podcast-hosting API settings.
type AcastConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	DefaultShowID  string `toml:"default_show_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	AssetsDir      string `toml:"assets_dir"`
}

// PollerConfig holds the queue poller cadence.
type PollerConfig struct {
	Enabled       bool `toml:"enabled"`
	WarmupSeconds int  `toml:"warmup_seconds"`
	IdleSeconds   int  `toml:"idle_seconds"`
}

// NATSConfig holds the optional NATS settings. An empty URL disables NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	SpeechSubject          string `toml:"speech_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	AudioCreatedSubject    string `toml:"audio_created_subject"`
	RequestTimeoutSeconds  int    `toml:"request_timeout_seconds"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Model   ModelConfig   `toml:"model"`
	Tracker TrackerConfig `toml:"tracker"`
	Acast   AcastConfig   `toml:"acast"`
	Poller  PollerConfig  `toml:"poller"`
	NATS    NATSConfig    `toml:"nats"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load loads, completes and validates the configuration.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	validationErr := cfg.Validate()
	if validationErr != nil {
		return nil, validationErr
	}

	return &cfg, nil
}

// ApplyDefaults fills unset values, including the Acast credentials from the
// environment.
func (c *Config) ApplyDefaults() {
	setString(&c.Service.HTTPAddr, defaultHTTPAddr)
	setString(&c.Service.OutputDir, defaultOutputDir)
	setString(&c.Service.FallbackDir, defaultFallbackDir)
	setString(&c.Service.AudioFormat, defaultAudioFormat)
	setInt(&c.Service.MaxChunkSize, defaultMaxChunkSize)
	setFloat(&c.Service.Exaggeration, core.DefaultExaggeration)
	setFloat(&c.Service.MinP, core.DefaultMinP)

	setString(&c.Model.Backend, BackendHTTP)
	setInt(&c.Model.TimeoutSeconds, defaultModelTimeout)
	setInt(&c.Model.Workers, defaultModelWorkers)
	setInt(&c.Model.SampleRate, defaultSampleRate)

	setInt(&c.Tracker.TimeoutSeconds, defaultTrackerTimeout)

	setString(&c.Acast.BaseURL, defaultAcastBaseURL)
	setString(&c.Acast.APIKey, os.Getenv(envAcastAPIKey))
	setString(&c.Acast.DefaultShowID, os.Getenv(envAcastShowID))
	setInt(&c.Acast.TimeoutSeconds, defaultAcastTimeout)

	setInt(&c.Poller.WarmupSeconds, defaultWarmupSeconds)
	setInt(&c.Poller.IdleSeconds, defaultIdleSeconds)

	setString(&c.NATS.AudioObjectStoreBucket, defaultAudioBucketName)
	setInt(&c.NATS.RequestTimeoutSeconds, defaultRequestTimeout)

	setString(&c.Paths.BaseLogsDir, os.TempDir())
}

// Validate rejects settings the service cannot start with. The Acast API key
// is checked by the uploader itself.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.MaxChunkSize <= 0 {
		errs = append(errs, ErrInvalidChunkSize)
	}

	switch strings.ToLower(c.Model.Backend) {
	case BackendHTTP:
		if c.Model.ServiceURL == "" {
			errs = append(errs, ErrMissingServiceURL)
		}
	case BackendCommand:
		if c.Model.BinaryPath == "" {
			errs = append(errs, ErrMissingBinaryPath)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: got %q", ErrUnknownBackend, c.Model.Backend))
	}

	if c.Model.SampleRate <= 0 {
		errs = append(errs, ErrInvalidSampleRate)
	}

	if c.Poller.Enabled && c.Tracker.BaseURL == "" {
		errs = append(errs, ErrMissingTrackerURL)
	}

	if c.NATS.URL != "" && c.NATS.SpeechSubject == "" {
		errs = append(errs, ErrMissingSpeechTopic)
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", core.ErrConfiguration, errors.Join(errs...))
}

// ModelTimeout returns the per-request timeout for the model server.
func (c *Config) ModelTimeout() time.Duration {
	return seconds(c.Model.TimeoutSeconds)
}

// TrackerTimeout returns the timeout for status and queue calls.
func (c *Config) TrackerTimeout() time.Duration {
	return seconds(c.Tracker.TimeoutSeconds)
}

// AcastTimeout returns the timeout for one upload.
func (c *Config) AcastTimeout() time.Duration {
	return seconds(c.Acast.TimeoutSeconds)
}

// PollerWarmup returns the delay before the first poll.
func (c *Config) PollerWarmup() time.Duration {
	return seconds(c.Poller.WarmupSeconds)
}

// PollerIdle returns the delay between polls when nothing was processed.
func (c *Config) PollerIdle() time.Duration {
	return seconds(c.Poller.IdleSeconds)
}

// NATSRequestTimeout bounds one pipeline run triggered over NATS.
func (c *Config) NATSRequestTimeout() time.Duration {
	return seconds(c.NATS.RequestTimeoutSeconds)
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func setString(target *string, fallback string) {
	if strings.TrimSpace(*target) == "" {
		*target = fallback
	}
}

func setInt(target *int, fallback int) {
	if *target == 0 {
		*target = fallback
	}
}

func setFloat(target *float64, fallback float64) {
	if *target == 0 {
		*target = fallback
	}
}
