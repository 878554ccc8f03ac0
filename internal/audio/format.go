// Package audio provides the artifact type, stitching and encoding for
// generated speech.
package audio

import (
	"errors"
	"fmt"
	"strings"
)

// Encoding limits.
const (
	MaxSampleRate = 192000
	BitDepth16    = 16
	MonoChannels  = 1
)

// Error formats.
const (
	errFmtSampleRateRange   = "%w: sample rate must be between 1 and %d Hz, got %d"
	errFmtUnsupportedFormat = "%w: %q"
)

// Common errors for the audio package.
var (
	ErrInvalidSampleRate  = errors.New("invalid sample rate")
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
	ErrNoSegments         = errors.New("no audio segments to stitch")
	ErrInvalidWAV         = errors.New("invalid wav data")
	ErrAudioTooLarge      = errors.New("audio too large")
)

// Format represents an output container.
type Format string

// Known formats. FormatWAV and FormatMP3 can be encoded.
const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
)

// ParseFormat normalizes a configured format name and checks that it can be
// encoded.
func ParseFormat(name string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))

	switch format {
	case FormatWAV, FormatMP3:
		return format, nil
	default:
		return "", fmt.Errorf(errFmtUnsupportedFormat, ErrUnsupportedFormat, name)
	}
}

// Extension returns the file extension without the leading dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type used when streaming the format.
func (f Format) ContentType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatFLAC:
		return "audio/flac"
	case FormatOGG:
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// SupportsSampleRate reports whether audio at sampleRate can be encoded as f.
func (f Format) SupportsSampleRate(sampleRate int) bool {
	if validateSampleRate(sampleRate) != nil {
		return false
	}

	if f == FormatMP3 {
		return mpegSampleRates[sampleRate]
	}

	return true
}

func validateSampleRate(sampleRate int) error {
	if sampleRate <= 0 || sampleRate > MaxSampleRate {
		return fmt.Errorf(errFmtSampleRateRange, ErrInvalidSampleRate, MaxSampleRate, sampleRate)
	}

	return nil
}
