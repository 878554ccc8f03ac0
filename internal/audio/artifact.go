package audio

import (
	"fmt"
	"time"
)

// Artifact is the stitched result of one work item: mono samples at a fixed
// sample rate.
type Artifact struct {
	Samples    []float32
	SampleRate int
}

// Stitch appends the per-chunk segments in order. No gaps are inserted.
func Stitch(segments [][]float32, sampleRate int) (Artifact, error) {
	rateErr := validateSampleRate(sampleRate)
	if rateErr != nil {
		return Artifact{}, rateErr
	}

	if len(segments) == 0 {
		return Artifact{}, ErrNoSegments
	}

	total := 0
	for _, segment := range segments {
		total += len(segment)
	}

	samples := make([]float32, 0, total)
	for _, segment := range segments {
		samples = append(samples, segment...)
	}

	return Artifact{Samples: samples, SampleRate: sampleRate}, nil
}

// Duration returns the playback length of the artifact.
func (a Artifact) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}

	return time.Duration(len(a.Samples)) * time.Second / time.Duration(a.SampleRate)
}

// Encode serializes the artifact in the requested container.
func Encode(artifact Artifact, format Format) ([]byte, error) {
	switch format {
	case FormatWAV:
		return EncodeWAV(artifact.Samples, artifact.SampleRate)
	case FormatMP3:
		return EncodeMP3(artifact.Samples, artifact.SampleRate)
	default:
		return nil, fmt.Errorf(errFmtUnsupportedFormat, ErrUnsupportedFormat, format)
	}
}
