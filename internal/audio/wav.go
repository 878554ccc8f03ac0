package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	wavHeaderSize   = 44
	fmtChunkSize    = 16
	pcmAudioFormat  = 1
	int16Scale      = 32767
	chunkHeaderSize = 8
	bytesPerSample  = BitDepth16 / 8

	// RIFF sizes are uint32 and the RIFF size field also counts the rest of
	// the header.
	maxWAVDataSize = math.MaxUint32 - (wavHeaderSize - chunkHeaderSize)
)

// EncodeWAV writes mono float samples in [-1, 1] as 16-bit PCM WAV.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	rateErr := validateSampleRate(sampleRate)
	if rateErr != nil {
		return nil, rateErr
	}

	dataSize, sizeErr := wavDataSize(len(samples))
	if sizeErr != nil {
		return nil, sizeErr
	}

	out := make([]byte, wavHeaderSize+int(dataSize))
	le := binary.LittleEndian

	// RIFF header
	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], wavHeaderSize-chunkHeaderSize+dataSize)
	copy(out[8:12], "WAVE")

	// fmt chunk
	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], fmtChunkSize)
	le.PutUint16(out[20:22], pcmAudioFormat)
	le.PutUint16(out[22:24], MonoChannels)
	le.PutUint32(out[24:28], uint32(sampleRate))
	le.PutUint32(out[28:32], uint32(sampleRate*MonoChannels*bytesPerSample))
	le.PutUint16(out[32:34], MonoChannels*bytesPerSample)
	le.PutUint16(out[34:36], BitDepth16)

	// data chunk
	copy(out[36:40], "data")
	le.PutUint32(out[40:44], dataSize)

	pcm := out[wavHeaderSize:]
	for index, sample := range samples {
		le.PutUint16(pcm[index*bytesPerSample:], uint16(toInt16(sample)))
	}

	return out, nil
}

func wavDataSize(sampleCount int) (uint32, error) {
	size := uint64(sampleCount) * bytesPerSample
	if sampleCount < 0 || size > maxWAVDataSize {
		return 0, fmt.Errorf("%w: %d samples do not fit in a wav file", ErrAudioTooLarge, sampleCount)
	}

	return uint32(size), nil
}

// DecodeWAV reads 16-bit PCM WAV data. Multi-channel input is averaged down
// to mono.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		channels   int
		sampleRate int
		bitDepth   int
		haveFormat bool
	)

	offset := 12
	for offset+chunkHeaderSize <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderSize

		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < fmtChunkSize {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}

			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != pcmAudioFormat {
				return nil, 0, fmt.Errorf("%w: audio format %d is not PCM", ErrInvalidWAV, audioFormat)
			}

			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, 0, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}

			samples, err := decodePCM16(data[body:body+chunkSize], channels, bitDepth)
			if err != nil {
				return nil, 0, err
			}

			return samples, sampleRate, nil
		}

		// chunks are word aligned
		offset = body + chunkSize + chunkSize%2
	}

	return nil, 0, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}

func decodePCM16(pcm []byte, channels, bitDepth int) ([]float32, error) {
	if bitDepth != BitDepth16 {
		return nil, fmt.Errorf("%w: bit depth %d is not supported", ErrInvalidWAV, bitDepth)
	}

	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalidWAV, channels)
	}

	frameSize := channels * 2
	frames := len(pcm) / frameSize
	samples := make([]float32, frames)

	for frame := range frames {
		var sum float32

		for channel := range channels {
			start := frame*frameSize + channel*2
			value := int16(binary.LittleEndian.Uint16(pcm[start : start+2]))
			sum += float32(value) / int16Scale
		}

		samples[frame] = sum / float32(channels)
	}

	return samples, nil
}

func toInt16(sample float32) int16 {
	clamped := math.Max(-1, math.Min(1, float64(sample)))

	return int16(math.Round(clamped * int16Scale))
}
