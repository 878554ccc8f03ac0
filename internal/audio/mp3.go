package audio

import (
	"bytes"
	"fmt"

	"github.com/braheezy/shine-mp3/pkg/mp3"
)

// mpegSampleRates are the rates defined by MPEG-1, MPEG-2 and MPEG-2.5
// layer III.
var mpegSampleRates = map[int]bool{
	8000: true, 11025: true, 12000: true,
	16000: true, 22050: true, 24000: true,
	32000: true, 44100: true, 48000: true,
}

// EncodeMP3 writes mono float samples in [-1, 1] as a constant bitrate MP3
// stream.
func EncodeMP3(samples []float32, sampleRate int) ([]byte, error) {
	if !FormatMP3.SupportsSampleRate(sampleRate) {
		return nil, fmt.Errorf("%w: %d Hz is not an MPEG layer III rate", ErrInvalidSampleRate, sampleRate)
	}

	pcm := make([]int16, len(samples))
	for index, sample := range samples {
		pcm[index] = toInt16(sample)
	}

	var out bytes.Buffer

	encoder := mp3.NewEncoder(sampleRate, MonoChannels)

	err := encoder.Write(&out, pcm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mp3: %w", err)
	}

	return out.Bytes(), nil
}
