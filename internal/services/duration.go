package services

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always decodes to 16-bit little-endian stereo.
const mp3BytesPerFrame = 4

// MeasureMP3Duration decodes data and returns its playing time in seconds.
func MeasureMP3Duration(data []byte) (float64, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to open mp3: %w", err)
	}
	if dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("mp3 reports sample rate %d", dec.SampleRate())
	}

	n := dec.Length()
	if n <= 0 {
		n, err = io.Copy(io.Discard, dec)
		if err != nil {
			return 0, fmt.Errorf("failed to decode mp3: %w", err)
		}
	}
	if n <= 0 {
		return 0, fmt.Errorf("mp3 decoded to no samples")
	}
	return float64(n/mp3BytesPerFrame) / float64(dec.SampleRate()), nil
}

// estimateMP3Duration guesses playing time from size for a constant bitrate.
func estimateMP3Duration(byteLen int, kbps int) float64 {
	if kbps <= 0 {
		kbps = 128
	}
	return float64(byteLen) / float64(kbps*1000/8)
}

// clipDuration prefers a decoded measurement and falls back to the bitrate
// estimate.
func clipDuration(audio []byte, kbps int) (float64, bool) {
	if d, err := MeasureMP3Duration(audio); err == nil && d > 0 {
		return d, true
	}
	return estimateMP3Duration(len(audio), kbps), false
}
