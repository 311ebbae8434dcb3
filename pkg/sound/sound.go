package sound

import (
	"fmt"
	"os"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// Info describes a decoded mp3 stream.
type Info struct {
	SampleRate int
	Duration   time.Duration
}

// Probe decodes the mp3 headers of a local file.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't open file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't decode mp3: %w", err)
	}
	rate := decoder.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("sound: invalid sample rate %d", rate)
	}
	// Decoded stream is 16-bit stereo, 4 bytes per sample
	length := decoder.Length()
	if length < 0 {
		return nil, fmt.Errorf("sound: unknown length")
	}
	samples := length / 4
	return &Info{
		SampleRate: rate,
		Duration:   time.Duration(float64(samples) / float64(rate) * float64(time.Second)),
	}, nil
}

// Duration returns the playing time of a local mp3 file.
func Duration(path string) (time.Duration, error) {
	info, err := Probe(path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
