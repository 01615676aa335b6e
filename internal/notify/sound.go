// Package notify plays a short sound when a chat message arrives.
package notify

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"p2pchat/internal/domain"
)

const sampleRate = beep.SampleRate(44100)

// Sound plays one audio file per received message. Messages that arrive while
// the sound is still playing do not queue another playback.
type Sound struct {
	data   []byte
	format string
	logger *log.Logger

	playing         atomic.Bool
	speakerInitOnce sync.Once
	speakerInitErr  error
}

// NewSound loads a .wav or .mp3 file into memory and checks that it decodes.
func NewSound(path string, logger *log.Logger) (*Sound, error) {
	if logger == nil {
		logger = log.Default()
	}
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sound: %w", err)
	}
	streamer, _, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	streamer.Close()

	return &Sound{data: data, format: format, logger: logger}, nil
}

// Notify plays the sound in the background for message events.
func (s *Sound) Notify(ev domain.Event) {
	if ev.Kind != domain.EventMessageReceived {
		return
	}
	if !s.playing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.playing.Store(false)
		if err := s.Play(); err != nil {
			s.logger.Printf("[notify] %v", err)
		}
	}()
}

// Play blocks until the sound has finished.
func (s *Sound) Play() error {
	streamer, streamFormat, err := decode(s.data, s.format)
	if err != nil {
		return err
	}
	defer streamer.Close()

	s.speakerInitOnce.Do(func() {
		s.speakerInitErr = speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	})
	if s.speakerInitErr != nil {
		return fmt.Errorf("failed to initialise speaker: %w", s.speakerInitErr)
	}

	resampled := beep.Resample(4, streamFormat.SampleRate, sampleRate, streamer)

	done := make(chan struct{})
	speaker.Play(beep.Seq(resampled, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

func formatOf(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return "mp3", nil
	case ".wav":
		return "wav", nil
	default:
		return "", fmt.Errorf("unsupported audio format %q", ext)
	}
}

func decode(data []byte, format string) (beep.StreamSeekCloser, beep.Format, error) {
	reader := io.NopCloser(bytes.NewReader(data))

	var (
		streamer beep.StreamSeekCloser
		f        beep.Format
		err      error
	)
	switch format {
	case "mp3":
		streamer, f, err = mp3.Decode(reader)
	case "wav":
		streamer, f, err = wav.Decode(reader)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format: %s", format)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode audio: %w", err)
	}
	return streamer, f, nil
}
