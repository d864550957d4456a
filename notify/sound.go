package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/speaker"
)

// Chime plays a short sound when the policy asks for one.
type Chime interface {
	Play() error
}

const (
	toneRate     = beep.SampleRate(44100)
	toneFreq     = 880.0
	toneDuration = 120 * time.Millisecond
)

// Tone is a Chime that plays a short sine beep on the default speaker.
type Tone struct {
	once    sync.Once
	initErr error
	mu      sync.Mutex
}

// NewTone creates a Tone. The speaker is initialized on first Play.
func NewTone() *Tone {
	return &Tone{}
}

// Play blocks until the tone finished playing.
func (t *Tone) Play() error {
	t.once.Do(func() {
		t.initErr = speaker.Init(toneRate, toneRate.N(time.Second/10))
	})
	if t.initErr != nil {
		return fmt.Errorf("init speaker: %w", t.initErr)
	}

	sine, err := generators.SineTone(toneRate, toneFreq)
	if err != nil {
		return fmt.Errorf("sine tone: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	done := make(chan struct{})
	speaker.Play(beep.Seq(beep.Take(toneRate.N(toneDuration), sine), beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
