// Package audio plays a short click whenever dominoes start to fall.
package audio

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"dominoes.run/internal/sim/catalogs"
	"dominoes.run/internal/sim/world"
)

const sampleRate = beep.SampleRate(48000)

// clickLength is the duration of one fall click.
const clickLength = 40 * time.Millisecond

// Player mixes fall clicks onto the default speaker.
type Player struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
}

func NewPlayer() *Player {
	return &Player{mixer: &beep.Mixer{}}
}

// Initialize opens the speaker. Calling it twice is a no-op.
func (p *Player) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(50*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(p.mixer)
	p.initialized = true
	return nil
}

// Close silences anything still playing.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	speaker.Lock()
	p.mixer.Clear()
	speaker.Unlock()
	p.initialized = false
}

// ObserveTick plays one click per tick in which at least one node started
// falling. Louder cascades get a slightly higher pitch.
func (p *Player) ObserveTick(_ *world.World, rep world.TickReport) {
	falls := 0
	for _, tr := range rep.Transitions {
		if tr.To == catalogs.Falling {
			falls++
		}
	}
	if falls == 0 {
		return
	}
	p.Click(falls)
}

// Click queues one click for a tick with n falling nodes.
func (p *Player) Click(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	s := beep.Take(sampleRate.N(clickLength), NewClickGenerator(sampleRate, clickFrequency(n)))
	speaker.Lock()
	p.mixer.Add(s)
	speaker.Unlock()
}

func clickFrequency(n int) float64 {
	if n > 8 {
		n = 8
	}
	return 900 + 60*float64(n-1)
}

// ClickGenerator is a sine burst with a fast exponential decay.
type ClickGenerator struct {
	sr   beep.SampleRate
	freq float64
	pos  int
}

func NewClickGenerator(sr beep.SampleRate, freq float64) *ClickGenerator {
	return &ClickGenerator{sr: sr, freq: freq}
}

func (g *ClickGenerator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := float64(g.pos) / float64(g.sr)
		sample := 0.25 * math.Sin(2*math.Pi*g.freq*t) * math.Exp(-t*120)
		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

func (g *ClickGenerator) Err() error { return nil }
