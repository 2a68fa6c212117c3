package core

import (
	"time"

	"github.com/spaghettifunk/framekit/engine/containers"
)

const AVG_COUNT = 30

// Metrics keeps a moving average of frame times and a frames-per-second
// counter refreshed once per second.
type Metrics struct {
	samples            *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewMetrics() *Metrics {
	return &Metrics{
		samples: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// Update records the duration of the last frame.
func (m *Metrics) Update(frameElapsed time.Duration) {
	frameMS := float64(frameElapsed.Microseconds()) / 1000.0

	if m.samples.IsFull() {
		_, _ = m.samples.Dequeue()
	}
	_ = m.samples.Enqueue(frameMS)

	total := 0.0
	m.samples.Each(func(v float64) { total += v })
	m.msAvg = total / float64(m.samples.Len())

	// Calculate Frames per second.
	m.frames++
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}
