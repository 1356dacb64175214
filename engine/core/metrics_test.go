package core

import (
	"math"
	"testing"
)

func TestMetricsAverageAndFPS(t *testing.T) {
	m := NewMetrics()
	// 1/64 s frames are exact in binary.
	for i := 0; i < 64; i++ {
		m.Update(1.0 / 64.0)
	}
	if got := m.FrameTime(); math.Abs(got-15.625) > 1e-9 {
		t.Fatalf("frame time = %f", got)
	}
	if m.FPS() != 0 {
		t.Fatal("fps reported before a full second")
	}
	m.Update(1.0 / 64.0)
	if fps := m.FPS(); fps != 65 {
		t.Fatalf("fps = %f", fps)
	}
}

func TestClockStopped(t *testing.T) {
	c := NewClock()
	c.Update()
	if c.Elapsed() != 0 {
		t.Fatal("unstarted clock advanced")
	}
	c.Start()
	c.Stop()
	before := c.Elapsed()
	c.Update()
	if c.Elapsed() != before {
		t.Fatal("stopped clock advanced")
	}
}
