package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestTickReportsPerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithInterval(time.Second), WithClock(clock.now))

	for i := 0; i < 9; i++ {
		clock.t = clock.t.Add(100 * time.Millisecond)
		_, reported := p.Tick(i%3 != 0)
		assert.False(t, reported)
	}
	p.AddDropped(2)

	clock.t = clock.t.Add(100 * time.Millisecond)
	s, reported := p.Tick(true)
	assert.True(t, reported)
	assert.InDelta(t, 10.0, s.FPS, 1e-9)
	assert.InDelta(t, 7.0, s.DrawFPS, 1e-9)
	assert.Equal(t, 3, s.Skipped)
	assert.Equal(t, uint64(2), s.Dropped)
	assert.Positive(t, s.SysMB)

	clock.t = clock.t.Add(time.Second)
	s, reported = p.Tick(false)
	assert.True(t, reported)
	assert.InDelta(t, 1.0, s.FPS, 1e-9)
	assert.Zero(t, s.DrawFPS)
	assert.Zero(t, s.Dropped, "windows reset after reporting")
}

func TestIgnoresNonPositiveInterval(t *testing.T) {
	p := NewProfiler(WithInterval(0))
	assert.Equal(t, time.Second, p.updateInterval)
}
