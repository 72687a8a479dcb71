// Package profiler reports playback throughput and memory statistics at a fixed interval.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/alphavid/common"
)

// Stats is one reporting window.
type Stats struct {
	// FPS is loop iterations per second.
	FPS float64
	// DrawFPS is presented frames per second.
	DrawFPS float64
	// Skipped counts iterations where the frame index had not changed.
	Skipped int
	// Dropped is decoded frames overwritten before being drawn, as reported by the source.
	Dropped uint64
	HeapMB  float64
	// AllocRateMB is heap allocation churn in MB per second.
	AllocRateMB float64
	GCCount     uint32
	// MaxPauseUs is the longest GC pause in the window, in microseconds.
	MaxPauseUs uint64
	SysMB      float64
}

// Profiler tracks playback statistics and logs them once per interval.
type Profiler struct {
	ticks          int
	draws          int
	skipped        int
	dropped        uint64
	lastTime       time.Time
	updateInterval time.Duration
	now            func() time.Time
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler. The interval defaults to 1 second.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick records one loop iteration and reports when the interval has elapsed.
//
// Parameters:
//   - drawn: true when the iteration presented a new frame
//
// Returns:
//   - Stats: the finished window, zero unless reported is true
//   - bool: true if the window was reported this tick
func (p *Profiler) Tick(drawn bool) (Stats, bool) {
	p.ticks++
	if drawn {
		p.draws++
	} else {
		p.skipped++
	}

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return Stats{}, false
	}

	s := Stats{
		FPS:     float64(p.ticks) / elapsed.Seconds(),
		DrawFPS: float64(p.draws) / elapsed.Seconds(),
		Skipped: p.skipped,
		Dropped: p.dropped,
	}

	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	s.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses.
	s.GCCount = p.memStats.NumGC
	startIdx := p.lastGCCount
	if s.GCCount-startIdx > 256 {
		startIdx = s.GCCount - 256
	}
	for i := startIdx; i < s.GCCount; i++ {
		if pause := p.memStats.PauseNs[i%256] / 1000; pause > s.MaxPauseUs {
			s.MaxPauseUs = pause
		}
	}

	common.Logger().Info("playback stats",
		"fps", s.FPS, "draw_fps", s.DrawFPS, "skipped", s.Skipped, "dropped", s.Dropped,
		"heap_mb", s.HeapMB, "alloc_mb_s", s.AllocRateMB, "gc", s.GCCount, "max_pause_us", s.MaxPauseUs,
		"sys_mb", s.SysMB)

	p.ticks, p.draws, p.skipped, p.dropped = 0, 0, 0, 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return s, true
}

// AddDropped adds decoder drops to the current window.
func (p *Profiler) AddDropped(n uint64) {
	p.dropped += n
}
