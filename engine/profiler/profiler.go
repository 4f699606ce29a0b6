// Package profiler reports frame rate and memory statistics through the engine logger.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
)

// Stats is one profiling report.
type Stats struct {
	FPS float64
	// HeapMB is the live heap; AllocRateMB is heap churn per second.
	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	// LastPause and MaxPause are GC pauses in microseconds; MaxPause covers the report interval.
	LastPause uint64
	MaxPause  uint64
}

// Profiler tracks frame rate and memory statistics.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
}

// NewProfiler creates a Profiler reporting once per second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// SetInterval changes how often Tick reports.
func (p *Profiler) SetInterval(d time.Duration) {
	p.updateInterval = d
}

// Last returns the most recent report.
func (p *Profiler) Last() Stats {
	return p.last
}

// Tick counts one frame and logs a report at Info level once the update interval has elapsed.
//
// Returns:
//   - bool: true if stats were reported this tick
func (p *Profiler) Tick() bool {
	p.frameCount++
	now := time.Now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	s := Stats{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}
	if s.GCCount > 0 {
		// PauseNs is a ring of the last 256 pauses
		s.LastPause = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		first := p.lastGCCount
		if s.GCCount-first > 256 {
			first = s.GCCount - 256
		}
		for i := first; i < s.GCCount; i++ {
			s.MaxPause = max(s.MaxPause, p.memStats.PauseNs[i%256]/1000)
		}
	}

	logger.Logger().Info("profiler",
		"fps", s.FPS,
		"heap_mb", s.HeapMB,
		"alloc_rate_mb", s.AllocRateMB,
		"gc", s.GCCount,
		"gc_last_us", s.LastPause,
		"gc_max_us", s.MaxPause,
		"sys_mb", s.SysMB,
	)

	p.last = s
	p.frameCount = 0
	p.lastTime = now
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
