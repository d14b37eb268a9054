package perf

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// Probe reads raw load figures. Implementations must degrade to zero values
// instead of failing; the sampler never aborts a cycle.
type Probe interface {
	Load() SystemLoad
}

// systemProbe reads process CPU time from procfs and heap figures from the
// Go runtime. Scheduler lag is measured as timer-fire drift. Load may be
// called from multiple goroutines; the CPU-delta state is guarded.
type systemProbe struct {
	proc    procfs.Proc
	hasProc bool

	mu       sync.Mutex
	lastCPU  float64
	lastRead time.Time
}

// NewSystemProbe creates the default probe. On platforms without procfs the
// CPU figure degrades to zero.
func NewSystemProbe() Probe {
	p := &systemProbe{}
	proc, err := procfs.Self()
	if err == nil {
		p.proc = proc
		p.hasProc = true
	}
	return p
}

func (p *systemProbe) Load() SystemLoad {
	var load SystemLoad

	load.CPUPercent = p.cpuPercent()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	load.HeapMB = float64(ms.HeapAlloc) / (1024 * 1024)
	if ms.HeapSys > 0 {
		load.HeapPercent = float64(ms.HeapAlloc) / float64(ms.HeapSys) * 100
	}
	load.GCPressure = gcPressure(ms.GCCPUFraction)

	load.SchedLagMs = schedLagMs()

	return load
}

func (p *systemProbe) cpuPercent() float64 {
	if !p.hasProc {
		return 0
	}
	stat, err := p.proc.Stat()
	if err != nil {
		return 0
	}

	now := time.Now()
	total := stat.CPUTime()

	p.mu.Lock()
	defer p.mu.Unlock()

	var pct float64
	if !p.lastRead.IsZero() {
		elapsed := now.Sub(p.lastRead).Seconds()
		if elapsed > 0 {
			pct = (total - p.lastCPU) / elapsed * 100
		}
	}
	p.lastCPU = total
	p.lastRead = now

	if pct < 0 {
		pct = 0
	}
	return pct
}

// gcPressure maps the runtime's GC CPU fraction (0-1) onto a 0-100 scale.
func gcPressure(fraction float64) float64 {
	p := fraction * 100
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

// schedLagMs measures how late a 1ms timer fires. Under a healthy scheduler
// the drift is well under a millisecond.
func schedLagMs() float64 {
	const probe = time.Millisecond
	start := time.Now()
	timer := time.NewTimer(probe)
	<-timer.C
	lag := time.Since(start) - probe
	if lag < 0 {
		return 0
	}
	return float64(lag) / float64(time.Millisecond)
}

// staticProbe returns a fixed load; used by tests.
type staticProbe struct {
	load SystemLoad
}

// NewStaticProbe returns a probe that always reports the given load.
func NewStaticProbe(load SystemLoad) Probe {
	return &staticProbe{load: load}
}

func (p *staticProbe) Load() SystemLoad {
	return p.load
}
