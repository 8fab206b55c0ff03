package engine

import (
	"sync"
	"time"

	"github.com/go-drift/reactor/pkg/core"
)

const (
	passTraceSamplesDefault  = 240
	defaultSlowPassThreshold = 16667 * time.Microsecond
)

// PassSample is a single render pass trace sample.
type PassSample struct {
	Timestamp  int64   `json:"ts"`
	Tick       uint64  `json:"tick"`
	Pass       uint64  `json:"pass"`
	PassMs     float64 `json:"passMs"`
	Dirty      int     `json:"dirty"`
	Roots      int     `json:"roots"`
	Rendered   int     `json:"rendered"`
	Superseded int     `json:"superseded"`
	Frames     int     `json:"frames"`
	Error      string  `json:"error,omitempty"`
}

func newPassSample(tick uint64, rep core.PassReport, err error) PassSample {
	s := PassSample{
		Timestamp:  rep.Started.UnixMilli(),
		Tick:       tick,
		Pass:       rep.Pass,
		PassMs:     durationToMillis(rep.Duration),
		Dirty:      rep.Dirty,
		Roots:      rep.Roots,
		Rendered:   rep.Rendered,
		Superseded: rep.Superseded,
		Frames:     rep.Frames,
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// PassTimeline is the debug server response shape.
type PassTimeline struct {
	Samples     []PassSample `json:"samples"`
	SlowPasses  int          `json:"slowPasses"`
	ThresholdMs float64      `json:"thresholdMs"`
}

// PassTraceBuffer stores recent pass samples in a ring buffer.
type PassTraceBuffer struct {
	mu        sync.RWMutex
	samples   []PassSample
	index     int
	count     int
	slow      int
	threshold time.Duration
}

// NewPassTraceBuffer creates a new pass trace buffer.
func NewPassTraceBuffer(capacity int, threshold time.Duration) *PassTraceBuffer {
	if capacity <= 0 {
		capacity = passTraceSamplesDefault
	}
	if threshold <= 0 {
		threshold = defaultSlowPassThreshold
	}
	return &PassTraceBuffer{
		samples:   make([]PassSample, capacity),
		threshold: threshold,
	}
}

// Capacity returns the buffer capacity.
func (b *PassTraceBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Threshold returns the slow pass threshold.
func (b *PassTraceBuffer) Threshold() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.threshold
}

// Add records a pass sample and updates the slow pass count.
func (b *PassTraceBuffer) Add(sample PassSample, passDuration time.Duration) {
	b.mu.Lock()
	b.samples[b.index] = sample
	b.index = (b.index + 1) % len(b.samples)
	if b.count < len(b.samples) {
		b.count++
	}
	if passDuration > b.threshold {
		b.slow++
	}
	b.mu.Unlock()
}

// Snapshot returns a chronological copy of samples and stats.
func (b *PassTraceBuffer) Snapshot() PassTimeline {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return PassTimeline{ThresholdMs: durationToMillis(b.threshold)}
	}

	result := make([]PassSample, b.count)
	if b.count < len(b.samples) {
		copy(result, b.samples[:b.count])
	} else {
		copy(result, b.samples[b.index:])
		copy(result[len(b.samples)-b.index:], b.samples[:b.index])
	}

	return PassTimeline{
		Samples:     result,
		SlowPasses:  b.slow,
		ThresholdMs: durationToMillis(b.threshold),
	}
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
