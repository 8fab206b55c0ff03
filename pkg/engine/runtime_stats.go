package engine

import (
	"runtime"
	"sync"
	"time"
)

// Sampling bounds for the runtime sampler.
const (
	DefaultSampleInterval = 5 * time.Second
	DefaultSampleWindow   = time.Minute
	minSampleInterval     = 100 * time.Millisecond
	maxSamples            = 120
)

// RuntimeSample is one reading of process and runtime load.
type RuntimeSample struct {
	Timestamp    int64  `json:"ts"`
	HeapAlloc    uint64 `json:"heapAlloc"`
	HeapInuse    uint64 `json:"heapInuse"`
	NumGC        uint32 `json:"numGC"`
	LastPauseNs  uint64 `json:"lastPauseNs"`
	Goroutines   int    `json:"goroutines"`
	Entities     int    `json:"entities"`
	Mounted      int    `json:"mounted"`
	Dirty        int    `json:"dirty"`
	TasksRunning int    `json:"tasksRunning"`
	TasksWaiting int    `json:"tasksWaiting"`
}

// RuntimeSampleBuffer keeps the most recent samples covering a window.
type RuntimeSampleBuffer struct {
	mu       sync.RWMutex
	ring     []RuntimeSample
	next     int
	full     bool
	interval time.Duration
}

// NewRuntimeSampleBuffer sizes a buffer to hold window/interval samples,
// capped at 120. Non-positive arguments use the defaults; the interval is
// at least 100ms.
func NewRuntimeSampleBuffer(window, interval time.Duration) *RuntimeSampleBuffer {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	interval = max(interval, minSampleInterval)
	if window <= 0 {
		window = DefaultSampleWindow
	}
	n := min(max(int(window/interval), 1), maxSamples)
	return &RuntimeSampleBuffer{ring: make([]RuntimeSample, n), interval: interval}
}

// Interval returns the sampling period.
func (b *RuntimeSampleBuffer) Interval() time.Duration { return b.interval }

// Window returns how much history a full buffer covers.
func (b *RuntimeSampleBuffer) Window() time.Duration {
	return time.Duration(len(b.ring)) * b.interval
}

// Add records s, evicting the oldest sample when full.
func (b *RuntimeSampleBuffer) Add(s RuntimeSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ring[b.next] = s
	b.next++
	if b.next == len(b.ring) {
		b.next = 0
		b.full = true
	}
}

// Snapshot returns the recorded samples, oldest first.
func (b *RuntimeSampleBuffer) Snapshot() []RuntimeSample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.full {
		if b.next == 0 {
			return nil
		}
		return append([]RuntimeSample(nil), b.ring[:b.next]...)
	}
	out := make([]RuntimeSample, 0, len(b.ring))
	out = append(out, b.ring[b.next:]...)
	return append(out, b.ring[:b.next]...)
}

func (e *Engine) readRuntimeSample() RuntimeSample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	var pause uint64
	if ms.NumGC > 0 {
		pause = ms.PauseNs[(ms.NumGC+255)%256]
	}
	tasks := e.rt.Runner().Stats()
	return RuntimeSample{
		Timestamp:    time.Now().UnixMilli(),
		HeapAlloc:    ms.HeapAlloc,
		HeapInuse:    ms.HeapInuse,
		NumGC:        ms.NumGC,
		LastPauseNs:  pause,
		Goroutines:   runtime.NumGoroutine(),
		Entities:     e.rt.Store().Len(),
		Mounted:      len(e.rt.Scheduler().Mounted()),
		Dirty:        e.rt.Tracker().Len(),
		TasksRunning: tasks.Running,
		TasksWaiting: tasks.Scheduled + tasks.Suspended,
	}
}

// runtimeSampler feeds e.samples from a ticker goroutine.
type runtimeSampler struct {
	mu   sync.Mutex
	quit chan struct{}
}

func (s *runtimeSampler) start(e *Engine, every time.Duration) {
	s.stop()
	quit := make(chan struct{})
	s.mu.Lock()
	s.quit = quit
	s.mu.Unlock()

	e.samples.Add(e.readRuntimeSample())
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-quit:
				return
			case <-t.C:
				e.samples.Add(e.readRuntimeSample())
			}
		}
	}()
}

func (s *runtimeSampler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		close(s.quit)
		s.quit = nil
	}
}
