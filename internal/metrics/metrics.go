package metrics

import (
	"sort"
	"sync"
	"time"
)

// Sink receives pipeline measurements. Stages get one injected instead of
// touching process-wide counters.
type Sink interface {
	Inc(name string)
	Add(name string, delta float64)
	Set(name string, value float64)
	Observe(name string, d time.Duration)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Inc(string) {}
func (discard) Add(string, float64) {}
func (discard) Set(string, float64) {}
func (discard) Observe(string, time.Duration) {}

// Summary aggregates observed durations in seconds.
type Summary struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Last  float64 `json:"last"`
	Max   float64 `json:"max"`
}

// Snapshot is a point-in-time copy of a Registry.
type Snapshot struct {
	Counters  map[string]float64 `json:"counters"`
	Gauges    map[string]float64 `json:"gauges"`
	Summaries map[string]Summary `json:"summaries"`
}

// Names returns every metric name in the snapshot, sorted.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Counters)+len(s.Gauges)+len(s.Summaries))
	for n := range s.Counters {
		names = append(names, n)
	}
	for n := range s.Gauges {
		names = append(names, n)
	}
	for n := range s.Summaries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Registry is a concurrency-safe in-memory Sink.
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]float64
	gauges    map[string]float64
	summaries map[string]Summary
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]float64),
		gauges:    make(map[string]float64),
		summaries: make(map[string]Summary),
	}
}

func (r *Registry) Inc(name string) {
	r.Add(name, 1)
}

// Add increases a counter. Negative deltas are ignored.
func (r *Registry) Add(name string, delta float64) {
	if delta < 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

func (r *Registry) Set(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = value
}

func (r *Registry) Observe(name string, d time.Duration) {
	secs := d.Seconds()

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.summaries[name]
	s.Count++
	s.Sum += secs
	s.Last = secs
	if secs > s.Max {
		s.Max = secs
	}
	r.summaries[name] = s
}

// Counter returns the current value of a counter.
func (r *Registry) Counter(name string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// Gauge returns the current value of a gauge.
func (r *Registry) Gauge(name string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// Snapshot copies the registry contents.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Counters:  make(map[string]float64, len(r.counters)),
		Gauges:    make(map[string]float64, len(r.gauges)),
		Summaries: make(map[string]Summary, len(r.summaries)),
	}
	for k, v := range r.counters {
		s.Counters[k] = v
	}
	for k, v := range r.gauges {
		s.Gauges[k] = v
	}
	for k, v := range r.summaries {
		s.Summaries[k] = v
	}
	return s
}

// Timer starts measuring a duration reported to sink under name when the
// returned func is called.
func Timer(sink Sink, name string) func() {
	start := time.Now()
	return func() {
		sink.Observe(name, time.Since(start))
	}
}
