package meter

import "sync"

// Gauge reports the rolling average of the last capacity samples added to
// it. Its value is always sum / min(capacity, len); when full, inserting a
// new sample evicts the oldest and updates sum by the delta (new - evicted)
// rather than resumming the whole window.
type Gauge struct {
	mu       sync.Mutex
	capacity int
	samples  []float64
	next     int
	count    int
	sum      float64
}

// NewGauge constructs a Gauge with the given rolling window capacity. A
// non-positive capacity is treated as 1.
func NewGauge(capacity int) *Gauge {
	if capacity <= 0 {
		capacity = 1
	}
	return &Gauge{capacity: capacity, samples: make([]float64, capacity)}
}

// Add inserts a new sample, evicting the oldest if the window is full.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.count < g.capacity {
		g.samples[g.next] = v
		g.sum += v
		g.count++
	} else {
		evicted := g.samples[g.next]
		g.samples[g.next] = v
		g.sum += v - evicted
	}
	g.next = (g.next + 1) % g.capacity
}

// Value returns sum / min(capacity, len samples seen), or 0 if empty.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.count == 0 {
		return 0
	}
	return g.sum / float64(g.count)
}

// Len returns the number of samples currently contributing to Value (never
// exceeds capacity).
func (g *Gauge) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}
