// Package meter implements the counters, rolling-average gauge, and rate
// gauges C7 exposes alongside the logger.
package meter

import "sync/atomic"

// Counter is a monotonically non-decreasing count, safe for concurrent use.
type Counter struct {
	v atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.v.Add(1) }

// Add increments the counter by delta (must be >= 0 to preserve monotonicity).
func (c *Counter) Add(delta int64) { c.v.Add(delta) }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.v.Load() }

// Meter aggregates the request-serving counters and gauges named in the
// design: total_authz_requests, total_jwts_validated, avg_decision_ms,
// authz_allow_rate, valid_jwt_rate.
type Meter struct {
	TotalAuthzRequests Counter
	TotalJWTsValidated Counter
	totalAuthzAllowed  Counter
	totalJWTsValid     Counter

	AvgDecisionMs *Gauge
}

// New constructs a Meter whose rolling-average gauge holds up to
// rollingCapacity samples.
func New(rollingCapacity int) *Meter {
	return &Meter{AvgDecisionMs: NewGauge(rollingCapacity)}
}

// RecordAuthzRequest records one authorize() call's outcome and elapsed
// time, updating every counter/gauge the design assigns to this event.
func (m *Meter) RecordAuthzRequest(allowed bool, elapsedMs float64) {
	m.TotalAuthzRequests.Inc()
	if allowed {
		m.totalAuthzAllowed.Inc()
	}
	m.AvgDecisionMs.Add(elapsedMs)
}

// RecordJWTValidation records one token validation's outcome.
func (m *Meter) RecordJWTValidation(valid bool) {
	m.TotalJWTsValidated.Inc()
	if valid {
		m.totalJWTsValid.Inc()
	}
}

// AuthzAllowRate returns totalAuthzAllowed / TotalAuthzRequests, or 0 if no
// requests have been recorded yet.
func (m *Meter) AuthzAllowRate() float64 {
	total := m.TotalAuthzRequests.Value()
	if total == 0 {
		return 0
	}
	return float64(m.totalAuthzAllowed.Value()) / float64(total)
}

// ValidJWTRate returns totalJWTsValid / TotalJWTsValidated, or 0 if none
// have been recorded yet.
func (m *Meter) ValidJWTRate() float64 {
	total := m.TotalJWTsValidated.Value()
	if total == 0 {
		return 0
	}
	return float64(m.totalJWTsValid.Value()) / float64(total)
}
