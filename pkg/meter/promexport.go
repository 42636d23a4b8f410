package meter

import "github.com/prometheus/client_golang/prometheus"

// PromCollector adapts a Meter to a prometheus.Collector so it can be
// registered with a registry when metrics.prometheus_enabled is set. The
// rolling-average gauge and rate gauges stay plain Go arithmetic (see
// SPEC_FULL.md); this collector only republishes their current values on
// each scrape, it does not replace them with a Prometheus histogram.
type PromCollector struct {
	meter *Meter

	totalAuthzRequests *prometheus.Desc
	totalJWTsValidated *prometheus.Desc
	avgDecisionMs      *prometheus.Desc
	authzAllowRate     *prometheus.Desc
	validJWTRate       *prometheus.Desc
}

// NewPromCollector wraps m for Prometheus registration.
func NewPromCollector(m *Meter) *PromCollector {
	return &PromCollector{
		meter:              m,
		totalAuthzRequests: prometheus.NewDesc("pdp_total_authz_requests", "Total authorize() calls.", nil, nil),
		totalJWTsValidated: prometheus.NewDesc("pdp_total_jwts_validated", "Total JWT validations performed.", nil, nil),
		avgDecisionMs:      prometheus.NewDesc("pdp_avg_decision_ms", "Rolling average authorize() latency in milliseconds.", nil, nil),
		authzAllowRate:     prometheus.NewDesc("pdp_authz_allow_rate", "Fraction of authorize() calls that resulted in Allow.", nil, nil),
		validJWTRate:       prometheus.NewDesc("pdp_valid_jwt_rate", "Fraction of JWT validations that succeeded.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalAuthzRequests
	ch <- c.totalJWTsValidated
	ch <- c.avgDecisionMs
	ch <- c.authzAllowRate
	ch <- c.validJWTRate
}

// Collect implements prometheus.Collector.
func (c *PromCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.totalAuthzRequests, prometheus.CounterValue, float64(c.meter.TotalAuthzRequests.Value()))
	ch <- prometheus.MustNewConstMetric(c.totalJWTsValidated, prometheus.CounterValue, float64(c.meter.TotalJWTsValidated.Value()))
	ch <- prometheus.MustNewConstMetric(c.avgDecisionMs, prometheus.GaugeValue, c.meter.AvgDecisionMs.Value())
	ch <- prometheus.MustNewConstMetric(c.authzAllowRate, prometheus.GaugeValue, c.meter.AuthzAllowRate())
	ch <- prometheus.MustNewConstMetric(c.validJWTRate, prometheus.GaugeValue, c.meter.ValidJWTRate())
}
