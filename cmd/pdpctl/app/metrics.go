package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cedar-pdp/pdp/pkg/logger"
	"github.com/cedar-pdp/pdp/pkg/meter"
	"github.com/cedar-pdp/pdp/pkg/pdp"
)

func newMetricsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Bootstrap the PDP and serve its meter as a Prometheus /metrics endpoint",
		Long: `Bootstraps a PDP instance against the configured policy store and serves
its counters/gauges (total_authz_requests, avg_decision_ms, authz_allow_rate,
...) on /metrics, for scraping alongside a process embedding the same
configuration. Blocks until the process is terminated.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeMetrics(cmd, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9090", "address to serve /metrics on")
	return cmd
}

func runServeMetrics(cmd *cobra.Command, addr string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	facade, err := pdp.New(ctx, buildConfig())
	if err != nil {
		return fmt.Errorf("bootstrapping PDP: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(meter.NewPromCollector(facade.Meter()))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	logger.Infof("serving metrics on %s/metrics", addr)
	return http.ListenAndServe(addr, mux)
}
