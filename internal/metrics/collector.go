// Package metrics exposes Prometheus instrumentation for the projection
// bridge: callback counts and latencies, active enumeration sessions, bytes
// projected to the driver, and error counts by code.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/winprojfs/winprojfs/internal/config"
)

// Collector aggregates bridge metrics and optionally serves them over HTTP.
// A nil or disabled Collector is safe to call; every recording method is a
// no-op in that case.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	callbackCounter    *prometheus.CounterVec
	callbackDuration   *prometheus.HistogramVec
	activeEnumerations prometheus.Gauge
	bytesProjected     prometheus.Counter
	errorCounter       *prometheus.CounterVec

	server *http.Server
}

// NewCollector creates a collector for the given configuration. When metrics
// are disabled the returned collector records nothing and Start is a no-op.
func NewCollector(cfg config.MetricsConfig) (*Collector, error) {
	c := &Collector{config: cfg}
	if !cfg.Enabled {
		return c, nil
	}

	c.registry = prometheus.NewRegistry()

	c.callbackCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "callbacks_total",
			Help:      "Total number of driver callbacks handled",
		},
		[]string{"callback", "status"},
	)

	c.callbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "callback_duration_seconds",
			Help:      "Duration of driver callbacks in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16), // 100us to ~3s
		},
		[]string{"callback"},
	)

	c.activeEnumerations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "active_enumerations",
			Help:      "Number of enumeration sessions currently active",
		},
	)

	c.bytesProjected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "bytes_projected_total",
			Help:      "Total file data bytes written back to the driver",
		},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "errors_total",
			Help:      "Total number of callback errors by code",
		},
		[]string{"callback", "code"},
	)

	for _, m := range []prometheus.Collector{
		c.callbackCounter,
		c.callbackDuration,
		c.activeEnumerations,
		c.bytesProjected,
		c.errorCounter,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return c, nil
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// Start serves the metrics endpoint in the background.
func (c *Collector) Start() error {
	if !c.enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"winprojfs-metrics"}`))
	})

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts down the metrics endpoint.
func (c *Collector) Stop(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// RecordCallback records one handled callback with its duration and outcome.
func (c *Collector) RecordCallback(callback string, duration time.Duration, success bool) {
	if !c.enabled() {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}
	c.callbackCounter.With(prometheus.Labels{
		"callback": callback,
		"status":   status,
	}).Inc()
	c.callbackDuration.With(prometheus.Labels{
		"callback": callback,
	}).Observe(duration.Seconds())
}

// RecordError records a callback failure by error code.
func (c *Collector) RecordError(callback, code string) {
	if !c.enabled() {
		return
	}
	c.errorCounter.With(prometheus.Labels{
		"callback": callback,
		"code":     code,
	}).Inc()
}

// SetActiveEnumerations updates the active session gauge.
func (c *Collector) SetActiveEnumerations(count int) {
	if !c.enabled() {
		return
	}
	c.activeEnumerations.Set(float64(count))
}

// AddBytesProjected accounts file data handed back to the driver.
func (c *Collector) AddBytesProjected(n int) {
	if !c.enabled() {
		return
	}
	c.bytesProjected.Add(float64(n))
}
