// Package metrics exports share and HTTP metrics to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "blobshare"

// ShareObserver records share outcomes and HTTP traffic.
type ShareObserver struct {
	sharesTotal     *prometheus.CounterVec
	shareDuration   *prometheus.HistogramVec
	uploadedBytes   *prometheus.CounterVec
	sharesInFlight  prometheus.Gauge
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewShareObserver creates the collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil). Collectors that are already
// registered are reused, so the observer can be created more than once.
func NewShareObserver(namespace string, reg prometheus.Registerer) (*ShareObserver, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &ShareObserver{
		sharesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "share",
			Name:      "total",
			Help:      "Total number of finished shares.",
		}, []string{"service", "format", "status"}),
		shareDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "share",
			Name:      "duration_seconds",
			Help:      "Time from resolving the source file to handing back the URL.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"service"}),
		uploadedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "share",
			Name:      "uploaded_bytes_total",
			Help:      "Cumulative size of successfully shared files.",
		}, []string{"service"}),
		sharesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "share",
			Name:      "in_flight",
			Help:      "Shares currently running.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
	}

	var err error
	if o.sharesTotal, err = register(reg, o.sharesTotal); err != nil {
		return nil, err
	}
	if o.shareDuration, err = register(reg, o.shareDuration); err != nil {
		return nil, err
	}
	if o.uploadedBytes, err = register(reg, o.uploadedBytes); err != nil {
		return nil, err
	}
	if o.sharesInFlight, err = register(reg, o.sharesInFlight); err != nil {
		return nil, err
	}
	if o.requestsTotal, err = register(reg, o.requestsTotal); err != nil {
		return nil, err
	}
	if o.requestDuration, err = register(reg, o.requestDuration); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register collector: %w", err)
}

// ShareStarted marks a share as running.
func (o *ShareObserver) ShareStarted() {
	o.sharesInFlight.Inc()
}

// ShareFinished records the outcome of a share started with ShareStarted.
func (o *ShareObserver) ShareFinished(service, format string, size int64, d time.Duration, err error) {
	o.sharesInFlight.Dec()

	status := "completed"
	if err != nil {
		status = "failed"
	}
	o.sharesTotal.WithLabelValues(service, format, status).Inc()
	o.shareDuration.WithLabelValues(service).Observe(d.Seconds())
	if err == nil && size > 0 {
		o.uploadedBytes.WithLabelValues(service).Add(float64(size))
	}
}

// ObserveRequest records one HTTP request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (o *ShareObserver) ObserveRequest(method, route string, status int, d time.Duration) {
	o.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	o.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
