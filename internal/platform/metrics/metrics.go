// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

/*
Package metrics exposes seat admission and revocation counters to Prometheus.

A private registry is used instead of the global default so tests can create
independent instances and the /metrics endpoint only shows what this service
registers (plus Go runtime and process collectors).
*/
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gapgens"

// Recorder implements the session service's metrics sink.
type Recorder struct {
	registry *prometheus.Registry

	admissions       *prometheus.CounterVec
	admissionLatency prometheus.Histogram
	evictions        *prometheus.CounterVec
	revocations      *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	recorder := &Recorder{
		registry: registry,
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "seat",
			Name:      "admissions_total",
			Help:      "Seat admission decisions by outcome.",
		}, []string{"status"}),
		admissionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "seat",
			Name:      "admission_seconds",
			Help:      "Time spent deciding a seat admission, store round-trips included.",
			Buckets:   prometheus.DefBuckets,
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "seat",
			Name:      "evictions_total",
			Help:      "Seat evictions by result (evicted or failed).",
		}, []string{"result"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "revocations_total",
			Help:      "Sessions revoked explicitly, by scope.",
		}, []string{"scope"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		recorder.admissions,
		recorder.admissionLatency,
		recorder.evictions,
		recorder.revocations,
	)

	return recorder
}

// ObserveAdmission counts one admission decision.
func (recorder *Recorder) ObserveAdmission(status string, elapsed time.Duration) {
	recorder.admissions.WithLabelValues(status).Inc()
	recorder.admissionLatency.Observe(elapsed.Seconds())
}

// ObserveEviction counts one eviction attempt.
func (recorder *Recorder) ObserveEviction(result string) {
	recorder.evictions.WithLabelValues(result).Inc()
}

// ObserveRevocations adds count sessions revoked in scope.
func (recorder *Recorder) ObserveRevocations(scope string, count int) {
	recorder.revocations.WithLabelValues(scope).Add(float64(count))
}

// Registry returns the registry the recorder's collectors live in.
func (recorder *Recorder) Registry() *prometheus.Registry {
	return recorder.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (recorder *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(recorder.registry, promhttp.HandlerOpts{Registry: recorder.registry})
}
