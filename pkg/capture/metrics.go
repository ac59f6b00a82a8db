// SPDX-License-Identifier: Apache-2.0
/*
Copyright (C) 2026 The Falco Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package capture

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of the capture loop and of field
// extraction. It implements extract.Observer.
type Metrics struct {
	EventsTotal      *prometheus.CounterVec
	BatchesTotal     *prometheus.CounterVec
	TimeoutsTotal    *prometheus.CounterVec
	StreamErrors     *prometheus.CounterVec
	ExtractionsTotal *prometheus.CounterVec
	AsyncExtraction  *prometheus.GaugeVec
}

// NewMetrics creates and registers the capture metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugin_host_events_total",
				Help: "Total number of events produced by source plugins",
			},
			[]string{"source"},
		),
		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugin_host_batches_total",
				Help: "Total number of event batches read from source plugins",
			},
			[]string{"source"},
		),
		TimeoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugin_host_timeouts_total",
				Help: "Total number of reads that returned no event because of a timeout",
			},
			[]string{"source"},
		),
		StreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugin_host_stream_errors_total",
				Help: "Total number of errors returned by source plugins",
			},
			[]string{"source"},
		),
		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugin_host_extractions_total",
				Help: "Total number of field extractions",
			},
			[]string{"plugin", "outcome"},
		),
		AsyncExtraction: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plugin_host_async_extraction",
				Help: "Whether the plugin fields are extracted asynchronously (1) or synchronously (0)",
			},
			[]string{"plugin"},
		),
	}

	registry.MustRegister(
		m.EventsTotal,
		m.BatchesTotal,
		m.TimeoutsTotal,
		m.StreamErrors,
		m.ExtractionsTotal,
		m.AsyncExtraction,
	)
	return m
}

// ObserveExtraction implements extract.Observer.
func (m *Metrics) ObserveExtraction(plugin, outcome string) {
	m.ExtractionsTotal.WithLabelValues(plugin, outcome).Inc()
}

// ObserveAsync implements extract.Observer.
func (m *Metrics) ObserveAsync(plugin string, async bool) {
	v := 0.0
	if async {
		v = 1
	}
	m.AsyncExtraction.WithLabelValues(plugin).Set(v)
}
