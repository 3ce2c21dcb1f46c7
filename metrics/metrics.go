/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics exposes engine and stage counters in Prometheus format.
//
// Metrics:
//
//	streamflow_flows_submitted_total            flows accepted by SubmitFlow
//	streamflow_flow_build_errors_total          plans rejected at build time
//	streamflow_flows_finished_total{state}      flows that reached a terminal state
//	streamflow_flows_running                    flows currently running
//	streamflow_stage_records_in_total{kind}     records received by stages
//	streamflow_stage_records_out_total{kind}    records emitted by stages
//	streamflow_stage_records_dropped_total{kind} records filtered or discarded
//	streamflow_stage_evicted_total{kind}        window buckets and join entries expired
//	streamflow_queue_depth{flow}                records buffered in a flow's queues
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/types"
)

const namespace = "streamflow"

// Collector holds the engine metrics in a registry of its own, so several
// engines in one process do not collide.
type Collector struct {
	registry *prometheus.Registry

	flowsSubmitted prometheus.Counter
	buildErrors    prometheus.Counter
	flowsFinished  *prometheus.CounterVec
	flowsRunning   prometheus.Gauge

	recordsIn      *prometheus.CounterVec
	recordsOut     *prometheus.CounterVec
	recordsDropped *prometheus.CounterVec
	evicted        *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec
}

// NewCollector creates a collector and registers its metrics plus the Go
// runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		flowsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_submitted_total",
			Help:      "Total number of flows submitted",
		}),
		buildErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_build_errors_total",
			Help:      "Total number of plans rejected when building a flow",
		}),
		flowsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_finished_total",
			Help:      "Total number of flows that reached a terminal state",
		}, []string{"state"}),
		flowsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flows_running",
			Help:      "Current number of running flows",
		}),
		recordsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_records_in_total",
			Help:      "Total number of records received by stages",
		}, []string{"kind"}),
		recordsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_records_out_total",
			Help:      "Total number of records emitted by stages",
		}, []string{"kind"}),
		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_records_dropped_total",
			Help:      "Total number of records filtered out or discarded by stages",
		}, []string{"kind"}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_evicted_total",
			Help:      "Total number of window buckets and join entries expired",
		}, []string{"kind"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Records buffered in the transport queues of a flow",
		}, []string{"flow"}),
	}

	c.registry.MustRegister(
		c.flowsSubmitted,
		c.buildErrors,
		c.flowsFinished,
		c.flowsRunning,
		c.recordsIn,
		c.recordsOut,
		c.recordsDropped,
		c.evicted,
		c.queueDepth,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// FlowSubmitted records a flow that started running.
func (c *Collector) FlowSubmitted() {
	c.flowsSubmitted.Inc()
	c.flowsRunning.Inc()
}

// BuildFailed records a plan that could not be built.
func (c *Collector) BuildFailed() {
	c.buildErrors.Inc()
}

// FlowFinished records a flow leaving RUNNING for state.
func (c *Collector) FlowFinished(id types.FlowID, state types.FlowState) {
	c.flowsFinished.WithLabelValues(state.String()).Inc()
	c.flowsRunning.Dec()
	c.queueDepth.DeleteLabelValues(id.String())
}

// SetQueueDepth records the records buffered in a flow's queues.
func (c *Collector) SetQueueDepth(id types.FlowID, depth int) {
	c.queueDepth.WithLabelValues(id.String()).Set(float64(depth))
}

func (c *Collector) RecordsIn(kind plan.Kind, n int) {
	c.recordsIn.WithLabelValues(string(kind)).Add(float64(n))
}

func (c *Collector) RecordsOut(kind plan.Kind, n int) {
	c.recordsOut.WithLabelValues(string(kind)).Add(float64(n))
}

func (c *Collector) RecordsDropped(kind plan.Kind, n int) {
	c.recordsDropped.WithLabelValues(string(kind)).Add(float64(n))
}

func (c *Collector) Evicted(kind plan.Kind, n int) {
	c.evicted.WithLabelValues(string(kind)).Add(float64(n))
}
