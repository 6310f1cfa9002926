/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package metrics defines the Prometheus collectors for the core's hot
// paths (xDS batches, RBAC decisions, session calls) and the HTTP surface
// that exposes them.
package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	XDSBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mcpproxy",
		Subsystem: "xds",
		Name:      "batches_total",
		Help:      "Delta-xDS frames processed, by type_url and outcome (ack/nack).",
	}, []string{"type_url", "outcome"})

	XDSReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mcpproxy",
		Subsystem: "xds",
		Name:      "reconnects_total",
		Help:      "Number of times the delta-xDS stream has reconnected.",
	})

	StoreTargetsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mcpproxy",
		Subsystem: "store",
		Name:      "targets_current",
		Help:      "Number of targets currently tracked by the resource store.",
	})

	StorePoliciesCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mcpproxy",
		Subsystem: "store",
		Name:      "policies_current",
		Help:      "Number of policies currently tracked by the resource store.",
	})

	RBACDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mcpproxy",
		Subsystem: "rbac",
		Name:      "decisions_total",
		Help:      "RBAC evaluator decisions, by outcome (permit/deny).",
	}, []string{"outcome"})

	SessionCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mcpproxy",
		Subsystem: "session",
		Name:      "calls_total",
		Help:      "Inbound session calls routed, by outcome.",
	}, []string{"outcome"})

	MemoryAllocBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mcpproxy",
		Subsystem: "process",
		Name:      "memory_alloc_bytes",
		Help:      "Bytes of heap memory currently allocated, from runtime.MemStats.",
	})
)

var initOnce sync.Once
var registry *prometheus.Registry

// Init builds (once) and returns the process's metrics registry, with every
// collector above registered.
func Init() *prometheus.Registry {
	initOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			XDSBatchesTotal,
			XDSReconnectsTotal,
			StoreTargetsCurrent,
			StorePoliciesCurrent,
			RBACDecisionsTotal,
			SessionCallsTotal,
			MemoryAllocBytes,
		)
	})
	return registry
}

// UpdateMemoryMetrics refreshes MemoryAllocBytes from the Go runtime.
func UpdateMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryAllocBytes.Set(float64(m.Alloc))
}
