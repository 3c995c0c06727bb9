// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus instrumentation for the gate, the
// dispatch queue and the sync connectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateOutcomes counts gate evaluations.
	// Labels: outcome (PASSED, BLOCKED, AUTH_REQUIRED, ORACLE_FAILURE)
	GateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmeet",
			Subsystem: "gate",
			Name:      "evaluations_total",
			Help:      "Total number of gate evaluations by outcome",
		},
		[]string{"outcome"},
	)

	// OracleDuration tracks how long oracle calls take.
	OracleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "postmeet",
			Subsystem: "oracle",
			Name:      "request_duration_seconds",
			Help:      "Duration of oracle requests in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	// DispatchTransitions counts dispatch item transitions.
	// Labels: status (SENDING, SENT, FAILED)
	DispatchTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmeet",
			Subsystem: "dispatch",
			Name:      "transitions_total",
			Help:      "Total number of dispatch item transitions by target status",
		},
		[]string{"status"},
	)

	// DispatchErrors counts failed sends by error kind.
	// Labels: kind (AUTH_EXPIRED, ACCESS_DENIED, PROVIDER, NETWORK)
	DispatchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmeet",
			Subsystem: "dispatch",
			Name:      "errors_total",
			Help:      "Total number of failed sends by error kind",
		},
		[]string{"kind"},
	)

	// SyncItems counts sync connector item results.
	// Labels: connector (calendar, tasks), result (success, error)
	SyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postmeet",
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Total number of synced items by connector and result",
		},
		[]string{"connector", "result"},
	)
)
