// Copyright 2025 Tom Barlow
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

// Package metrics exposes Prometheus counters for run and step execution,
// implementing the Executor's MetricsCollector contract.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tombee/flowcore/pkg/workflow"
)

var (
	runsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowcore_runs_started_total",
			Help: "Total workflow runs that transitioned to RUNNING",
		},
	)

	runsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcore_runs_completed_total",
			Help: "Total workflow runs reaching a terminal status, by status",
		},
		[]string{"status"},
	)

	stepsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcore_steps_completed_total",
			Help: "Total automated steps completed, by step kind and status",
		},
		[]string{"kind", "status"},
	)
)

// Collector records Executor scheduling events against the package's
// Prometheus counters. The zero value is ready to use.
type Collector struct{}

var _ workflow.MetricsCollector = Collector{}

// RecordRunStart increments the started-runs counter.
func (Collector) RecordRunStart() {
	runsStarted.Inc()
}

// RecordRunComplete increments the completed-runs counter for status.
func (Collector) RecordRunComplete(status workflow.Status) {
	runsCompleted.WithLabelValues(string(status)).Inc()
}

// RecordStepComplete increments the completed-steps counter for the
// step's kind and terminal status.
func (Collector) RecordStepComplete(kind workflow.StepKind, status workflow.Status) {
	stepsCompleted.WithLabelValues(string(kind), string(status)).Inc()
}
