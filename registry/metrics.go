// Copyright 2026 Clearo Labs
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

package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clearo-labs/clearo/auth"
)

type registryMetrics struct {
	operations *prometheus.CounterVec
	projects   prometheus.Counter
	documents  prometheus.Counter
}

func (r *Registry) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	r.metrics = &registryMetrics{
		operations: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clearo_registry_operations_total",
				Help: "registry operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		projects: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "clearo_registry_projects_registered_total",
			Help: "projects registered",
		}),
		documents: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "clearo_registry_documents_added_total",
			Help: "documents added",
		}),
	}
}

func (r *Registry) observe(op auth.Operation, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.metrics.operations.WithLabelValues(op.String(), outcome).Inc()
}
