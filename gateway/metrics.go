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

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSubmitted = "submitted"
	outcomeRejected  = "rejected"
	outcomeInvalid   = "invalid"
)

type gatewayMetrics struct {
	submissions *prometheus.CounterVec
}

func newGatewayMetrics(
	promRegistry prometheus.Registerer,
	component string,
) *gatewayMetrics {
	if promRegistry == nil {
		return nil
	}
	promautoFactory := promauto.With(promRegistry)
	return &gatewayMetrics{
		submissions: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "clearo_gateway_submissions_total",
				Help:        "authority submissions by outcome",
				ConstLabels: prometheus.Labels{"gateway": component},
			},
			[]string{"outcome"},
		),
	}
}

func (m *gatewayMetrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}
