// Copyright 2025 ChainSight
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

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainsight",
		Subsystem: "orchestrator",
		Name:      "turns_total",
		Help:      "Turns handled, labeled by final response status.",
	}, []string{"status"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chainsight",
		Subsystem: "orchestrator",
		Name:      "turn_duration_seconds",
		Help:      "Wall-clock time spent handling one turn.",
		Buckets:   prometheus.DefBuckets,
	})

	complianceScoreGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chainsight",
		Subsystem: "orchestrator",
		Name:      "compliance_score",
		Help:      "Current session compliance score.",
	})
)
