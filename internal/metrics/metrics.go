// Copyright 2024 Google Inc. All Rights Reserved.
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

// Package metrics exposes Prometheus counters and a latency histogram for
// every FUSE operation the adapter serves, labeled by operation name and,
// on failure, by the kvfs error taxonomy's Kind.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvfs",
		Name:      "fuse_ops_total",
		Help:      "Count of FUSE operations served, by operation name.",
	}, []string{"op"})

	opErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvfs",
		Name:      "fuse_op_errors_total",
		Help:      "Count of FUSE operations that failed, by operation name and error kind.",
	}, []string{"op", "kind"})

	opLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kvfs",
		Name:      "fuse_op_latency_seconds",
		Help:      "Latency of FUSE operations, by operation name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
)

// Record accounts one completed operation: it always increments the op's
// total and latency histogram, and additionally bumps the per-kind error
// counter when kind is non-empty.
func Record(op string, start time.Time, kind string) {
	opsTotal.WithLabelValues(op).Inc()
	opLatencySeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if kind != "" {
		opErrorsTotal.WithLabelValues(op, kind).Inc()
	}
}

// Handler exposes the registered metrics in the Prometheus text exposition
// format, for wiring into an http.Server by the mount command.
func Handler() http.Handler {
	return promhttp.Handler()
}
