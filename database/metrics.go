/*
 * Copyright 2025 tomoncle.
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

package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
)

// MetricsHook records query latency and failures per operation.
type MetricsHook struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

var _ bun.QueryHook = (*MetricsHook)(nil)

// NewMetricsHook registers the collectors on reg. Registering twice on the
// same registry reuses the existing collectors.
func NewMetricsHook(reg prometheus.Registerer) (*MetricsHook, error) {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledger",
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Duration of database queries by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "db",
		Name:      "query_errors_total",
		Help:      "Database queries that returned an error, by operation.",
	}, []string{"operation"})

	var err error
	if duration, err = registerOrReuse(reg, duration); err != nil {
		return nil, err
	}
	if failures, err = registerOrReuse(reg, failures); err != nil {
		return nil, err
	}
	return &MetricsHook{duration: duration, failures: failures}, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (h *MetricsHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *MetricsHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	op := strings.ToLower(event.Operation())
	h.duration.WithLabelValues(op).Observe(time.Since(event.StartTime).Seconds())
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.failures.WithLabelValues(op).Inc()
	}
}

// registerPoolStats exposes the database/sql pool counters of sqlDB,
// labelled with dbName.
func registerPoolStats(reg prometheus.Registerer, sqlDB *sql.DB, dbName string) (prometheus.Collector, error) {
	c := collectors.NewDBStatsCollector(sqlDB, dbName)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}
