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
	"fmt"
	"io"
	"os"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
)

var bunSqlSilentMode atomic.Bool

// EnableBunSqlSilent mutes the query hooks, used while migrations run.
func EnableBunSqlSilent(b bool) {
	bunSqlSilentMode.Store(b)
}

var (
	selectColor = color.New(color.FgGreen)
	insertColor = color.New(color.FgBlue)
	updateColor = color.New(color.FgYellow)
	deleteColor = color.New(color.FgMagenta)
	otherColor  = color.New(color.FgRed)
	hookColor   = color.New(color.FgCyan)
	errorColor  = color.New(color.BgRed, color.FgHiWhite)
	slowColor   = color.New(color.BgYellow, color.FgHiWhite)
)

// QueryHook prints every query with its duration, coloured by operation.
// The envName variable overrides the enabled flag: "0" disables, "2"
// also prints successful queries.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

func NewQueryHook(enabled, verbose bool) *QueryHook {
	return &QueryHook{envName: "LEDGER_SQL_LOG", enabled: enabled, verbose: verbose, writer: os.Stdout}
}

// WithWriter redirects the output, mostly for tests.
func (h *QueryHook) WithWriter(w io.Writer) *QueryHook {
	h.writer = w
	return h
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() {
		return
	}
	enabled, verbose := h.enabled, h.verbose
	if env, ok := os.LookupEnv(h.envName); ok {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}
	if !enabled {
		return
	}
	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		hookColor.Sprintf("%8s", "[BUN]"),
		fmt.Sprintf("%12s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", operationColor(event.Operation()).Sprint(event.Query),
	}
	if event.Err != nil {
		args = append(args, "\t", errorColor.Sprintf(" %s: %s ", reflect.TypeOf(event.Err).String(), event.Err.Error()))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func operationColor(operation string) *color.Color {
	switch operation {
	case "SELECT":
		return selectColor
	case "INSERT":
		return insertColor
	case "UPDATE":
		return updateColor
	case "DELETE":
		return deleteColor
	default:
		return otherColor
	}
}

// SlowQueryHook warns when a query takes longer than slowTime.
type SlowQueryHook struct {
	slowTime time.Duration
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func NewSlowQueryHook(slowTime time.Duration) *SlowQueryHook {
	return &SlowQueryHook{slowTime: slowTime}
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() || event.Err != nil {
		return
	}
	if duration := time.Since(event.StartTime); duration > h.slowTime {
		logger.WithFields(logrus.Fields{
			"duration":       duration.Round(time.Microsecond),
			"slow_threshold": h.slowTime,
			"query":          event.Query,
		}).Warn(slowColor.Sprint(" slow query "))
	}
}
