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

package models

import (
	"testing"
	"time"
)

func TestIntervalStart(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		interval RecurringInterval
		want     time.Time
	}{
		{IntervalDay, time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC)},
		{IntervalWeek, time.Date(2024, 3, 24, 12, 0, 0, 0, time.UTC)},
		{IntervalMonth, now.AddDate(0, -1, 0)},
		{IntervalQuarter, time.Date(2023, 12, 31, 12, 0, 0, 0, time.UTC)},
		{IntervalYear, time.Date(2023, 3, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.interval), func(t *testing.T) {
			got, err := IntervalStart(tt.interval, now)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("IntervalStart(%s) = %v, want %v", tt.interval, got, tt.want)
			}
		})
	}
	if _, err := IntervalStart("fortnight", now); err == nil {
		t.Error("unknown interval should fail")
	}
}

func TestRecurringExpenseIsDue(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		r    RecurringExpense
		due  bool
	}{
		{"never drafted", RecurringExpense{Interval: IntervalMonth}, true},
		{"drafted exactly one interval ago", RecurringExpense{Interval: IntervalMonth, LastDraftedAt: now.AddDate(0, -1, 0)}, true},
		{"drafted recently", RecurringExpense{Interval: IntervalMonth, LastDraftedAt: now.AddDate(0, 0, -10)}, false},
		{"weekly overdue", RecurringExpense{Interval: IntervalWeek, LastDraftedAt: now.AddDate(0, 0, -8)}, true},
		{"ended", RecurringExpense{Interval: IntervalDay, LastDraftedAt: now.AddDate(0, 0, -3), EndsAt: now}, false},
		{"ends later", RecurringExpense{Interval: IntervalDay, LastDraftedAt: now.AddDate(0, 0, -3), EndsAt: now.AddDate(0, 1, 0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.IsDue(now); got != tt.due {
				t.Errorf("IsDue = %v, want %v", got, tt.due)
			}
		})
	}
}
