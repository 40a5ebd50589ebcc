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
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/validation"
)

type RecurringInterval string

const (
	IntervalDay     RecurringInterval = "day"
	IntervalWeek    RecurringInterval = "week"
	IntervalMonth   RecurringInterval = "month"
	IntervalQuarter RecurringInterval = "quarter"
	IntervalYear    RecurringInterval = "year"
)

// RecurringIntervals lists every interval a recurring expense can use.
var RecurringIntervals = []RecurringInterval{IntervalDay, IntervalWeek, IntervalMonth, IntervalQuarter, IntervalYear}

// IntervalStart returns now minus one interval: a recurring expense last
// drafted at or before this instant is due again.
func IntervalStart(interval RecurringInterval, now time.Time) (time.Time, error) {
	switch interval {
	case IntervalDay:
		return now.AddDate(0, 0, -1), nil
	case IntervalWeek:
		return now.AddDate(0, 0, -7), nil
	case IntervalMonth:
		return now.AddDate(0, -1, 0), nil
	case IntervalQuarter:
		return now.AddDate(0, -3, 0), nil
	case IntervalYear:
		return now.AddDate(-1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown recurring interval %q", interval)
	}
}

// RecurringExpense re-drafts the last expense of a series on an interval.
type RecurringExpense struct {
	bun.BaseModel `bun:"table:recurring_expenses,alias:re"`

	ID               int64             `bun:"id,pk,autoincrement" json:"id"`
	Interval         RecurringInterval `bun:"interval,notnull" json:"interval" validate:"required,oneof=day week month quarter year"`
	CollectiveID     int64             `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	FromCollectiveID int64             `bun:"from_collective_id,notnull" json:"FromCollectiveId" validate:"required"`
	LastDraftedAt    time.Time         `bun:"last_drafted_at,nullzero" json:"lastDraftedAt,omitempty"`
	EndsAt           time.Time         `bun:"ends_at,nullzero" json:"endsAt,omitempty"`
	Timestamps
}

func (r *RecurringExpense) Validate() error {
	return validation.Struct("RecurringExpense", r)
}

// IsDue reports whether a new draft should be generated at now.
func (r *RecurringExpense) IsDue(now time.Time) bool {
	if !r.EndsAt.IsZero() && !r.EndsAt.After(now) {
		return false
	}
	if r.LastDraftedAt.IsZero() {
		return true
	}
	start, err := IntervalStart(r.Interval, now)
	if err != nil {
		return false
	}
	return !r.LastDraftedAt.After(start)
}

func (r *RecurringExpense) Info() Projection {
	return Projection{
		"id":               r.ID,
		"interval":         r.Interval,
		"CollectiveId":     r.CollectiveID,
		"FromCollectiveId": r.FromCollectiveID,
		"lastDraftedAt":    timeOrNil(r.LastDraftedAt),
		"endsAt":           timeOrNil(r.EndsAt),
	}
}

func (*RecurringExpense) Indexes() []Index {
	return []Index{{Name: "recurring_expenses_last_drafted_at_idx", Columns: []string{"last_drafted_at"}}}
}
