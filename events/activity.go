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

package events

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/models"
)

// ActivityRecorder persists events as Activity rows.
type ActivityRecorder struct {
	db bun.IDB
}

func NewActivityRecorder(db bun.IDB) *ActivityRecorder {
	return &ActivityRecorder{db: db}
}

func (r *ActivityRecorder) Dispatch(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	activities := make([]*models.Activity, 0, len(events))
	for _, e := range events {
		activities = append(activities, ToActivity(e))
	}
	if _, err := r.db.NewInsert().Model(&activities).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record activities: %w", err)
	}
	return nil
}

// ToActivity maps an event onto its persisted form.
func ToActivity(e Event) *models.Activity {
	return &models.Activity{
		Type:             string(e.Type),
		Data:             e.Data,
		CollectiveID:     e.CollectiveID,
		FromCollectiveID: e.FromCollectiveID,
		HostCollectiveID: e.HostCollectiveID,
		UserID:           e.UserID,
		ExpenseID:        e.ExpenseID,
		OrderID:          e.OrderID,
		TransactionID:    e.TransactionID,
	}
}
