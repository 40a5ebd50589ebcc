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
	"testing"

	"github.com/opencollective/ledger/database/dbtest"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/types"
)

func TestActivityRecorder(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	recorder := NewActivityRecorder(db)

	err := recorder.Dispatch(ctx,
		Event{Type: CollectiveExpensePaid, CollectiveID: 1, ExpenseID: 2, UserID: 3, Data: types.JsonObject{"amount": 500}},
		Event{Type: TaxFormRequest, CollectiveID: 4},
	)
	if err != nil {
		t.Fatal(err)
	}

	var activities []*models.Activity
	if err := db.NewSelect().Model(&activities).Order("id ASC").Scan(ctx); err != nil {
		t.Fatal(err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(activities))
	}
	first := activities[0]
	if first.Type != string(CollectiveExpensePaid) || first.ExpenseID != 2 || first.UserID != 3 {
		t.Errorf("unexpected activity %+v", first)
	}
	if first.Data["amount"] != float64(500) {
		t.Errorf("data = %v", first.Data)
	}
	if activities[1].ExpenseID != 0 {
		t.Error("missing ids should be stored as NULL")
	}
}
