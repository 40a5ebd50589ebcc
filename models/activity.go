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
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/types"
)

// Activity is the persisted record of a domain event.
type Activity struct {
	bun.BaseModel `bun:"table:activities,alias:act"`

	ID               int64            `bun:"id,pk,autoincrement" json:"id"`
	Type             string           `bun:"type,notnull" json:"type"`
	Data             types.JsonObject `bun:"data" json:"data,omitempty"`
	CollectiveID     int64            `bun:"collective_id,nullzero" json:"CollectiveId,omitempty"`
	FromCollectiveID int64            `bun:"from_collective_id,nullzero" json:"FromCollectiveId,omitempty"`
	HostCollectiveID int64            `bun:"host_collective_id,nullzero" json:"HostCollectiveId,omitempty"`
	UserID           int64            `bun:"user_id,nullzero" json:"UserId,omitempty"`
	ExpenseID        int64            `bun:"expense_id,nullzero" json:"ExpenseId,omitempty"`
	OrderID          int64            `bun:"order_id,nullzero" json:"OrderId,omitempty"`
	TransactionID    int64            `bun:"transaction_id,nullzero" json:"TransactionId,omitempty"`
	Timestamps
}

func (*Activity) Indexes() []Index {
	return []Index{
		{Name: "activities_type_idx", Columns: []string{"type"}},
		{Name: "activities_collective_id_idx", Columns: []string{"collective_id"}},
	}
}
