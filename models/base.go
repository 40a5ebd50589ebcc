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
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/database"
	"github.com/opencollective/ledger/types"
)

// Index is a secondary index created by migrations.
type Index = database.Index

// Projection is the JSON document handed to a given audience (info,
// minimal, public, activity).
type Projection = types.JsonObject

// Timestamps carries the temporal columns shared by every entity. Rows are
// "paranoid": deleting one stamps DeletedAt and hides it from queries.
type Timestamps struct {
	CreatedAt time.Time `bun:"created_at,nullzero,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull" json:"updatedAt"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deletedAt,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*Timestamps)(nil)

// BeforeAppendModel stamps created/updated times. An explicit CreatedAt is
// kept so imports can carry their original dates.
func (t *Timestamps) BeforeAppendModel(_ context.Context, query bun.Query) error {
	now := Now()
	switch query.(type) {
	case *bun.InsertQuery:
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		t.UpdatedAt = now
	}
	return nil
}

// IsDeleted reports whether the row was soft deleted.
func (t *Timestamps) IsDeleted() bool { return !t.DeletedAt.IsZero() }

// Now is the clock used for stamping rows; always UTC so stored timestamps
// compare consistently across dialects.
var Now = func() time.Time { return time.Now().UTC() }

func timeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func idOrNil(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
