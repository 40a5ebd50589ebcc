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
	"time"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/validation"
)

type TransactionsImportType string

const (
	TransactionsImportCSV    TransactionsImportType = "CSV"
	TransactionsImportManual TransactionsImportType = "MANUAL"
	TransactionsImportPlaid  TransactionsImportType = "PLAID"
)

// TransactionsImport groups bank/CSV rows a host reconciles against its
// ledger. LockToken/LockedAt hold the processing lock.
type TransactionsImport struct {
	bun.BaseModel `bun:"table:transactions_imports,alias:timp"`

	ID           int64                  `bun:"id,pk,autoincrement" json:"id"`
	CollectiveID int64                  `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	Source       string                 `bun:"source,notnull" json:"source" validate:"required,max=255"`
	Name         string                 `bun:"name,notnull" json:"name" validate:"required,max=255"`
	Type         TransactionsImportType `bun:"type,notnull" json:"type" validate:"required,oneof=CSV MANUAL PLAID"`
	CSVConfig    types.JsonObject       `bun:"csv_config" json:"csvConfig,omitempty"`
	Settings     types.JsonObject       `bun:"settings" json:"settings,omitempty"`
	Data         types.JsonObject       `bun:"data" json:"data,omitempty"`
	LockToken    string                 `bun:"lock_token,nullzero,type:varchar(36)" json:"-"`
	LockedAt     time.Time              `bun:"locked_at,nullzero" json:"lockedAt,omitempty"`
	Timestamps
}

func (ti *TransactionsImport) Validate() error {
	return validation.Struct("TransactionsImport", ti)
}

func (ti *TransactionsImport) IsLocked() bool { return ti.LockToken != "" }

func (ti *TransactionsImport) Info() Projection {
	return Projection{
		"id":           ti.ID,
		"source":       ti.Source,
		"name":         ti.Name,
		"type":         ti.Type,
		"CollectiveId": ti.CollectiveID,
		"lockedAt":     timeOrNil(ti.LockedAt),
	}
}

func (*TransactionsImport) Indexes() []Index {
	return []Index{{Name: "transactions_imports_collective_id_idx", Columns: []string{"collective_id"}}}
}

type ImportRowStatus string

const (
	ImportRowPending ImportRowStatus = "PENDING"
	ImportRowLinked  ImportRowStatus = "LINKED"
	ImportRowIgnored ImportRowStatus = "IGNORED"
	ImportRowOnHold  ImportRowStatus = "ON_HOLD"
)

var ImportRowStatuses = []ImportRowStatus{ImportRowPending, ImportRowLinked, ImportRowIgnored, ImportRowOnHold}

type TransactionsImportRow struct {
	bun.BaseModel `bun:"table:transactions_import_rows,alias:tir"`

	ID                   int64            `bun:"id,pk,autoincrement" json:"id"`
	TransactionsImportID int64            `bun:"transactions_import_id,notnull" json:"TransactionsImportId" validate:"required"`
	SourceID             string           `bun:"source_id,notnull" json:"sourceId" validate:"required,max=255"`
	Status               ImportRowStatus  `bun:"status,notnull" json:"status" validate:"required,oneof=PENDING LINKED IGNORED ON_HOLD"`
	Description          string           `bun:"description" json:"description,omitempty"`
	Date                 time.Time        `bun:"date,notnull" json:"date" validate:"required"`
	Amount               int64            `bun:"amount,notnull" json:"amount"`
	Currency             string           `bun:"currency,notnull" json:"currency" validate:"required,len=3,uppercase"`
	RawValue             types.JsonObject `bun:"raw_value" json:"rawValue,omitempty"`
	Note                 string           `bun:"note" json:"note,omitempty"`
	ExpenseID            int64            `bun:"expense_id,nullzero" json:"ExpenseId,omitempty"`
	OrderID              int64            `bun:"order_id,nullzero" json:"OrderId,omitempty"`
	Timestamps
}

func (r *TransactionsImportRow) Validate() error {
	return validation.Struct("TransactionsImportRow", r)
}

func (r *TransactionsImportRow) Info() Projection {
	return Projection{
		"id":          r.ID,
		"sourceId":    r.SourceID,
		"status":      r.Status,
		"description": r.Description,
		"date":        r.Date,
		"amount":      r.Amount,
		"currency":    r.Currency,
		"ExpenseId":   idOrNil(r.ExpenseID),
		"OrderId":     idOrNil(r.OrderID),
	}
}

func (*TransactionsImportRow) Indexes() []Index {
	return []Index{{Name: "transactions_import_rows_source_idx", Columns: []string{"transactions_import_id", "source_id"}, Unique: true}}
}

// ImportStats counts the rows of an import per status.
type ImportStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Linked  int `json:"linked"`
	Ignored int `json:"ignored"`
	OnHold  int `json:"onHold"`
}
