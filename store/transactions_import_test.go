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

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/models"
)

func newImport(t *testing.T, f *fixture, imports *TransactionsImportStore) *models.TransactionsImport {
	t.Helper()
	ti, err := imports.Create(f.ctx, &models.TransactionsImport{
		CollectiveID: 1, Source: "Bank of Test", Name: "March statement", Type: models.TransactionsImportCSV,
	})
	if err != nil {
		t.Fatal(err)
	}
	return ti
}

func importRow(sourceID string, amount int64) *models.TransactionsImportRow {
	return &models.TransactionsImportRow{
		SourceID: sourceID, Amount: amount, Currency: "eur",
		Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Description: "wire " + sourceID,
	}
}

func TestImportLock(t *testing.T) {
	f := newFixture(t)
	imports := NewTransactionsImportStore(f.db)
	ti := newImport(t, f, imports)

	token, err := imports.Lock(f.ctx, ti.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := imports.Lock(f.ctx, ti.ID); !errors.Is(err, errs.ErrImportLocked) {
		t.Fatalf("second lock = %v", err)
	}
	if err := imports.Unlock(f.ctx, ti.ID, "not-the-token"); !errors.Is(err, errs.ErrImportLocked) {
		t.Errorf("unlock with a wrong token = %v", err)
	}
	if err := imports.Unlock(f.ctx, ti.ID, token); err != nil {
		t.Fatal(err)
	}
	if _, err := imports.Lock(f.ctx, ti.ID+100); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("locking a missing import = %v", err)
	}

	boom := errors.New("boom")
	err = imports.WithLock(f.ctx, ti.ID, func(ctx context.Context) error {
		locked, _ := imports.Get(ctx, ti.ID)
		if !locked.IsLocked() {
			t.Error("import should be locked inside WithLock")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("WithLock = %v", err)
	}
	released, _ := imports.Get(f.ctx, ti.ID)
	if released.IsLocked() {
		t.Error("lock not released after a failing callback")
	}
}

func TestImportRows(t *testing.T) {
	f := newFixture(t)
	imports := NewTransactionsImportStore(f.db)
	ti := newImport(t, f, imports)

	n, err := imports.AddRows(f.ctx, ti.ID, []*models.TransactionsImportRow{
		importRow("tx-1", 1000), importRow("tx-2", -250), importRow("tx-2", -250),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
	n, err = imports.AddRows(f.ctx, ti.ID, []*models.TransactionsImportRow{importRow("tx-2", -250), importRow("tx-3", 75)})
	if err != nil || n != 1 {
		t.Fatalf("re-import wrote %d rows, %v", n, err)
	}

	rows, err := imports.ListRows(f.ctx, ti.ID)
	if err != nil || len(rows) != 3 {
		t.Fatalf("rows = %v, %v", rows, err)
	}
	if rows[0].Currency != "EUR" || rows[0].Status != models.ImportRowPending {
		t.Errorf("row defaults = %+v", rows[0])
	}

	if _, err := imports.LinkToExpense(f.ctx, rows[0].ID, 42); err != nil {
		t.Fatal(err)
	}
	if _, err := imports.Dismiss(f.ctx, rows[0].ID); !errs.IsInvariant(err) {
		t.Errorf("dismissing a linked row = %v", err)
	}
	if _, err := imports.Dismiss(f.ctx, rows[1].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := imports.PutOnHold(f.ctx, rows[2].ID); err != nil {
		t.Fatal(err)
	}

	stats, err := imports.Stats(f.ctx, ti.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := models.ImportStats{Total: 3, Linked: 1, Ignored: 1, OnHold: 1}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
	pending, _ := imports.ListRows(f.ctx, ti.ID, models.ImportRowPending)
	if len(pending) != 0 {
		t.Errorf("pending rows = %v", pending)
	}
}
