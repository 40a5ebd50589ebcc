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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/types"
)

type TransactionsImportStore struct {
	db      bun.IDB
	imports repository.Repository[models.TransactionsImport]
	rows    repository.Repository[models.TransactionsImportRow]
}

// NewTransactionsImportStore returns a TransactionsImportStore on db.
func NewTransactionsImportStore(db bun.IDB) *TransactionsImportStore {
	return &TransactionsImportStore{
		db:      db,
		imports: repository.NewRepository[models.TransactionsImport](db),
		rows:    repository.NewRepository[models.TransactionsImportRow](db),
	}
}

// Create stores an unlocked import.
func (s *TransactionsImportStore) Create(ctx context.Context, ti *models.TransactionsImport) (*models.TransactionsImport, error) {
	ti.LockToken, ti.LockedAt = "", time.Time{}
	if err := ti.Validate(); err != nil {
		return nil, err
	}
	if err := s.imports.Create(ctx, ti); err != nil {
		return nil, fmt.Errorf("failed to create transactions import: %w", err)
	}
	return ti, nil
}

// Get returns the import with id.
func (s *TransactionsImportStore) Get(ctx context.Context, id int64) (*models.TransactionsImport, error) {
	return s.imports.GetOne(ctx, id)
}

// Lock takes the processing lock of import id with a compare-and-swap on
// its lock token. It fails with errs.ErrImportLocked while someone else
// holds it.
func (s *TransactionsImportStore) Lock(ctx context.Context, id int64) (string, error) {
	token := uuid.NewString()
	now := models.Now()
	res, err := s.db.NewUpdate().Model((*models.TransactionsImport)(nil)).
		Set("lock_token = ?", token).
		Set("locked_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("lock_token IS NULL").
		Exec(ctx)
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 1 {
		return token, nil
	}
	exists, err := s.imports.Exists(ctx, "timp.id = ?", id)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errs.ErrNotFound
	}
	return "", errs.ErrImportLocked
}

// Unlock releases the lock taken with token.
func (s *TransactionsImportStore) Unlock(ctx context.Context, id int64, token string) error {
	res, err := s.db.NewUpdate().Model((*models.TransactionsImport)(nil)).
		Set("lock_token = NULL").
		Set("locked_at = NULL").
		Set("updated_at = ?", models.Now()).
		Where("id = ?", id).
		Where("lock_token = ?", token).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrImportLocked
	}
	return nil
}

// WithLock runs fn while holding the lock of import id.
func (s *TransactionsImportStore) WithLock(ctx context.Context, id int64, fn func(ctx context.Context) error) (err error) {
	token, err := s.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer func() {
		if unlockErr := s.Unlock(context.WithoutCancel(ctx), id, token); unlockErr != nil {
			logger.WithError(unlockErr).WithFields(logrus.Fields{"import": id}).Error("failed to release transactions import lock")
			if err == nil {
				err = unlockErr
			}
		}
	}()
	return fn(ctx)
}

// AddRows stores rows under import importID, skipping source ids already
// imported. It returns the number of rows written.
func (s *TransactionsImportStore) AddRows(ctx context.Context, importID int64, rows []*models.TransactionsImportRow) (int64, error) {
	for _, r := range rows {
		r.TransactionsImportID = importID
		if r.Status == "" {
			r.Status = models.ImportRowPending
		}
		r.Currency = strings.ToUpper(r.Currency)
		r.Date = r.Date.UTC()
		if err := r.Validate(); err != nil {
			return 0, err
		}
	}
	var written int64
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		var known []string
		err := tx.NewSelect().Model((*models.TransactionsImportRow)(nil)).
			WhereAllWithDeleted().
			Column("tir.source_id").
			Where("tir.transactions_import_id = ?", importID).
			Scan(ctx, &known)
		if err != nil {
			return err
		}
		skip := make(map[string]struct{}, len(known))
		for _, id := range known {
			skip[id] = struct{}{}
		}
		fresh := make([]*models.TransactionsImportRow, 0, len(rows))
		for _, r := range rows {
			if _, dup := skip[r.SourceID]; dup {
				continue
			}
			skip[r.SourceID] = struct{}{}
			fresh = append(fresh, r)
		}
		written, err = s.rows.Tx(tx).CreateIgnore(ctx, fresh...)
		return err
	})
	return written, err
}

// ListRows returns the rows of importID by date, restricted to statuses
// when any are given.
func (s *TransactionsImportStore) ListRows(ctx context.Context, importID int64, statuses ...models.ImportRowStatus) ([]*models.TransactionsImportRow, error) {
	var out []*models.TransactionsImportRow
	q := s.rows.NewSelect().Model(&out).Where("tir.transactions_import_id = ?", importID)
	if len(statuses) > 0 {
		q = q.Where("tir.status IN (?)", bun.In(statuses))
	}
	err := q.Order("tir.date ASC", "tir.id ASC").Scan(ctx)
	return out, err
}

// LinkToExpense links the row to expenseID. Linked rows cannot change.
func (s *TransactionsImportStore) LinkToExpense(ctx context.Context, rowID, expenseID int64) (*models.TransactionsImportRow, error) {
	return s.setRow(ctx, rowID, func(r *models.TransactionsImportRow) {
		r.Status, r.ExpenseID = models.ImportRowLinked, expenseID
	}, "status", "expense_id")
}

// LinkToOrder links the row to orderID. Linked rows cannot change.
func (s *TransactionsImportStore) LinkToOrder(ctx context.Context, rowID, orderID int64) (*models.TransactionsImportRow, error) {
	return s.setRow(ctx, rowID, func(r *models.TransactionsImportRow) {
		r.Status, r.OrderID = models.ImportRowLinked, orderID
	}, "status", "order_id")
}

// Dismiss ignores the row. Linked rows cannot be dismissed.
func (s *TransactionsImportStore) Dismiss(ctx context.Context, rowID int64) (*models.TransactionsImportRow, error) {
	return s.setRow(ctx, rowID, func(r *models.TransactionsImportRow) {
		r.Status = models.ImportRowIgnored
	}, "status")
}

// PutOnHold parks the row for later review.
func (s *TransactionsImportStore) PutOnHold(ctx context.Context, rowID int64) (*models.TransactionsImportRow, error) {
	return s.setRow(ctx, rowID, func(r *models.TransactionsImportRow) {
		r.Status = models.ImportRowOnHold
	}, "status")
}

func (s *TransactionsImportStore) setRow(ctx context.Context, rowID int64, apply func(*models.TransactionsImportRow), columns ...string) (*models.TransactionsImportRow, error) {
	r, err := s.rows.GetOne(ctx, rowID)
	if err != nil {
		return nil, err
	}
	if r.Status == models.ImportRowLinked {
		return nil, errs.Invariant("Row %s is already linked", r.SourceID)
	}
	apply(r)
	if err := s.rows.Update(ctx, r, columns...); err != nil {
		return nil, err
	}
	return r, nil
}

// Stats counts the rows of importID per status.
func (s *TransactionsImportStore) Stats(ctx context.Context, importID int64) (*models.ImportStats, error) {
	var counts []struct {
		Status models.ImportRowStatus `bun:"status"`
		Count  int                    `bun:"count"`
	}
	err := s.db.NewSelect().Model((*models.TransactionsImportRow)(nil)).
		Column("tir.status").
		ColumnExpr("COUNT(*) AS count").
		Where("tir.transactions_import_id = ?", importID).
		Group("tir.status").
		Scan(ctx, &counts)
	if err != nil {
		return nil, err
	}
	stats := new(models.ImportStats)
	for _, c := range counts {
		stats.Total += c.Count
		switch c.Status {
		case models.ImportRowPending:
			stats.Pending = c.Count
		case models.ImportRowLinked:
			stats.Linked = c.Count
		case models.ImportRowIgnored:
			stats.Ignored = c.Count
		case models.ImportRowOnHold:
			stats.OnHold = c.Count
		}
	}
	return stats, nil
}

// ListForCollective returns the imports of collectiveID.
func (s *TransactionsImportStore) ListForCollective(ctx context.Context, collectiveID int64) ([]*models.TransactionsImport, error) {
	return s.imports.List(ctx, types.NewQueryFilter("timp.collective_id = ?", collectiveID), "timp.id ASC")
}
