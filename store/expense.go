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
	"time"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
)

type ExpenseStore struct {
	db            bun.IDB
	expenses      repository.Repository[models.Expense]
	items         repository.Repository[models.ExpenseItem]
	files         repository.Repository[models.ExpenseAttachedFile]
	payoutMethods repository.Repository[models.PayoutMethod]
}

// NewExpenseStore returns an ExpenseStore on db.
func NewExpenseStore(db bun.IDB) *ExpenseStore {
	return &ExpenseStore{
		db:            db,
		expenses:      repository.NewRepository[models.Expense](db),
		items:         repository.NewRepository[models.ExpenseItem](db),
		files:         repository.NewRepository[models.ExpenseAttachedFile](db),
		payoutMethods: repository.NewRepository[models.PayoutMethod](db),
	}
}

// Create inserts the expense with its items and attached files. When items
// are given the expense amount is their sum.
func (s *ExpenseStore) Create(ctx context.Context, e *models.Expense, items []*models.ExpenseItem, files []*models.ExpenseAttachedFile) (*models.Expense, []events.Event, error) {
	if len(items) > 0 {
		e.Amount = models.SumItems(items)
	}
	if e.Status == "" {
		e.Status = models.ExpenseStatusPending
	}
	if e.FeesPayer == "" {
		e.FeesPayer = models.FeesPayerDefault
	}
	if e.IncurredAt.IsZero() {
		e.IncurredAt = models.Now()
	}
	e.IncurredAt = e.IncurredAt.UTC()
	e.Tags = models.NormalizeTags(e.Tags)
	for _, item := range items {
		if item.IncurredAt.IsZero() {
			item.IncurredAt = e.IncurredAt
		}
		item.IncurredAt = item.IncurredAt.UTC()
		item.CreatedByUserID = e.UserID
	}
	if err := e.Validate(); err != nil {
		return nil, nil, err
	}
	if err := validateAll(items...); err != nil {
		return nil, nil, err
	}
	if err := validateAll(files...); err != nil {
		return nil, nil, err
	}

	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if err := s.expenses.Tx(tx).Create(ctx, e); err != nil {
			return fmt.Errorf("failed to create expense: %w", err)
		}
		for _, item := range items {
			item.ExpenseID = e.ID
		}
		for _, f := range files {
			f.ExpenseID = e.ID
			f.CreatedByUserID = e.UserID
		}
		if err := s.items.Tx(tx).Create(ctx, items...); err != nil {
			return fmt.Errorf("failed to create expense items: %w", err)
		}
		return s.files.Tx(tx).Create(ctx, files...)
	})
	if err != nil {
		return nil, nil, err
	}
	ev, err := s.activity(ctx, s.db, events.CollectiveExpenseCreated, e, items)
	if err != nil {
		return nil, nil, err
	}
	return e, []events.Event{ev}, nil
}

// Get returns the expense with id.
func (s *ExpenseStore) Get(ctx context.Context, id int64) (*models.Expense, error) {
	return s.expenses.GetOne(ctx, id)
}

// GetItems returns the items of expenseID in insertion order.
func (s *ExpenseStore) GetItems(ctx context.Context, expenseID int64) ([]*models.ExpenseItem, error) {
	return s.listItems(ctx, s.items, expenseID)
}

func (s *ExpenseStore) listItems(ctx context.Context, repo repository.Repository[models.ExpenseItem], expenseID int64) ([]*models.ExpenseItem, error) {
	var out []*models.ExpenseItem
	err := repo.NewSelect().Model(&out).Where("ei.expense_id = ?", expenseID).Order("ei.id ASC").Scan(ctx)
	return out, err
}

// GetAttachedFiles returns the files attached to expenseID in insertion order.
func (s *ExpenseStore) GetAttachedFiles(ctx context.Context, expenseID int64) ([]*models.ExpenseAttachedFile, error) {
	var out []*models.ExpenseAttachedFile
	err := s.files.NewSelect().Model(&out).Where("eaf.expense_id = ?", expenseID).Order("eaf.id ASC").Scan(ctx)
	return out, err
}

// ListForCollective returns the expenses submitted to collectiveID, newest
// first, restricted to statuses when any are given.
func (s *ExpenseStore) ListForCollective(ctx context.Context, collectiveID int64, statuses ...models.ExpenseStatus) ([]*models.Expense, error) {
	var out []*models.Expense
	q := s.expenses.NewSelect().Model(&out).Where("e.collective_id = ?", collectiveID)
	if len(statuses) > 0 {
		q = q.Where("e.status IN (?)", bun.In(statuses))
	}
	err := q.Order("e.created_at DESC", "e.id DESC").Scan(ctx)
	return out, err
}

// SetApproved approves the expense. PAID expenses are refused.
func (s *ExpenseStore) SetApproved(ctx context.Context, id, lastEditedByID int64) (*models.Expense, []events.Event, error) {
	return s.setStatus(ctx, id, lastEditedByID, models.ExpenseStatusApproved, events.CollectiveExpenseApproved)
}

// SetRejected rejects the expense. PAID expenses are refused.
func (s *ExpenseStore) SetRejected(ctx context.Context, id, lastEditedByID int64) (*models.Expense, []events.Event, error) {
	return s.setStatus(ctx, id, lastEditedByID, models.ExpenseStatusRejected, events.CollectiveExpenseRejected)
}

// SetPaid marks the expense as paid.
func (s *ExpenseStore) SetPaid(ctx context.Context, id, lastEditedByID int64) (*models.Expense, []events.Event, error) {
	return s.setStatus(ctx, id, lastEditedByID, models.ExpenseStatusPaid, events.CollectiveExpensePaid)
}

// SetProcessing marks the payment of the expense as in flight.
func (s *ExpenseStore) SetProcessing(ctx context.Context, id, lastEditedByID int64) (*models.Expense, []events.Event, error) {
	return s.setStatus(ctx, id, lastEditedByID, models.ExpenseStatusProcessing, events.CollectiveExpenseProcessing)
}

// SetError records a failed payment.
func (s *ExpenseStore) SetError(ctx context.Context, id, lastEditedByID int64) (*models.Expense, []events.Event, error) {
	return s.setStatus(ctx, id, lastEditedByID, models.ExpenseStatusError, events.CollectiveExpenseError)
}

// MarkAsSpam flags the expense as spam.
func (s *ExpenseStore) MarkAsSpam(ctx context.Context, id, lastEditedByID int64) (*models.Expense, []events.Event, error) {
	return s.setStatus(ctx, id, lastEditedByID, models.ExpenseStatusSpam, events.CollectiveExpenseMarkedAsSpam)
}

// Cancel withdraws the expense. PAID expenses are refused.
func (s *ExpenseStore) Cancel(ctx context.Context, id, lastEditedByID int64) (*models.Expense, []events.Event, error) {
	return s.setStatus(ctx, id, lastEditedByID, models.ExpenseStatusCanceled, events.CollectiveExpenseCanceled)
}

// setStatus moves the expense to status. A refused transition leaves the
// stored row untouched.
func (s *ExpenseStore) setStatus(ctx context.Context, id, lastEditedByID int64, status models.ExpenseStatus, eventType events.Type) (*models.Expense, []events.Event, error) {
	var (
		expense *models.Expense
		ev      events.Event
	)
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		e := new(models.Expense)
		q := tx.NewSelect().Model(e).Where("e.id = ?", id)
		if err := repository.ForUpdate(tx, q).Scan(ctx); err != nil {
			return repositoryError(err)
		}
		if err := e.CheckTransition(status); err != nil {
			return err
		}
		e.Status = status
		if lastEditedByID != 0 {
			e.LastEditedByID = lastEditedByID
		}
		if err := s.expenses.Tx(tx).Update(ctx, e, "status", "last_edited_by_id"); err != nil {
			return err
		}
		items, err := s.listItems(ctx, s.items.Tx(tx), e.ID)
		if err != nil {
			return err
		}
		if ev, err = s.activity(ctx, tx, eventType, e, items); err != nil {
			return err
		}
		expense = e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return expense, []events.Event{ev}, nil
}

// activity builds the event snapshot: the expense, its payout method and
// its items.
func (s *ExpenseStore) activity(ctx context.Context, db bun.IDB, t events.Type, e *models.Expense, items []*models.ExpenseItem) (events.Event, error) {
	var payoutMethod *models.PayoutMethod
	if e.PayoutMethodID != 0 {
		pm, err := s.payoutMethods.Tx(db).GetOne(ctx, e.PayoutMethodID)
		if err != nil && !repository.IsNotFound(err) {
			return events.Event{}, err
		}
		payoutMethod = pm
	}
	return events.Event{
		Type:             t,
		CollectiveID:     e.CollectiveID,
		FromCollectiveID: e.FromCollectiveID,
		HostCollectiveID: e.HostCollectiveID,
		UserID:           e.UserID,
		ExpenseID:        e.ID,
		Data:             e.Activity(payoutMethod, items),
	}, nil
}

// ReplaceItems applies the difference between the stored items and incoming
// and recomputes the expense amount.
func (s *ExpenseStore) ReplaceItems(ctx context.Context, expenseID int64, incoming []*models.ExpenseItem, editedByUserID int64) (*models.Expense, error) {
	for _, item := range incoming {
		item.ExpenseID = expenseID
		item.IncurredAt = item.IncurredAt.UTC()
		if item.CreatedByUserID == 0 {
			item.CreatedByUserID = editedByUserID
		}
	}
	if err := validateAll(incoming...); err != nil {
		return nil, err
	}
	var expense *models.Expense
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		expenses, items := s.expenses.Tx(tx), s.items.Tx(tx)
		e, err := expenses.GetOne(ctx, expenseID)
		if err != nil {
			return err
		}
		if e.Status == models.ExpenseStatusPaid {
			return errs.Invariant("Can't edit the items of an expense that is PAID")
		}
		existing, err := s.listItems(ctx, items, expenseID)
		if err != nil {
			return err
		}
		diff, err := models.DiffItems(existing, incoming)
		if err != nil {
			return err
		}
		if err := items.Create(ctx, diff.New...); err != nil {
			return err
		}
		for _, item := range diff.Updated {
			if err := items.Update(ctx, item, "amount", "url", "description", "incurred_at"); err != nil {
				return err
			}
		}
		for _, item := range diff.Removed {
			if err := items.Delete(ctx, item.ID); err != nil {
				return err
			}
		}
		e.Amount = models.SumItems(incoming)
		e.LastEditedByID = editedByUserID
		if err := e.Validate(); err != nil {
			return err
		}
		if err := expenses.Update(ctx, e, "amount", "last_edited_by_id"); err != nil {
			return err
		}
		expense = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// ReplaceAttachedFiles swaps the attached files of an expense for files.
func (s *ExpenseStore) ReplaceAttachedFiles(ctx context.Context, expenseID int64, files []*models.ExpenseAttachedFile) ([]*models.ExpenseAttachedFile, error) {
	for _, f := range files {
		f.ExpenseID = expenseID
	}
	if err := validateAll(files...); err != nil {
		return nil, err
	}
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		repo := s.files.Tx(tx)
		if _, err := repo.DeleteWhere(ctx, "expense_id = ?", expenseID); err != nil {
			return err
		}
		return repo.Create(ctx, files...)
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// GetMostPopularTagsForCollective ranks the tags used on the expenses of
// collectiveID.
func (s *ExpenseStore) GetMostPopularTagsForCollective(ctx context.Context, collectiveID int64, limit int) ([]models.TagCount, error) {
	var rows []*models.Expense
	err := s.expenses.NewSelect().Model(&rows).
		Column("id", "tags").
		Where("e.collective_id = ?", collectiveID).
		Where("e.status != ?", models.ExpenseStatusSpam).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	lists := make([][]string, 0, len(rows))
	for _, e := range rows {
		lists = append(lists, e.Tags)
	}
	return models.RankTags(lists, limit), nil
}

// SumPaidForPayeeInYear totals the PAID expenses fromCollectiveID incurred
// during year, optionally restricted to a host.
func (s *ExpenseStore) SumPaidForPayeeInYear(ctx context.Context, fromCollectiveID int64, year int, hostID int64) (int64, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	q := s.expenses.NewSelect().Model((*models.Expense)(nil)).
		ColumnExpr("COALESCE(SUM(e.amount), 0)").
		Where("e.from_collective_id = ?", fromCollectiveID).
		Where("e.status = ?", models.ExpenseStatusPaid).
		Where("e.incurred_at >= ?", start).
		Where("e.incurred_at < ?", start.AddDate(1, 0, 0))
	if hostID != 0 {
		q = q.Where("e.host_collective_id = ?", hostID)
	}
	var total int64
	if err := q.Scan(ctx, &total); err != nil {
		return 0, err
	}
	return total, nil
}
