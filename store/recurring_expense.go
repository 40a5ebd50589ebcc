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

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
)

const draftKeyField = "draftKey"

type RecurringExpenseStore struct {
	db        bun.IDB
	recurring repository.Repository[models.RecurringExpense]
	expenses  *ExpenseStore
}

// NewRecurringExpenseStore returns a RecurringExpenseStore drafting
// through expenses.
func NewRecurringExpenseStore(db bun.IDB, expenses *ExpenseStore) *RecurringExpenseStore {
	return &RecurringExpenseStore{db: db, recurring: repository.NewRepository[models.RecurringExpense](db), expenses: expenses}
}

// CreateFromExpense starts a series from e. The expense counts as the
// first draft.
func (s *RecurringExpenseStore) CreateFromExpense(ctx context.Context, e *models.Expense, interval models.RecurringInterval, endsAt time.Time) (*models.RecurringExpense, error) {
	r := &models.RecurringExpense{
		Interval:         interval,
		CollectiveID:     e.CollectiveID,
		FromCollectiveID: e.FromCollectiveID,
		LastDraftedAt:    e.IncurredAt.UTC(),
	}
	if !endsAt.IsZero() {
		r.EndsAt = endsAt.UTC()
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if err := s.recurring.Tx(tx).Create(ctx, r); err != nil {
			return fmt.Errorf("failed to create recurring expense: %w", err)
		}
		e.RecurringExpenseID = r.ID
		return s.expenses.expenses.Tx(tx).Update(ctx, e, "recurring_expense_id")
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the recurring expense with id.
func (s *RecurringExpenseStore) Get(ctx context.Context, id int64) (*models.RecurringExpense, error) {
	return s.recurring.GetOne(ctx, id)
}

// GetRecurringExpensesDue returns the series due at now: not ended and last
// drafted at least one interval ago.
func (s *RecurringExpenseStore) GetRecurringExpensesDue(ctx context.Context, now time.Time) ([]*models.RecurringExpense, error) {
	now = now.UTC()
	var out []*models.RecurringExpense
	err := s.recurring.NewSelect().Model(&out).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("re.ends_at IS NULL").WhereOr("re.ends_at > ?", now)
		}).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("re.last_drafted_at IS NULL")
			for _, interval := range models.RecurringIntervals {
				start, _ := models.IntervalStart(interval, now)
				q = q.WhereOr("re.interval = ? AND re.last_drafted_at <= ?", interval, start)
			}
			return q
		}).
		Order("re.id ASC").
		Scan(ctx)
	return out, err
}

// CreateNextExpense drafts the next expense of the series by copying the
// latest one: same content and items, incurred now, status DRAFT.
func (s *RecurringExpenseStore) CreateNextExpense(ctx context.Context, r *models.RecurringExpense) (*models.Expense, []events.Event, error) {
	now := models.Now()
	var draft *models.Expense
	var items []*models.ExpenseItem
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		last := new(models.Expense)
		err := tx.NewSelect().Model(last).
			Where("e.recurring_expense_id = ?", r.ID).
			Order("e.created_at DESC", "e.id DESC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to load last expense of recurring expense %d: %w", r.ID, repositoryError(err))
		}
		previous, err := s.expenses.listItems(ctx, s.expenses.items.Tx(tx), last.ID)
		if err != nil {
			return err
		}

		draft = &models.Expense{
			UserID:             last.UserID,
			FromCollectiveID:   last.FromCollectiveID,
			CollectiveID:       last.CollectiveID,
			HostCollectiveID:   last.HostCollectiveID,
			PayoutMethodID:     last.PayoutMethodID,
			RecurringExpenseID: r.ID,
			Amount:             last.Amount,
			Currency:           last.Currency,
			Description:        last.Description,
			LongDescription:    last.LongDescription,
			PrivateMessage:     last.PrivateMessage,
			InvoiceInfo:        last.InvoiceInfo,
			Type:               last.Type,
			Tags:               last.Tags,
			FeesPayer:          last.FeesPayer,
			PayeeLocation:      last.PayeeLocation.Clone(),
			Status:             models.ExpenseStatusDraft,
			IncurredAt:         now,
			Data:               last.Data.Clone(),
		}
		if draft.Data == nil {
			draft.Data = models.Projection{}
		}
		draft.Data[draftKeyField] = uuid.NewString()
		if err := draft.Validate(); err != nil {
			return err
		}
		if err := s.expenses.expenses.Tx(tx).Create(ctx, draft); err != nil {
			return fmt.Errorf("failed to create draft: %w", err)
		}

		items = make([]*models.ExpenseItem, 0, len(previous))
		for _, p := range previous {
			items = append(items, &models.ExpenseItem{
				ExpenseID:       draft.ID,
				CreatedByUserID: p.CreatedByUserID,
				Amount:          p.Amount,
				URL:             p.URL,
				Description:     p.Description,
				IncurredAt:      now,
			})
		}
		if err := s.expenses.items.Tx(tx).Create(ctx, items...); err != nil {
			return err
		}

		r.LastDraftedAt = now
		return s.recurring.Tx(tx).Update(ctx, r, "last_drafted_at")
	})
	if err != nil {
		return nil, nil, err
	}
	ev, err := s.expenses.activity(ctx, s.db, events.CollectiveExpenseRecurringDraft, draft, items)
	if err != nil {
		return nil, nil, err
	}
	return draft, []events.Event{ev}, nil
}
