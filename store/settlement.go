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

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/types"
)

// SettlementStore tracks the debts hosts owe the platform. Settlements are
// addressed by their (TransactionGroup, kind) key only.
type SettlementStore struct {
	db          bun.IDB
	settlements repository.Repository[models.TransactionSettlement]
	collectives repository.Repository[models.Collective]
}

// NewSettlementStore returns a SettlementStore on db.
func NewSettlementStore(db bun.IDB) *SettlementStore {
	return &SettlementStore{
		db:          db,
		settlements: repository.NewRepository[models.TransactionSettlement](db),
		collectives: repository.NewRepository[models.Collective](db),
	}
}

// CreateForTransaction records the settlement of debt transaction t. An
// existing settlement for the same key is kept and returned unchanged.
func (s *SettlementStore) CreateForTransaction(ctx context.Context, t *models.Transaction, status models.SettlementStatus) (*models.TransactionSettlement, error) {
	ts := &models.TransactionSettlement{
		TransactionGroup: t.TransactionGroup,
		Kind:             t.Kind,
		Status:           status,
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	n, err := s.settlements.CreateIgnore(ctx, ts)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return s.Get(ctx, ts.Key())
	}
	return ts, nil
}

// Get returns the settlement identified by key.
func (s *SettlementStore) Get(ctx context.Context, key models.SettlementKey) (*models.TransactionSettlement, error) {
	ts := new(models.TransactionSettlement)
	err := s.settlements.NewSelect().Model(ts).
		Where("ts.transaction_group = ?", key.TransactionGroup.String()).
		Where("ts.kind = ?", key.Kind).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, repositoryError(err)
	}
	return ts, nil
}

// UpdateTransactionsSettlementStatus moves every settlement in keys to
// status in one statement. A non zero expenseID links them to the
// reimbursement expense.
func (s *SettlementStore) UpdateTransactionsSettlementStatus(ctx context.Context, keys []models.SettlementKey, status models.SettlementStatus, expenseID int64) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if err := validateSettlementStatus(status); err != nil {
		return 0, err
	}
	q := s.db.NewUpdate().Model((*models.TransactionSettlement)(nil)).
		Set("settlement_status = ?", status).
		Set("updated_at = ?", models.Now())
	if expenseID != 0 {
		q = q.Set("expense_id = ?", expenseID)
	}
	q = q.WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
		for _, key := range keys {
			key := key
			q = q.WhereGroup(" OR ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
				return q.Where("transaction_group = ?", key.TransactionGroup.String()).Where("kind = ?", key.Kind)
			})
		}
		return q
	})
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func validateSettlementStatus(status models.SettlementStatus) error {
	switch status {
	case models.SettlementOwed, models.SettlementInvoiced, models.SettlementSettled:
		return nil
	}
	return errs.NewValidationError("TransactionSettlement", "settlementStatus", "must be one of OWED INVOICED SETTLED")
}

// MarkExpenseAsSettled settles every debt invoiced on expenseID. Calling it
// again is a no-op.
func (s *SettlementStore) MarkExpenseAsSettled(ctx context.Context, expenseID int64) error {
	_, err := s.db.NewUpdate().Model((*models.TransactionSettlement)(nil)).
		Set("settlement_status = ?", models.SettlementSettled).
		Set("updated_at = ?", models.Now()).
		Where("expense_id = ?", expenseID).
		Where("settlement_status <> ?", models.SettlementSettled).
		Exec(ctx)
	return err
}

// AttachStatusesToTransactions fills SettlementStatus on the debt
// transactions of txs that have a settlement.
func (s *SettlementStore) AttachStatusesToTransactions(ctx context.Context, txs []*models.Transaction) error {
	var debts []*models.Transaction
	for _, t := range txs {
		if t.IsDebt && isSettlementKind(t.Kind) {
			debts = append(debts, t)
		}
	}
	if len(debts) == 0 {
		return nil
	}
	var settlements []*models.TransactionSettlement
	err := s.settlements.NewSelect().Model(&settlements).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, t := range debts {
				t := t
				q = q.WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.Where("ts.transaction_group = ?", t.TransactionGroup.String()).Where("ts.kind = ?", t.Kind)
				})
			}
			return q
		}).
		Scan(ctx)
	if err != nil {
		return err
	}
	byKey := make(map[models.SettlementKey]models.SettlementStatus, len(settlements))
	for _, ts := range settlements {
		byKey[ts.Key()] = ts.Status
	}
	for _, t := range debts {
		t.SettlementStatus = byKey[models.SettlementKey{TransactionGroup: t.TransactionGroup, Kind: t.Kind}]
	}
	return nil
}

func isSettlementKind(kind models.TransactionKind) bool {
	return types.OneOf(kind, models.SettlementKinds...)
}

// GetHostDebts returns the DEBIT side of the debts of hostID whose
// settlement is in status, with SettlementStatus filled.
func (s *SettlementStore) GetHostDebts(ctx context.Context, hostID int64, status models.SettlementStatus) ([]*models.Transaction, error) {
	var out []*models.Transaction
	err := s.db.NewSelect().Model(&out).
		Join("JOIN transaction_settlements AS ts ON ts.transaction_group = t.transaction_group AND ts.kind = t.kind").
		Where("ts.deleted_at IS NULL").
		Where("t.host_collective_id = ?", hostID).
		Where("t.is_debt = ?", true).
		Where("t.type = ?", models.TransactionDebit).
		Where("t.kind IN (?)", bun.In(models.SettlementKinds)).
		Where("ts.settlement_status = ?", status).
		Order("t.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range out {
		t.SettlementStatus = status
	}
	return out, nil
}

// GetAccountsWithOwedSettlements returns the hosts that owe at least one
// settlement.
func (s *SettlementStore) GetAccountsWithOwedSettlements(ctx context.Context) ([]*models.Collective, error) {
	owing := s.db.NewSelect().
		TableExpr("transactions AS t").
		Column("t.host_collective_id").
		Join("JOIN transaction_settlements AS ts ON ts.transaction_group = t.transaction_group AND ts.kind = t.kind").
		Where("ts.settlement_status = ?", models.SettlementOwed).
		Where("ts.deleted_at IS NULL").
		Where("t.deleted_at IS NULL").
		Where("t.is_debt = ?", true).
		Where("t.host_collective_id IS NOT NULL")
	var out []*models.Collective
	err := s.collectives.NewSelect().Model(&out).
		Where("c.id IN (?)", owing).
		Order("c.id ASC").
		Scan(ctx)
	return out, err
}

// GetSettlementsByExpenseId returns the settlements invoiced or settled
// by expenseID, oldest first.
func (s *SettlementStore) GetSettlementsByExpenseId(ctx context.Context, expenseID int64) ([]*models.TransactionSettlement, error) {
	var out []*models.TransactionSettlement
	err := s.settlements.NewSelect().Model(&out).
		Where("ts.expense_id = ?", expenseID).
		Order("ts.created_at ASC").
		Scan(ctx)
	return out, err
}
