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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/types"
)

type TransactionStore struct {
	db           bun.IDB
	transactions repository.Repository[models.Transaction]
}

// NewTransactionStore returns a TransactionStore on db.
func NewTransactionStore(db bun.IDB) *TransactionStore {
	return &TransactionStore{db: db, transactions: repository.NewRepository[models.Transaction](db)}
}

// CreateDoubleEntry inserts credit and its mirrored DEBIT in the same
// transaction group. The credit is returned first.
func (s *TransactionStore) CreateDoubleEntry(ctx context.Context, credit *models.Transaction) ([]*models.Transaction, error) {
	if credit.Type == "" {
		credit.Type = models.TransactionCredit
	}
	if credit.Type != models.TransactionCredit {
		return nil, errs.Invariant("Double entries must be created from the CREDIT side")
	}
	if credit.UUID == uuid.Nil {
		credit.UUID = uuid.New()
	}
	if credit.TransactionGroup == uuid.Nil {
		credit.TransactionGroup = uuid.New()
	}
	credit.Currency = strings.ToUpper(credit.Currency)
	credit.HostCurrency = strings.ToUpper(credit.HostCurrency)
	if credit.HostCurrencyFxRate.IsZero() {
		credit.HostCurrencyFxRate = decimal.NewFromInt(1)
	}
	if credit.AmountInHostCurrency == 0 {
		credit.AmountInHostCurrency = credit.HostCurrencyFxRate.Mul(decimal.NewFromInt(credit.Amount)).Round(0).IntPart()
	}
	if credit.NetAmountInCollectiveCurrency == 0 {
		credit.NetAmountInCollectiveCurrency = credit.Amount
	}
	debit := credit.Opposite()
	if err := validateAll(credit, debit); err != nil {
		return nil, err
	}
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if err := s.transactions.Tx(tx).Create(ctx, credit, debit); err != nil {
			return fmt.Errorf("failed to create transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []*models.Transaction{credit, debit}, nil
}

// Get returns the transaction with id.
func (s *TransactionStore) Get(ctx context.Context, id int64) (*models.Transaction, error) {
	return s.transactions.GetOne(ctx, id)
}

// ListByGroup returns the legs of group in insertion order.
func (s *TransactionStore) ListByGroup(ctx context.Context, group uuid.UUID) ([]*models.Transaction, error) {
	var out []*models.Transaction
	err := s.transactions.NewSelect().Model(&out).
		Where("t.transaction_group = ?", group.String()).
		Order("t.id ASC").
		Scan(ctx)
	return out, err
}

// BalanceForCollective sums the net amounts booked on collectiveID, in the
// collective currency.
func (s *TransactionStore) BalanceForCollective(ctx context.Context, collectiveID int64) (int64, error) {
	var balance int64
	err := s.transactions.NewSelect().Model((*models.Transaction)(nil)).
		ColumnExpr("COALESCE(SUM(t.net_amount_in_collective_currency), 0)").
		Where("t.collective_id = ?", collectiveID).
		Scan(ctx, &balance)
	return balance, err
}

// ListForCollective pages through the ledger of collectiveID, newest first.
func (s *TransactionStore) ListForCollective(ctx context.Context, collectiveID int64, offset, limit int) (*types.Collection[models.Transaction], error) {
	page := types.NewPageRequest(offset, limit,
		types.NewQueryFilter("t.collective_id = ?", collectiveID),
		"t.created_at DESC", "t.id DESC")
	return s.transactions.Page(ctx, page)
}
