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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/validation"
)

type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

type TransactionKind string

const (
	KindContribution        TransactionKind = "CONTRIBUTION"
	KindExpense             TransactionKind = "EXPENSE"
	KindAddedFunds          TransactionKind = "ADDED_FUNDS"
	KindPlatformTip         TransactionKind = "PLATFORM_TIP"
	KindPlatformTipDebt     TransactionKind = "PLATFORM_TIP_DEBT"
	KindHostFee             TransactionKind = "HOST_FEE"
	KindHostFeeShare        TransactionKind = "HOST_FEE_SHARE"
	KindHostFeeShareDebt    TransactionKind = "HOST_FEE_SHARE_DEBT"
	KindPaymentProcessorFee TransactionKind = "PAYMENT_PROCESSOR_FEE"
	KindBalanceTransfer     TransactionKind = "BALANCE_TRANSFER"
	KindTax                 TransactionKind = "TAX"
)

// SettlementKinds are the debt kinds a host settles with the platform.
var SettlementKinds = []TransactionKind{KindPlatformTipDebt, KindHostFeeShareDebt}

// Transaction is one side of a double entry. A CREDIT on CollectiveID from
// FromCollectiveID is mirrored by a DEBIT on FromCollectiveID sharing the
// same TransactionGroup.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID                                int64            `bun:"id,pk,autoincrement" json:"id"`
	UUID                              uuid.UUID        `bun:"uuid,type:varchar(36),notnull,unique" json:"uuid"`
	Type                              TransactionType  `bun:"type,notnull" json:"type" validate:"required,oneof=CREDIT DEBIT"`
	Kind                              TransactionKind  `bun:"kind,notnull" json:"kind" validate:"required,oneof=CONTRIBUTION EXPENSE ADDED_FUNDS PLATFORM_TIP PLATFORM_TIP_DEBT HOST_FEE HOST_FEE_SHARE HOST_FEE_SHARE_DEBT PAYMENT_PROCESSOR_FEE BALANCE_TRANSFER TAX"`
	TransactionGroup                  uuid.UUID        `bun:"transaction_group,type:varchar(36),notnull" json:"TransactionGroup"`
	Description                       string           `bun:"description" json:"description,omitempty" validate:"max=255"`
	Amount                            int64            `bun:"amount,notnull" json:"amount"`
	Currency                          string           `bun:"currency,notnull" json:"currency" validate:"required,len=3,uppercase"`
	AmountInHostCurrency              int64            `bun:"amount_in_host_currency,notnull" json:"amountInHostCurrency"`
	HostCurrency                      string           `bun:"host_currency" json:"hostCurrency,omitempty" validate:"omitempty,len=3,uppercase"`
	HostCurrencyFxRate                decimal.Decimal  `bun:"host_currency_fx_rate,type:numeric,notnull" json:"hostCurrencyFxRate"`
	HostFeeInHostCurrency             int64            `bun:"host_fee_in_host_currency" json:"hostFeeInHostCurrency"`
	PlatformFeeInHostCurrency         int64            `bun:"platform_fee_in_host_currency" json:"platformFeeInHostCurrency"`
	PaymentProcessorFeeInHostCurrency int64            `bun:"payment_processor_fee_in_host_currency" json:"paymentProcessorFeeInHostCurrency"`
	NetAmountInCollectiveCurrency     int64            `bun:"net_amount_in_collective_currency,notnull" json:"netAmountInCollectiveCurrency"`
	CollectiveID                      int64            `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	FromCollectiveID                  int64            `bun:"from_collective_id,notnull" json:"FromCollectiveId" validate:"required"`
	HostCollectiveID                  int64            `bun:"host_collective_id,nullzero" json:"HostCollectiveId,omitempty"`
	OrderID                           int64            `bun:"order_id,nullzero" json:"OrderId,omitempty"`
	ExpenseID                         int64            `bun:"expense_id,nullzero" json:"ExpenseId,omitempty"`
	CreatedByUserID                   int64            `bun:"created_by_user_id,nullzero" json:"CreatedByUserId,omitempty"`
	IsDebt                            bool             `bun:"is_debt,notnull" json:"isDebt"`
	IsRefund                          bool             `bun:"is_refund,notnull" json:"isRefund"`
	ClearedAt                         time.Time        `bun:"cleared_at,nullzero" json:"clearedAt,omitempty"`
	Data                              types.JsonObject `bun:"data" json:"data,omitempty"`
	Timestamps

	// SettlementStatus is filled by AttachStatusesToTransactions; it is not
	// a column.
	SettlementStatus SettlementStatus `bun:"-" json:"settlementStatus,omitempty"`
}

func (t *Transaction) Validate() error {
	return validation.Struct("Transaction", t)
}

// Opposite builds the mirrored DEBIT (or CREDIT) of the same group: the
// parties are swapped and the amounts negated.
func (t *Transaction) Opposite() *Transaction {
	o := *t
	o.ID = 0
	o.UUID = uuid.New()
	o.Timestamps = Timestamps{}
	o.SettlementStatus = ""
	if t.Type == TransactionCredit {
		o.Type = TransactionDebit
	} else {
		o.Type = TransactionCredit
	}
	o.CollectiveID, o.FromCollectiveID = t.FromCollectiveID, t.CollectiveID
	o.Amount = -t.Amount
	o.AmountInHostCurrency = -t.AmountInHostCurrency
	o.NetAmountInCollectiveCurrency = -t.NetAmountInCollectiveCurrency
	o.Data = t.Data.Clone()
	return &o
}

func (t *Transaction) Info() Projection {
	p := Projection{
		"id":                            t.ID,
		"uuid":                          t.UUID.String(),
		"type":                          t.Type,
		"kind":                          t.Kind,
		"TransactionGroup":              t.TransactionGroup.String(),
		"amount":                        t.Amount,
		"currency":                      t.Currency,
		"amountInHostCurrency":          t.AmountInHostCurrency,
		"hostCurrency":                  t.HostCurrency,
		"hostCurrencyFxRate":            t.HostCurrencyFxRate.String(),
		"netAmountInCollectiveCurrency": t.NetAmountInCollectiveCurrency,
		"CollectiveId":                  t.CollectiveID,
		"FromCollectiveId":              t.FromCollectiveID,
		"HostCollectiveId":              idOrNil(t.HostCollectiveID),
		"isDebt":                        t.IsDebt,
		"isRefund":                      t.IsRefund,
		"createdAt":                     t.CreatedAt,
	}
	if t.SettlementStatus != "" {
		p["settlementStatus"] = t.SettlementStatus
	}
	return p
}

func (*Transaction) Indexes() []Index {
	return []Index{
		{Name: "transactions_group_kind_idx", Columns: []string{"transaction_group", "kind"}},
		{Name: "transactions_collective_id_idx", Columns: []string{"collective_id"}},
		{Name: "transactions_host_collective_id_idx", Columns: []string{"host_collective_id"}},
		{Name: "transactions_expense_id_idx", Columns: []string{"expense_id"}},
	}
}

type SettlementStatus string

const (
	SettlementOwed     SettlementStatus = "OWED"
	SettlementInvoiced SettlementStatus = "INVOICED"
	SettlementSettled  SettlementStatus = "SETTLED"
)

// SettlementKey identifies a settlement: there is no surrogate id.
type SettlementKey struct {
	TransactionGroup uuid.UUID
	Kind             TransactionKind
}

// TransactionSettlement tracks whether a host debt is owed, invoiced on a
// reimbursement expense, or settled.
type TransactionSettlement struct {
	bun.BaseModel `bun:"table:transaction_settlements,alias:ts"`

	TransactionGroup uuid.UUID        `bun:"transaction_group,pk,type:varchar(36)" json:"TransactionGroup"`
	Kind             TransactionKind  `bun:"kind,pk" json:"kind" validate:"required,oneof=PLATFORM_TIP_DEBT HOST_FEE_SHARE_DEBT"`
	Status           SettlementStatus `bun:"settlement_status,notnull" json:"settlementStatus" validate:"required,oneof=OWED INVOICED SETTLED"`
	ExpenseID        int64            `bun:"expense_id,nullzero" json:"ExpenseId,omitempty"`
	Timestamps
}

func (s *TransactionSettlement) Validate() error {
	return validation.Struct("TransactionSettlement", s)
}

func (s *TransactionSettlement) Key() SettlementKey {
	return SettlementKey{TransactionGroup: s.TransactionGroup, Kind: s.Kind}
}

func (*TransactionSettlement) Indexes() []Index {
	return []Index{{Name: "transaction_settlements_expense_id_idx", Columns: []string{"expense_id"}}}
}
