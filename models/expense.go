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
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/validation"
)

type ExpenseStatus string

const (
	ExpenseStatusDraft        ExpenseStatus = "DRAFT"
	ExpenseStatusUnclassified ExpenseStatus = "UNCLASSIFIED"
	ExpenseStatusPending      ExpenseStatus = "PENDING"
	ExpenseStatusApproved     ExpenseStatus = "APPROVED"
	ExpenseStatusRejected     ExpenseStatus = "REJECTED"
	ExpenseStatusProcessing   ExpenseStatus = "PROCESSING"
	ExpenseStatusPaid         ExpenseStatus = "PAID"
	ExpenseStatusError        ExpenseStatus = "ERROR"
	ExpenseStatusSettlement   ExpenseStatus = "SETTLEMENT"
	ExpenseStatusCanceled     ExpenseStatus = "CANCELED"
	ExpenseStatusSpam         ExpenseStatus = "SPAM"
)

type ExpenseType string

const (
	ExpenseTypeInvoice        ExpenseType = "INVOICE"
	ExpenseTypeReceipt        ExpenseType = "RECEIPT"
	ExpenseTypeFundingRequest ExpenseType = "FUNDING_REQUEST"
	ExpenseTypeGrant          ExpenseType = "GRANT"
	ExpenseTypeUnclassified   ExpenseType = "UNCLASSIFIED"
	ExpenseTypeSettlement     ExpenseType = "SETTLEMENT"
	ExpenseTypeCharge         ExpenseType = "CHARGE"
)

type FeesPayer string

const (
	FeesPayerDefault FeesPayer = "DEFAULT"
	FeesPayerPayee   FeesPayer = "PAYEE"
)

// Expense is a reimbursement claim submitted by FromCollectiveID against
// CollectiveID's balance. Amounts are in cents of Currency.
type Expense struct {
	bun.BaseModel `bun:"table:expenses,alias:e"`

	ID                 int64            `bun:"id,pk,autoincrement" json:"id"`
	UserID             int64            `bun:"user_id,notnull" json:"UserId" validate:"required"`
	FromCollectiveID   int64            `bun:"from_collective_id,notnull" json:"FromCollectiveId" validate:"required"`
	CollectiveID       int64            `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	HostCollectiveID   int64            `bun:"host_collective_id,nullzero" json:"HostCollectiveId,omitempty"`
	PayoutMethodID     int64            `bun:"payout_method_id,nullzero" json:"PayoutMethodId,omitempty"`
	VirtualCardID      string           `bun:"virtual_card_id,nullzero" json:"VirtualCardId,omitempty"`
	RecurringExpenseID int64            `bun:"recurring_expense_id,nullzero" json:"RecurringExpenseId,omitempty"`
	LastEditedByID     int64            `bun:"last_edited_by_id,nullzero" json:"lastEditedById,omitempty"`
	Amount             int64            `bun:"amount,notnull" json:"amount" validate:"min=1"`
	Currency           string           `bun:"currency,notnull" json:"currency" validate:"required,len=3,uppercase"`
	Description        string           `bun:"description,notnull" json:"description" validate:"required,max=255"`
	LongDescription    string           `bun:"long_description" json:"longDescription,omitempty"`
	PrivateMessage     string           `bun:"private_message" json:"privateMessage,omitempty"`
	InvoiceInfo        string           `bun:"invoice_info" json:"invoiceInfo,omitempty"`
	Status             ExpenseStatus    `bun:"status,notnull" json:"status" validate:"required,oneof=DRAFT UNCLASSIFIED PENDING APPROVED REJECTED PROCESSING PAID ERROR SETTLEMENT CANCELED SPAM"`
	Type               ExpenseType      `bun:"type,notnull" json:"type" validate:"required,oneof=INVOICE RECEIPT FUNDING_REQUEST GRANT UNCLASSIFIED SETTLEMENT CHARGE"`
	Tags               []string         `bun:"tags" json:"tags,omitempty"`
	IncurredAt         time.Time        `bun:"incurred_at,notnull" json:"incurredAt" validate:"required"`
	FeesPayer          FeesPayer        `bun:"fees_payer,notnull" json:"feesPayer" validate:"required,oneof=DEFAULT PAYEE"`
	Reference          string           `bun:"reference" json:"reference,omitempty" validate:"max=255"`
	PayeeLocation      types.JsonObject `bun:"payee_location" json:"payeeLocation,omitempty"`
	Data               types.JsonObject `bun:"data" json:"data,omitempty"`
	Timestamps
}

func (e *Expense) Validate() error {
	return validation.Struct("Expense", e)
}

// CheckTransition rejects the moves the lifecycle forbids. A PAID expense
// can neither be approved, rejected nor canceled.
func (e *Expense) CheckTransition(to ExpenseStatus) error {
	if e.Status != ExpenseStatusPaid {
		return nil
	}
	switch to {
	case ExpenseStatusApproved:
		return errs.Invariant("Can't approve an expense that is PAID")
	case ExpenseStatusRejected:
		return errs.Invariant("Can't reject an expense that is PAID")
	case ExpenseStatusCanceled:
		return errs.Invariant("Can't cancel an expense that is PAID")
	}
	return nil
}

func (e *Expense) Info() Projection {
	return Projection{
		"id":               e.ID,
		"type":             e.Type,
		"description":      e.Description,
		"amount":           e.Amount,
		"currency":         e.Currency,
		"status":           e.Status,
		"tags":             e.Tags,
		"incurredAt":       e.IncurredAt,
		"createdAt":        e.CreatedAt,
		"UserId":           e.UserID,
		"CollectiveId":     e.CollectiveID,
		"FromCollectiveId": e.FromCollectiveID,
		"HostCollectiveId": idOrNil(e.HostCollectiveID),
		"PayoutMethodId":   idOrNil(e.PayoutMethodID),
		"lastEditedById":   idOrNil(e.LastEditedByID),
		"feesPayer":        e.FeesPayer,
	}
}

func (e *Expense) Minimal() Projection {
	return Projection{
		"id":               e.ID,
		"type":             e.Type,
		"description":      e.Description,
		"amount":           e.Amount,
		"currency":         e.Currency,
		"status":           e.Status,
		"incurredAt":       e.IncurredAt,
		"CollectiveId":     e.CollectiveID,
		"FromCollectiveId": e.FromCollectiveID,
	}
}

// Activity is the snapshot attached to lifecycle events: the expense, its
// payout method (without the raw data for bank accounts) and its items.
func (e *Expense) Activity(payoutMethod *PayoutMethod, items []*ExpenseItem) Projection {
	p := e.Info()
	p["privateMessage"] = e.PrivateMessage
	if payoutMethod != nil {
		p["payoutMethod"] = payoutMethod.Minimal()
	}
	snapshot := make([]Projection, 0, len(items))
	for _, item := range items {
		snapshot = append(snapshot, item.Info())
	}
	p["items"] = snapshot
	return p
}

func (*Expense) Indexes() []Index {
	return []Index{
		{Name: "expenses_collective_id_status_idx", Columns: []string{"collective_id", "status"}},
		{Name: "expenses_from_collective_id_idx", Columns: []string{"from_collective_id"}},
		{Name: "expenses_host_collective_id_idx", Columns: []string{"host_collective_id"}},
		{Name: "expenses_recurring_expense_id_idx", Columns: []string{"recurring_expense_id"}},
	}
}

// NormalizeTags lowercases, trims and deduplicates tags, keeping order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// TagCount is one entry of a tag popularity ranking.
type TagCount struct {
	Tag   string `json:"id"`
	Count int    `json:"count"`
}

// RankTags counts tags across documents and returns the limit most used,
// ties broken alphabetically.
func RankTags(tagLists [][]string, limit int) []TagCount {
	counts := map[string]int{}
	for _, tags := range tagLists {
		for _, t := range NormalizeTags(tags) {
			counts[t]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TagCount{Tag: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ExpenseItem is one line of an expense.
type ExpenseItem struct {
	bun.BaseModel `bun:"table:expense_items,alias:ei"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	ExpenseID       int64     `bun:"expense_id,notnull" json:"ExpenseId"`
	CreatedByUserID int64     `bun:"created_by_user_id,nullzero" json:"CreatedByUserId,omitempty"`
	Amount          int64     `bun:"amount,notnull" json:"amount" validate:"min=1"`
	URL             string    `bun:"url" json:"url,omitempty" validate:"omitempty,url,max=2048"`
	Description     string    `bun:"description" json:"description,omitempty" validate:"max=255"`
	IncurredAt      time.Time `bun:"incurred_at,notnull" json:"incurredAt" validate:"required"`
	Timestamps
}

func (i *ExpenseItem) Validate() error {
	return validation.Struct("ExpenseItem", i)
}

func (i *ExpenseItem) Info() Projection {
	return Projection{
		"id":          i.ID,
		"amount":      i.Amount,
		"url":         i.URL,
		"description": i.Description,
		"incurredAt":  i.IncurredAt,
	}
}

func (i *ExpenseItem) sameContent(o *ExpenseItem) bool {
	return i.Amount == o.Amount && i.URL == o.URL && i.Description == o.Description && i.IncurredAt.Equal(o.IncurredAt)
}

func (*ExpenseItem) Indexes() []Index {
	return []Index{{Name: "expense_items_expense_id_idx", Columns: []string{"expense_id"}}}
}

// ItemsDiff is the result of DiffItems.
type ItemsDiff struct {
	New     []*ExpenseItem
	Removed []*ExpenseItem
	Updated []*ExpenseItem
}

// DiffItems compares the stored items with the submitted ones. Incoming
// items without an id are new, stored items missing from incoming are
// removed and matching ids whose content changed are updated. An incoming
// id that is not stored fails.
func DiffItems(existing, incoming []*ExpenseItem) (*ItemsDiff, error) {
	byID := make(map[int64]*ExpenseItem, len(existing))
	for _, item := range existing {
		byID[item.ID] = item
	}
	diff := &ItemsDiff{}
	kept := map[int64]struct{}{}
	for _, item := range incoming {
		if item.ID == 0 {
			diff.New = append(diff.New, item)
			continue
		}
		stored, ok := byID[item.ID]
		if !ok {
			return nil, errs.Invariant("Invalid expense item id %d", item.ID)
		}
		kept[item.ID] = struct{}{}
		if !stored.sameContent(item) {
			diff.Updated = append(diff.Updated, item)
		}
	}
	for _, item := range existing {
		if _, ok := kept[item.ID]; !ok {
			diff.Removed = append(diff.Removed, item)
		}
	}
	return diff, nil
}

// SumItems adds item amounts.
func SumItems(items []*ExpenseItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Amount
	}
	return total
}

// ExpenseAttachedFile is a document (invoice, receipt) attached to an
// expense as a whole rather than to an item.
type ExpenseAttachedFile struct {
	bun.BaseModel `bun:"table:expense_attached_files,alias:eaf"`

	ID              int64  `bun:"id,pk,autoincrement" json:"id"`
	ExpenseID       int64  `bun:"expense_id,notnull" json:"ExpenseId"`
	CreatedByUserID int64  `bun:"created_by_user_id,nullzero" json:"CreatedByUserId,omitempty"`
	URL             string `bun:"url,notnull" json:"url" validate:"required,url,max=2048"`
	Name            string `bun:"name" json:"name,omitempty" validate:"max=255"`
	Timestamps
}

func (f *ExpenseAttachedFile) Validate() error {
	return validation.Struct("ExpenseAttachedFile", f)
}

func (f *ExpenseAttachedFile) Info() Projection {
	return Projection{"id": f.ID, "url": f.URL, "name": f.Name}
}

func (*ExpenseAttachedFile) Indexes() []Index {
	return []Index{{Name: "expense_attached_files_expense_id_idx", Columns: []string{"expense_id"}}}
}
