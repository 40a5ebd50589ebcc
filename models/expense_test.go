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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opencollective/ledger/errs"
)

func validExpense() *Expense {
	return &Expense{
		UserID:           1,
		FromCollectiveID: 2,
		CollectiveID:     3,
		Amount:           1000,
		Currency:         "USD",
		Description:      "Team dinner",
		Status:           ExpenseStatusPending,
		Type:             ExpenseTypeReceipt,
		FeesPayer:        FeesPayerDefault,
		IncurredAt:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestExpenseValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Expense)
		field  string
	}{
		{"valid", func(*Expense) {}, ""},
		{"empty description", func(e *Expense) { e.Description = "" }, "description"},
		{"long description", func(e *Expense) { e.Description = strings.Repeat("x", 256) }, "description"},
		{"unknown status", func(e *Expense) { e.Status = "WHATEVER" }, "status"},
		{"unknown type", func(e *Expense) { e.Type = "GIFT" }, "type"},
		{"zero amount", func(e *Expense) { e.Amount = 0 }, "amount"},
		{"lowercase currency", func(e *Expense) { e.Currency = "usd" }, "currency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validExpense()
			tt.mutate(e)
			err := e.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *errs.ValidationError
			if !errors.As(err, &verr) || !verr.Has(tt.field) {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestExpenseCheckTransition(t *testing.T) {
	paid := validExpense()
	paid.Status = ExpenseStatusPaid
	for _, to := range []ExpenseStatus{ExpenseStatusApproved, ExpenseStatusRejected, ExpenseStatusCanceled} {
		if err := paid.CheckTransition(to); !errs.IsInvariant(err) {
			t.Errorf("PAID -> %s: expected invariant error, got %v", to, err)
		}
	}
	if err := paid.CheckTransition(ExpenseStatusApproved); err.Error() != "Can't approve an expense that is PAID" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if err := paid.CheckTransition(ExpenseStatusError); err != nil {
		t.Errorf("PAID -> ERROR should be allowed, got %v", err)
	}
	pending := validExpense()
	if err := pending.CheckTransition(ExpenseStatusApproved); err != nil {
		t.Errorf("PENDING -> APPROVED should be allowed, got %v", err)
	}
}

func TestDiffItems(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := []*ExpenseItem{
		{ID: 1, Amount: 100, IncurredAt: day, Description: "a"},
		{ID: 2, Amount: 200, IncurredAt: day, Description: "b"},
		{ID: 3, Amount: 300, IncurredAt: day, Description: "c"},
	}
	incoming := []*ExpenseItem{
		{ID: 1, Amount: 100, IncurredAt: day, Description: "a"},
		{ID: 2, Amount: 250, IncurredAt: day, Description: "b"},
		{Amount: 50, IncurredAt: day, Description: "new"},
	}
	diff, err := DiffItems(existing, incoming)
	if err != nil {
		t.Fatal(err)
	}
	if len(diff.New) != 1 || diff.New[0].Description != "new" {
		t.Errorf("New = %v", diff.New)
	}
	if len(diff.Updated) != 1 || diff.Updated[0].ID != 2 {
		t.Errorf("Updated = %v", diff.Updated)
	}
	if len(diff.Removed) != 1 || diff.Removed[0].ID != 3 {
		t.Errorf("Removed = %v", diff.Removed)
	}
	if SumItems(incoming) != 400 {
		t.Errorf("SumItems = %d", SumItems(incoming))
	}

	if _, err := DiffItems(existing, []*ExpenseItem{{ID: 42, Amount: 1, IncurredAt: day}}); !errs.IsInvariant(err) {
		t.Errorf("unknown id should fail, got %v", err)
	}
}

func TestRankTags(t *testing.T) {
	ranked := RankTags([][]string{
		{"Food", "travel"},
		{"food", " TRAVEL ", "food"},
		{"office"},
		{"food"},
	}, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 tags, got %v", ranked)
	}
	if ranked[0] != (TagCount{Tag: "food", Count: 3}) || ranked[1] != (TagCount{Tag: "travel", Count: 2}) {
		t.Errorf("unexpected ranking %v", ranked)
	}
}

func TestExpenseActivityHidesPayoutData(t *testing.T) {
	e := validExpense()
	pm := &PayoutMethod{ID: 9, Type: PayoutMethodBankAccount, Data: map[string]interface{}{"currency": "EUR", "iban": "FR76"}}
	p := e.Activity(pm, []*ExpenseItem{{ID: 1, Amount: 1000}})
	payout, ok := p["payoutMethod"].(Projection)
	if !ok {
		t.Fatalf("payoutMethod missing from %v", p)
	}
	if _, leaked := payout["data"]; leaked {
		t.Error("activity snapshot must not include payout method data")
	}
	if items, _ := p["items"].([]Projection); len(items) != 1 {
		t.Errorf("items = %v", p["items"])
	}
}
