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

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/opencollective/ledger/database/dbtest"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/secrets"
	"github.com/opencollective/ledger/types"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newLedger(t *testing.T, opts Options) *Ledger {
	t.Helper()
	cipher, err := secrets.NewCipher(testKey)
	if err != nil {
		t.Fatal(err)
	}
	return New(dbtest.Open(t), cipher, opts)
}

func account(t *testing.T, l *Ledger, typ models.CollectiveType, name string, hostID int64) *models.Collective {
	t.Helper()
	c, _, err := l.Collectives.Create(context.Background(), &models.Collective{Type: typ, Name: name, HostCollectiveID: hostID, IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func paidExpense(t *testing.T, l *Ledger, collective, payee *models.Collective, amount int64, incurredAt time.Time) *models.Expense {
	t.Helper()
	ctx := context.Background()
	e, _, err := l.Expenses.Create(ctx, &models.Expense{
		UserID: 1, CollectiveID: collective.ID, FromCollectiveID: payee.ID, HostCollectiveID: collective.HostCollectiveID,
		Amount: amount, Currency: "USD", Description: "Design work", Type: models.ExpenseTypeInvoice, IncurredAt: incurredAt,
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.Expenses.SetPaid(ctx, e.ID, 1); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestDispatchRecordsActivities(t *testing.T) {
	l := newLedger(t, Options{})
	ctx := context.Background()

	c, evs, err := l.Collectives.Create(ctx, &models.Collective{Type: models.CollectiveTypeCollective, Name: "Babel", IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Dispatch(ctx, evs...); err != nil {
		t.Fatal(err)
	}
	if err := l.Dispatch(ctx); err != nil {
		t.Errorf("dispatching nothing = %v", err)
	}
	n, err := l.Activities.Count(ctx, "act.collective_id = ?", c.ID)
	if err != nil || n != 1 {
		t.Fatalf("activities = %d, %v", n, err)
	}
	acts, err := l.Activities.List(ctx, types.NewQueryFilter("act.type = ?", string(events.CollectiveCreated)))
	if err != nil || len(acts) != 1 || acts[0].Data.String("slug") != "babel" {
		t.Errorf("activity = %+v, %v", acts, err)
	}
}

func TestActivityFeed(t *testing.T) {
	l := newLedger(t, Options{})
	ctx := context.Background()

	var created []*models.Collective
	for _, name := range []string{"Babel", "Webpack"} {
		c, evs, err := l.Collectives.Create(ctx, &models.Collective{Type: models.CollectiveTypeCollective, Name: name, IsActive: true})
		if err != nil {
			t.Fatal(err)
		}
		if err := l.Dispatch(ctx, evs...); err != nil {
			t.Fatal(err)
		}
		created = append(created, c)
	}

	for _, c := range created {
		feed, err := l.ActivityFeed(ctx, c.ID, 0, 10)
		if err != nil {
			t.Fatal(err)
		}
		if feed.TotalCount != 1 || len(feed.Nodes) != 1 || feed.Nodes[0].CollectiveID != c.ID || feed.HasMore() {
			t.Errorf("feed of %s = %+v", c.Slug, feed)
		}
	}
	empty, err := l.ActivityFeed(ctx, created[0].ID, 5, 10)
	if err != nil || len(empty.Nodes) != 0 || empty.TotalCount != 1 {
		t.Errorf("offset past the end = %+v, %v", empty, err)
	}
}

func TestDraftRecurringExpenses(t *testing.T) {
	l := newLedger(t, Options{})
	ctx := context.Background()
	host := account(t, l, models.CollectiveTypeOrganization, "Host", 0)
	c := account(t, l, models.CollectiveTypeCollective, "Babel", host.ID)
	payee := account(t, l, models.CollectiveTypeUser, "Ada", 0)
	now := models.Now()

	e := paidExpense(t, l, c, payee, 5000, now.AddDate(0, -1, -2))
	if _, err := l.RecurringExpenses.CreateFromExpense(ctx, e, models.IntervalMonth, time.Time{}); err != nil {
		t.Fatal(err)
	}

	drafts, err := l.DraftRecurringExpenses(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 1 || drafts[0].Status != models.ExpenseStatusDraft {
		t.Fatalf("drafts = %+v", drafts)
	}
	n, _ := l.Activities.Count(ctx, "act.type = ?", string(events.CollectiveExpenseRecurringDraft))
	if n != 1 {
		t.Errorf("draft activities = %d", n)
	}

	again, err := l.DraftRecurringExpenses(ctx, now)
	if err != nil || len(again) != 0 {
		t.Errorf("series drafted twice in the same interval: %+v, %v", again, err)
	}
}

func TestSendTaxFormReminders(t *testing.T) {
	recorder := &events.Recorder{}
	l := newLedger(t, Options{Dispatcher: recorder})
	ctx := context.Background()
	host := account(t, l, models.CollectiveTypeOrganization, "Host", 0)
	c := account(t, l, models.CollectiveTypeCollective, "Babel", host.ID)
	payee := account(t, l, models.CollectiveTypeUser, "Ada", 0)
	now := models.Now()

	paidExpense(t, l, c, payee, models.TaxFormThreshold, now)
	doc, _, err := l.LegalDocuments.CreateTaxFormRequestToCollectiveIfNone(ctx, payee.ID, now.Year())
	if err != nil {
		t.Fatal(err)
	}
	_, err = l.DB().NewUpdate().Model((*models.LegalDocument)(nil)).
		Set("created_at = ?", now.Add(-72*time.Hour)).
		Where("id = ?", doc.ID).
		Exec(ctx)
	if err != nil {
		t.Fatal(err)
	}

	reminded, err := l.SendTaxFormReminders(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(reminded) != 1 || reminded[0].ID != doc.ID {
		t.Fatalf("reminded = %+v", reminded)
	}
	if got := recorder.OfType(events.TaxFormRequestReminder); len(got) != 1 || got[0].CollectiveID != payee.ID {
		t.Errorf("reminder events = %+v", got)
	}

	reminded, err = l.SendTaxFormReminders(ctx, now.Add(time.Hour))
	if err != nil || len(reminded) != 0 {
		t.Errorf("second run reminded %d documents, %v", len(reminded), err)
	}
}
