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
	"testing"
	"time"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/database/dbtest"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/secrets"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type fixture struct {
	ctx    context.Context
	db     *bun.DB
	cipher *secrets.Cipher

	collectives *CollectiveStore
	expenses    *ExpenseStore
	seq         int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cipher, err := secrets.NewCipher(testKey)
	if err != nil {
		t.Fatal(err)
	}
	db := dbtest.Open(t)
	return &fixture{
		ctx:         context.Background(),
		db:          db,
		cipher:      cipher,
		collectives: NewCollectiveStore(db),
		expenses:    NewExpenseStore(db),
	}
}

func (f *fixture) collective(t *testing.T, typ models.CollectiveType, hostID int64) *models.Collective {
	t.Helper()
	f.seq++
	c, _, err := f.collectives.Create(f.ctx, &models.Collective{
		Type:             typ,
		Name:             fmt.Sprintf("Account %d", f.seq),
		HostCollectiveID: hostID,
		IsActive:         true,
	})
	if err != nil {
		t.Fatalf("create collective: %v", err)
	}
	return c
}

func (f *fixture) host(t *testing.T) *models.Collective {
	t.Helper()
	f.seq++
	c, _, err := f.collectives.Create(f.ctx, &models.Collective{
		Type:          models.CollectiveTypeOrganization,
		Name:          fmt.Sprintf("Host %d", f.seq),
		IsHostAccount: true,
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("create host: %v", err)
	}
	return c
}

func (f *fixture) expense(t *testing.T, collective, payee *models.Collective, amount int64, incurredAt time.Time) *models.Expense {
	t.Helper()
	e, _, err := f.expenses.Create(f.ctx, &models.Expense{
		UserID:           1,
		CollectiveID:     collective.ID,
		FromCollectiveID: payee.ID,
		HostCollectiveID: collective.HostCollectiveID,
		Amount:           amount,
		Currency:         "USD",
		Description:      "Server costs",
		Type:             models.ExpenseTypeInvoice,
		IncurredAt:       incurredAt,
	}, nil, nil)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return e
}

func TestUniqueSlug(t *testing.T) {
	taken := map[string]bool{"webpack": true, "webpack-1": true}
	slug, err := uniqueSlug(context.Background(), "webpack", 0, func(_ context.Context, s string) (bool, error) {
		return taken[s], nil
	})
	if err != nil || slug != "webpack-2" {
		t.Fatalf("uniqueSlug = %q, %v", slug, err)
	}
	if _, err := uniqueSlug(context.Background(), "", 0, nil); err == nil {
		t.Error("empty base should fail")
	}
}

func TestCollectiveSlugs(t *testing.T) {
	f := newFixture(t)
	a, _, err := f.collectives.Create(f.ctx, &models.Collective{Type: models.CollectiveTypeCollective, Name: "Babel"})
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := f.collectives.Create(f.ctx, &models.Collective{Type: models.CollectiveTypeCollective, Name: "Babel"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Slug != "babel" || b.Slug != "babel-1" {
		t.Errorf("slugs = %q %q", a.Slug, b.Slug)
	}
	if err := f.collectives.Destroy(f.ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	c, _, err := f.collectives.Create(f.ctx, &models.Collective{Type: models.CollectiveTypeCollective, Name: "Babel"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Slug != "babel-2" {
		t.Errorf("slug of a deleted collective must stay reserved, got %q", c.Slug)
	}
	reserved, _, err := f.collectives.Create(f.ctx, &models.Collective{Type: models.CollectiveTypeCollective, Name: "Admin"}, "admin")
	if err == nil {
		t.Errorf("reserved slug accepted: %q", reserved.Slug)
	}
	got, err := f.collectives.GetBySlug(f.ctx, "BABEL-1")
	if err != nil || got.ID != b.ID {
		t.Errorf("GetBySlug = %v, %v", got, err)
	}
}
