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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/models"
)

type failingCardProvider struct{ noopCardProvider }

func (failingCardProvider) PauseCard(context.Context, *models.VirtualCard) error {
	return errors.New("stripe: card_declined for card ic_123")
}

func TestConnectedAccountTokensEncrypted(t *testing.T) {
	f := newFixture(t)
	accounts := NewConnectedAccountStore(f.db, f.cipher)
	c := f.collective(t, models.CollectiveTypeCollective, 0)

	ca, err := accounts.Create(f.ctx, &models.ConnectedAccount{
		Service: "stripe", Username: "acct_1", CollectiveID: c.ID,
		Token: "sk_live_abc", RefreshToken: "rt_live_def",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ca.Token != "sk_live_abc" {
		t.Errorf("created account should keep the clear token, got %q", ca.Token)
	}

	var raw string
	if err := f.db.NewSelect().Table("connected_accounts").Column("token").Where("id = ?", ca.ID).Scan(f.ctx, &raw); err != nil {
		t.Fatal(err)
	}
	if raw == "" || strings.Contains(raw, "sk_live") {
		t.Errorf("token stored in clear: %q", raw)
	}

	list, err := accounts.ListForCollective(f.ctx, c.ID, "stripe")
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
	if list[0].Token != "sk_live_abc" || list[0].RefreshToken != "rt_live_def" {
		t.Errorf("decrypted tokens = %q %q", list[0].Token, list[0].RefreshToken)
	}
	if others, _ := accounts.ListForCollective(f.ctx, c.ID, "paypal"); len(others) != 0 {
		t.Errorf("service filter ignored: %v", others)
	}
}

func TestApplicationCredentials(t *testing.T) {
	f := newFixture(t)
	apps := NewApplicationStore(f.db, f.cipher)

	app, err := apps.Create(f.ctx, &models.Application{Name: "Zapier", CreatedByUserID: 7, CallbackURL: "https://example.com/cb"})
	if err != nil {
		t.Fatal(err)
	}
	if len(app.ClientID) != 2*clientIDBytes || len(app.ClientSecret) != 2*clientSecretBytes {
		t.Errorf("client credentials = %q %q", app.ClientID, app.ClientSecret)
	}
	byClient, err := apps.GetByClientID(f.ctx, app.ClientID)
	if err != nil || byClient.ClientSecret != app.ClientSecret {
		t.Errorf("GetByClientID = %v, %v", byClient, err)
	}

	code, err := apps.CreateAuthorizationCode(f.ctx, &models.OAuthAuthorizationCode{
		ApplicationID: app.ID, UserID: 7, RedirectURI: "https://example.com/cb",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := apps.ConsumeAuthorizationCode(f.ctx, app.ID+1, code.Code); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("code must be bound to its application, got %v", err)
	}
	if _, err := apps.ConsumeAuthorizationCode(f.ctx, app.ID, code.Code); err != nil {
		t.Fatal(err)
	}
	if _, err := apps.ConsumeAuthorizationCode(f.ctx, app.ID, code.Code); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("a code can only be exchanged once, got %v", err)
	}

	ut, err := apps.Issue(f.ctx, app.ID, 7, []string{"expenses"})
	if err != nil {
		t.Fatal(err)
	}
	if got := ut.ExpiresAt.Sub(ut.CreatedAt); got < AccessTokenLifetime-time.Minute {
		t.Errorf("access token lifetime = %v", got)
	}
	found, err := apps.FindByAccessToken(f.ctx, ut.AccessToken)
	if err != nil || found.ID != ut.ID {
		t.Fatalf("FindByAccessToken = %v, %v", found, err)
	}
	if err := apps.Revoke(f.ctx, ut.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := apps.FindByAccessToken(f.ctx, ut.AccessToken); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("revoked token still found: %v", err)
	}
}

func TestPersonalTokenExpiry(t *testing.T) {
	f := newFixture(t)
	apps := NewApplicationStore(f.db, f.cipher)

	forever, err := apps.GeneratePersonalToken(f.ctx, &models.PersonalToken{Name: "ci", CollectiveID: 1, UserID: 2})
	if err != nil {
		t.Fatal(err)
	}
	expired, err := apps.GeneratePersonalToken(f.ctx, &models.PersonalToken{
		Name: "old", CollectiveID: 1, UserID: 2, ExpiresAt: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := apps.FindByPersonalToken(f.ctx, forever.Token); err != nil {
		t.Errorf("token without expiry rejected: %v", err)
	}
	if _, err := apps.FindByPersonalToken(f.ctx, expired.Token); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expired token accepted: %v", err)
	}
}

func TestVirtualCards(t *testing.T) {
	f := newFixture(t)
	host := f.host(t)
	c := f.collective(t, models.CollectiveTypeCollective, host.ID)
	card := &models.VirtualCard{
		ID: "ic_123", CollectiveID: c.ID, HostCollectiveID: host.ID, Last4: "4242",
		Provider: models.VirtualCardProviderStripe, Currency: "USD",
		Secret: &models.VirtualCardPrivateData{CardNumber: "4242424242424242", CVV: "123"},
	}

	cards := NewVirtualCardStore(f.db, f.cipher, failingCardProvider{})
	if _, evs, err := cards.Create(f.ctx, card); err != nil || len(evs) != 1 {
		t.Fatalf("create = %v, %v", evs, err)
	}
	loaded, err := cards.Get(f.ctx, "ic_123")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Secret == nil || loaded.Secret.CVV != "123" || strings.Contains(loaded.PrivateData, "4242") {
		t.Errorf("secret = %+v, stored %q", loaded.Secret, loaded.PrivateData)
	}

	_, err = cards.Pause(f.ctx, "ic_123")
	var providerErr *errs.ProviderError
	if !errors.As(err, &providerErr) || strings.Contains(providerErr.Error(), "stripe") {
		t.Fatalf("expected a generic provider error, got %v", err)
	}
	if still, _ := cards.Get(f.ctx, "ic_123"); still.Status != models.VirtualCardActive {
		t.Errorf("status changed after provider failure: %s", still.Status)
	}

	cards = NewVirtualCardStore(f.db, f.cipher, nil)
	paused, err := cards.Pause(f.ctx, "ic_123")
	if err != nil || paused.Status != models.VirtualCardInactive {
		t.Fatalf("pause = %v, %v", paused, err)
	}
	if err := cards.Delete(f.ctx, "ic_123"); err != nil {
		t.Fatal(err)
	}
	if _, err := cards.Get(f.ctx, "ic_123"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("deleted card still visible: %v", err)
	}
}
