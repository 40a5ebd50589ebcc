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

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/secrets"
	"github.com/opencollective/ledger/types"
)

const (
	AccessTokenLifetime       = 60 * 24 * time.Hour
	RefreshTokenLifetime      = 365 * 24 * time.Hour
	AuthorizationCodeLifetime = 5 * time.Minute

	clientIDBytes      = 10
	clientSecretBytes  = 20
	accessTokenBytes   = 32
	personalTokenBytes = 20
	codeBytes          = 32
)

type ConnectedAccountStore struct {
	cipher   *secrets.Cipher
	accounts repository.Repository[models.ConnectedAccount]
}

// NewConnectedAccountStore returns a ConnectedAccountStore sealing tokens with cipher.
func NewConnectedAccountStore(db bun.IDB, cipher *secrets.Cipher) *ConnectedAccountStore {
	return &ConnectedAccountStore{cipher: cipher, accounts: repository.NewRepository[models.ConnectedAccount](db)}
}

// Create stores the tokens of ca encrypted; the returned account keeps them
// in clear.
func (s *ConnectedAccountStore) Create(ctx context.Context, ca *models.ConnectedAccount) (*models.ConnectedAccount, error) {
	if err := ca.Validate(); err != nil {
		return nil, err
	}
	token, refresh := ca.Token, ca.RefreshToken
	var err error
	if ca.Token, err = s.cipher.Encode(token); err != nil {
		return nil, err
	}
	if ca.RefreshToken, err = s.cipher.Encode(refresh); err != nil {
		return nil, err
	}
	err = s.accounts.Create(ctx, ca)
	ca.Token, ca.RefreshToken = token, refresh
	if err != nil {
		return nil, fmt.Errorf("failed to create connected account: %w", err)
	}
	return ca, nil
}

// Get returns the account with its tokens decrypted.
func (s *ConnectedAccountStore) Get(ctx context.Context, id int64) (*models.ConnectedAccount, error) {
	ca, err := s.accounts.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return ca, s.decrypt(ca)
}

// ListForCollective returns the decrypted accounts of collectiveID,
// restricted to service when it is set.
func (s *ConnectedAccountStore) ListForCollective(ctx context.Context, collectiveID int64, service string) ([]*models.ConnectedAccount, error) {
	filter := types.NewQueryFilter("ca.collective_id = ?", collectiveID)
	if service != "" {
		filter = types.NewQueryFilter("ca.collective_id = ? AND ca.service = ?", collectiveID, service)
	}
	accounts, err := s.accounts.List(ctx, filter, "ca.id ASC")
	if err != nil {
		return nil, err
	}
	for _, ca := range accounts {
		if err := s.decrypt(ca); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// Delete soft deletes the account.
func (s *ConnectedAccountStore) Delete(ctx context.Context, id int64) error {
	return s.accounts.Delete(ctx, id)
}

func (s *ConnectedAccountStore) decrypt(ca *models.ConnectedAccount) error {
	var err error
	if ca.Token, err = s.cipher.Decode(ca.Token); err != nil {
		return fmt.Errorf("failed to decrypt connected account %d: %w", ca.ID, err)
	}
	if ca.RefreshToken, err = s.cipher.Decode(ca.RefreshToken); err != nil {
		return fmt.Errorf("failed to decrypt connected account %d: %w", ca.ID, err)
	}
	return nil
}

// CardProvider operates the cards at the issuing provider.
type CardProvider interface {
	PauseCard(ctx context.Context, card *models.VirtualCard) error
	ResumeCard(ctx context.Context, card *models.VirtualCard) error
	DeleteCard(ctx context.Context, card *models.VirtualCard) error
}

type noopCardProvider struct{}

func (noopCardProvider) PauseCard(context.Context, *models.VirtualCard) error  { return nil }
func (noopCardProvider) ResumeCard(context.Context, *models.VirtualCard) error { return nil }
func (noopCardProvider) DeleteCard(context.Context, *models.VirtualCard) error { return nil }

type VirtualCardStore struct {
	cipher   *secrets.Cipher
	cards    repository.Repository[models.VirtualCard]
	provider CardProvider
}

// NewVirtualCardStore builds the store; a nil provider accepts every call.
func NewVirtualCardStore(db bun.IDB, cipher *secrets.Cipher, provider CardProvider) *VirtualCardStore {
	if provider == nil {
		provider = noopCardProvider{}
	}
	return &VirtualCardStore{cipher: cipher, cards: repository.NewRepository[models.VirtualCard](db), provider: provider}
}

// Create stores vc with its secret encrypted.
func (s *VirtualCardStore) Create(ctx context.Context, vc *models.VirtualCard) (*models.VirtualCard, []events.Event, error) {
	if vc.Status == "" {
		vc.Status = models.VirtualCardActive
	}
	if err := vc.Validate(); err != nil {
		return nil, nil, err
	}
	if vc.Secret != nil {
		sealed, err := s.cipher.EncodeJSON(vc.Secret)
		if err != nil {
			return nil, nil, err
		}
		vc.PrivateData = sealed
	}
	if err := s.cards.Create(ctx, vc); err != nil {
		return nil, nil, fmt.Errorf("failed to create virtual card: %w", err)
	}
	ev := event(events.VirtualCardCreated, vc.CollectiveID, vc.Info())
	ev.HostCollectiveID = vc.HostCollectiveID
	ev.UserID = vc.UserID
	return vc, []events.Event{ev}, nil
}

// Get loads the card and decrypts its secret.
func (s *VirtualCardStore) Get(ctx context.Context, id string) (*models.VirtualCard, error) {
	vc, err := s.cards.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if vc.PrivateData != "" {
		vc.Secret = new(models.VirtualCardPrivateData)
		if err := s.cipher.DecodeJSON(vc.PrivateData, vc.Secret); err != nil {
			return nil, fmt.Errorf("failed to decrypt virtual card %s: %w", vc.ID, err)
		}
	}
	return vc, nil
}

// ListForCollective returns the cards of collectiveID, oldest first. The
// private data stays encrypted.
func (s *VirtualCardStore) ListForCollective(ctx context.Context, collectiveID int64) ([]*models.VirtualCard, error) {
	return s.cards.List(ctx, types.NewQueryFilter("vc.collective_id = ?", collectiveID), "vc.created_at ASC")
}

// Pause freezes the card at the provider, then marks it INACTIVE.
func (s *VirtualCardStore) Pause(ctx context.Context, id string) (*models.VirtualCard, error) {
	return s.transition(ctx, id, "pause", s.provider.PauseCard, models.VirtualCardInactive)
}

// Resume reactivates the card at the provider, then marks it ACTIVE.
func (s *VirtualCardStore) Resume(ctx context.Context, id string) (*models.VirtualCard, error) {
	return s.transition(ctx, id, "resume", s.provider.ResumeCard, models.VirtualCardActive)
}

// Delete cancels the card at the provider, then soft deletes it.
func (s *VirtualCardStore) Delete(ctx context.Context, id string) error {
	vc, err := s.transition(ctx, id, "delete", s.provider.DeleteCard, models.VirtualCardCanceled)
	if err != nil {
		return err
	}
	return s.cards.Delete(ctx, vc.ID)
}

func (s *VirtualCardStore) transition(ctx context.Context, id, action string, call func(context.Context, *models.VirtualCard) error, status models.VirtualCardStatus) (*models.VirtualCard, error) {
	vc, err := s.cards.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := call(ctx, vc); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{"card": vc.ID, "provider": vc.Provider}).Errorf("failed to %s virtual card", action)
		return nil, errs.NewProviderError(fmt.Sprintf("Failed to %s card", action), err)
	}
	vc.Status = status
	if err := s.cards.Update(ctx, vc, "status"); err != nil {
		return nil, err
	}
	return vc, nil
}

// ApplicationStore keeps OAuth applications and the tokens and codes they
// hand out.
type ApplicationStore struct {
	db             bun.IDB
	cipher         *secrets.Cipher
	applications   repository.Repository[models.Application]
	userTokens     repository.Repository[models.UserToken]
	personalTokens repository.Repository[models.PersonalToken]
	codes          repository.Repository[models.OAuthAuthorizationCode]
}

// NewApplicationStore returns an ApplicationStore sealing client secrets
// with cipher.
func NewApplicationStore(db bun.IDB, cipher *secrets.Cipher) *ApplicationStore {
	return &ApplicationStore{
		db:             db,
		cipher:         cipher,
		applications:   repository.NewRepository[models.Application](db),
		userTokens:     repository.NewRepository[models.UserToken](db),
		personalTokens: repository.NewRepository[models.PersonalToken](db),
		codes:          repository.NewRepository[models.OAuthAuthorizationCode](db),
	}
}

// Create generates the client credentials of app. The secret is stored
// encrypted and returned in clear.
func (s *ApplicationStore) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	if app.Type == "" {
		app.Type = models.ApplicationTypeOAuth
	}
	if app.ClientID == "" {
		app.ClientID = secrets.RandomToken(clientIDBytes)
	}
	plain := secrets.RandomToken(clientSecretBytes)
	if err := app.Validate(); err != nil {
		return nil, err
	}
	sealed, err := s.cipher.Encode(plain)
	if err != nil {
		return nil, err
	}
	app.ClientSecret = sealed
	err = s.applications.Create(ctx, app)
	app.ClientSecret = plain
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	return app, nil
}

// Get returns the application with its client secret decrypted.
func (s *ApplicationStore) Get(ctx context.Context, id int64) (*models.Application, error) {
	app, err := s.applications.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return app, s.decryptSecret(app)
}

// GetByClientID returns the application owning clientID, secret decrypted.
func (s *ApplicationStore) GetByClientID(ctx context.Context, clientID string) (*models.Application, error) {
	app, err := s.applications.First(ctx, "app.client_id = ?", clientID)
	if err != nil {
		return nil, err
	}
	return app, s.decryptSecret(app)
}

func (s *ApplicationStore) decryptSecret(app *models.Application) error {
	plain, err := s.cipher.Decode(app.ClientSecret)
	if err != nil {
		return fmt.Errorf("failed to decrypt application %d: %w", app.ID, err)
	}
	app.ClientSecret = plain
	return nil
}

// Issue creates an OAuth token pair for userID on applicationID.
func (s *ApplicationStore) Issue(ctx context.Context, applicationID, userID int64, scope []string) (*models.UserToken, error) {
	now := models.Now()
	ut := &models.UserToken{
		Type:                  models.UserTokenTypeOAuth,
		AccessToken:           secrets.RandomToken(accessTokenBytes),
		RefreshToken:          secrets.RandomToken(accessTokenBytes),
		ExpiresAt:             now.Add(AccessTokenLifetime),
		RefreshTokenExpiresAt: now.Add(RefreshTokenLifetime),
		ApplicationID:         applicationID,
		UserID:                userID,
		Scope:                 scope,
	}
	if err := ut.Validate(); err != nil {
		return nil, err
	}
	if err := s.userTokens.Create(ctx, ut); err != nil {
		return nil, fmt.Errorf("failed to issue user token: %w", err)
	}
	return ut, nil
}

// FindByAccessToken returns the unexpired token matching accessToken.
func (s *ApplicationStore) FindByAccessToken(ctx context.Context, accessToken string) (*models.UserToken, error) {
	return s.userTokens.First(ctx, "ut.access_token = ? AND ut.expires_at > ?", accessToken, models.Now())
}

// Revoke deletes the OAuth token tokenID.
func (s *ApplicationStore) Revoke(ctx context.Context, tokenID int64) error {
	return s.userTokens.Delete(ctx, tokenID)
}

// MarkUsed stamps the last use of ut.
func (s *ApplicationStore) MarkUsed(ctx context.Context, ut *models.UserToken) error {
	ut.LastUsedAt = models.Now()
	return s.userTokens.Update(ctx, ut, "last_used_at")
}

// GeneratePersonalToken fills in a fresh token value and stores pt.
func (s *ApplicationStore) GeneratePersonalToken(ctx context.Context, pt *models.PersonalToken) (*models.PersonalToken, error) {
	pt.Token = secrets.RandomToken(personalTokenBytes)
	if !pt.ExpiresAt.IsZero() {
		pt.ExpiresAt = pt.ExpiresAt.UTC()
	}
	if err := pt.Validate(); err != nil {
		return nil, err
	}
	if err := s.personalTokens.Create(ctx, pt); err != nil {
		return nil, fmt.Errorf("failed to generate personal token: %w", err)
	}
	return pt, nil
}

// FindByPersonalToken returns the personal token matching token unless it
// expired.
func (s *ApplicationStore) FindByPersonalToken(ctx context.Context, token string) (*models.PersonalToken, error) {
	return s.personalTokens.First(ctx, "pt.token = ? AND (pt.expires_at IS NULL OR pt.expires_at > ?)", token, models.Now())
}

// RevokePersonalToken deletes the personal token id.
func (s *ApplicationStore) RevokePersonalToken(ctx context.Context, id int64) error {
	return s.personalTokens.Delete(ctx, id)
}

// CreateAuthorizationCode generates the code value and stores c.
func (s *ApplicationStore) CreateAuthorizationCode(ctx context.Context, c *models.OAuthAuthorizationCode) (*models.OAuthAuthorizationCode, error) {
	c.Code = secrets.RandomToken(codeBytes)
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = models.Now().Add(AuthorizationCodeLifetime)
	}
	c.ExpiresAt = c.ExpiresAt.UTC()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.codes.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create authorization code: %w", err)
	}
	return c, nil
}

// ConsumeAuthorizationCode returns the unexpired code of applicationID and
// deletes it: a code can be exchanged once.
func (s *ApplicationStore) ConsumeAuthorizationCode(ctx context.Context, applicationID int64, code string) (*models.OAuthAuthorizationCode, error) {
	var out *models.OAuthAuthorizationCode
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		c := new(models.OAuthAuthorizationCode)
		q := tx.NewSelect().Model(c).
			Where("oac.code = ?", code).
			Where("oac.application_id = ?", applicationID).
			Where("oac.expires_at > ?", models.Now()).
			Limit(1)
		if err := repository.ForUpdate(tx, q).Scan(ctx); err != nil {
			return repositoryError(err)
		}
		res, err := tx.NewDelete().Model(c).WherePK().ForceDelete().Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errs.ErrNotFound
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
