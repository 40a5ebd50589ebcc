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

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/secrets"
	"github.com/opencollective/ledger/types"
)

type UserStore struct {
	db          bun.IDB
	cipher      *secrets.Cipher
	users       repository.Repository[models.User]
	methods     repository.Repository[models.UserTwoFactorMethod]
	collectives *CollectiveStore
}

// NewUserStore returns a UserStore creating profiles through collectives.
func NewUserStore(db bun.IDB, cipher *secrets.Cipher, collectives *CollectiveStore) *UserStore {
	return &UserStore{
		db:          db,
		cipher:      cipher,
		users:       repository.NewRepository[models.User](db),
		methods:     repository.NewRepository[models.UserTwoFactorMethod](db),
		collectives: collectives,
	}
}

// CreateUserWithCollective creates the USER collective profile and the
// user owning it in one transaction.
func (s *UserStore) CreateUserWithCollective(ctx context.Context, u *models.User, profile *models.Collective) (*models.User, []events.Event, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if profile == nil {
		profile = &models.Collective{}
	}
	profile.Type = models.CollectiveTypeUser
	profile.IsActive = true
	if profile.Name == "" {
		profile.Name = strings.SplitN(u.Email, "@", 2)[0]
	}
	if err := u.Validate(); err != nil {
		return nil, nil, err
	}
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		users := s.users.Tx(tx)
		taken, err := withDeletedExists(ctx, users, "email = ?", u.Email)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: email %s", errs.ErrAlreadyExists, u.Email)
		}
		collectives := s.collectives.collectives.Tx(tx)
		if err := s.collectives.create(ctx, collectives, profile, nil); err != nil {
			return err
		}
		u.CollectiveID = profile.ID
		if err := users.Create(ctx, u); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		profile.CreatedByUserID = u.ID
		return collectives.Update(ctx, profile, "created_by_user_id")
	})
	if err != nil {
		return nil, nil, err
	}
	return u, []events.Event{{Type: events.CollectiveCreated, CollectiveID: profile.ID, UserID: u.ID, Data: profile.Minimal()}}, nil
}

// Get returns the user with id.
func (s *UserStore) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetOne(ctx, id)
}

// GetByEmail looks a user up by normalized e-mail address.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.First(ctx, "u.email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// SetPassword stores the bcrypt hash of password.
func (s *UserStore) SetPassword(ctx context.Context, u *models.User, password string) error {
	if len(password) < 8 {
		return errs.NewValidationError("User", "password", "must be at least 8 characters")
	}
	hash, err := secrets.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = hash
	return s.users.Update(ctx, u, "password_hash")
}

// CheckPassword reports whether password matches the stored hash. Users
// without a password never match.
func (s *UserStore) CheckPassword(ctx context.Context, userID int64, password string) (bool, error) {
	u, err := s.users.GetOne(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.HasPassword() && secrets.CheckPassword(u.PasswordHash, password), nil
}

// TouchLogin stamps LastLoginAt.
func (s *UserStore) TouchLogin(ctx context.Context, u *models.User) error {
	u.LastLoginAt = models.Now()
	return s.users.Update(ctx, u, "last_login_at")
}

// AddTwoFactorMethod stores data encrypted. The returned method carries the
// plain data.
func (s *UserStore) AddTwoFactorMethod(ctx context.Context, m *models.UserTwoFactorMethod) (*models.UserTwoFactorMethod, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	plain := m.Data
	sealed, err := s.cipher.Encode(plain)
	if err != nil {
		return nil, err
	}
	m.Data = sealed
	if err := s.methods.Create(ctx, m); err != nil {
		m.Data = plain
		return nil, fmt.Errorf("failed to add two factor method: %w", err)
	}
	m.Data = plain
	return m, nil
}

// ListTwoFactorMethods returns the user's methods with decrypted data.
func (s *UserStore) ListTwoFactorMethods(ctx context.Context, userID int64) ([]*models.UserTwoFactorMethod, error) {
	methods, err := s.methods.List(ctx, &types.QueryFilter{Schema: "tfm.user_id = ?", Args: []interface{}{userID}}, "tfm.id ASC")
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		if m.Data, err = s.cipher.Decode(m.Data); err != nil {
			return nil, fmt.Errorf("failed to decrypt two factor method %d: %w", m.ID, err)
		}
	}
	return methods, nil
}

// RemoveTwoFactorMethod deletes methodID when it belongs to userID.
func (s *UserStore) RemoveTwoFactorMethod(ctx context.Context, userID, methodID int64) error {
	n, err := s.methods.DeleteWhere(ctx, "id = ? AND user_id = ?", methodID, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// HasTwoFactor reports whether userID has any second factor.
func (s *UserStore) HasTwoFactor(ctx context.Context, userID int64) (bool, error) {
	return s.methods.Exists(ctx, "tfm.user_id = ?", userID)
}
