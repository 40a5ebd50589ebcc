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

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/validation"
)

// User is an authenticated identity. Each user owns exactly one USER
// collective holding its public profile.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                        int64            `bun:"id,pk,autoincrement" json:"id"`
	Email                     string           `bun:"email,notnull,unique" json:"email" validate:"required,email,max=255"`
	CollectiveID              int64            `bun:"collective_id,nullzero" json:"CollectiveId,omitempty"`
	PasswordHash              string           `bun:"password_hash,nullzero" json:"-"`
	EmailWaitingForValidation string           `bun:"email_waiting_for_validation,nullzero" json:"emailWaitingForValidation,omitempty" validate:"omitempty,email,max=255"`
	EmailConfirmationToken    string           `bun:"email_confirmation_token,nullzero" json:"-"`
	LastLoginAt               time.Time        `bun:"last_login_at,nullzero" json:"lastLoginAt,omitempty"`
	Data                      types.JsonObject `bun:"data" json:"data,omitempty"`
	Timestamps
}

func (u *User) Validate() error {
	return validation.Struct("User", u)
}

func (u *User) HasPassword() bool { return u.PasswordHash != "" }

func (u *User) Info() Projection {
	return Projection{
		"id":           u.ID,
		"email":        u.Email,
		"CollectiveId": u.CollectiveID,
		"lastLoginAt":  timeOrNil(u.LastLoginAt),
		"createdAt":    u.CreatedAt,
	}
}

func (u *User) Minimal() Projection {
	return Projection{"id": u.ID, "email": u.Email}
}

// Public never exposes the email address.
func (u *User) Public() Projection {
	return Projection{"id": u.ID, "CollectiveId": u.CollectiveID}
}

func (*User) Indexes() []Index {
	return []Index{{Name: "users_collective_id_idx", Columns: []string{"collective_id"}}}
}

type TwoFactorMethod string

const (
	TwoFactorMethodTOTP         TwoFactorMethod = "TOTP"
	TwoFactorMethodYubikeyOTP   TwoFactorMethod = "YUBIKEY_OTP"
	TwoFactorMethodWebAuthn     TwoFactorMethod = "WEBAUTHN"
	TwoFactorMethodRecoveryCode TwoFactorMethod = "RECOVERY_CODE"
)

// UserTwoFactorMethod holds a second factor. Data is the method specific
// secret (TOTP seed, yubikey id, webauthn credential) and is stored
// encrypted.
type UserTwoFactorMethod struct {
	bun.BaseModel `bun:"table:user_two_factor_methods,alias:tfm"`

	ID     int64           `bun:"id,pk,autoincrement" json:"id"`
	Method TwoFactorMethod `bun:"method,notnull" json:"method" validate:"required,oneof=TOTP YUBIKEY_OTP WEBAUTHN RECOVERY_CODE"`
	UserID int64           `bun:"user_id,notnull" json:"UserId" validate:"required"`
	Name   string          `bun:"name" json:"name" validate:"max=255"`
	Data   string          `bun:"data,notnull" json:"-" validate:"required"`
	Timestamps
}

func (m *UserTwoFactorMethod) Validate() error {
	return validation.Struct("UserTwoFactorMethod", m)
}

func (m *UserTwoFactorMethod) Info() Projection {
	return Projection{"id": m.ID, "method": m.Method, "name": m.Name, "createdAt": m.CreatedAt}
}

func (*UserTwoFactorMethod) Indexes() []Index {
	return []Index{{Name: "user_two_factor_methods_user_id_idx", Columns: []string{"user_id"}}}
}
