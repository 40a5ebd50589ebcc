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

type ApplicationType string

const (
	ApplicationTypeOAuth  ApplicationType = "oAuth"
	ApplicationTypeAPIKey ApplicationType = "apiKey"
)

// Application is a third party OAuth client. ClientSecret is stored
// encrypted.
type Application struct {
	bun.BaseModel `bun:"table:applications,alias:app"`

	ID              int64            `bun:"id,pk,autoincrement" json:"id"`
	Name            string           `bun:"name" json:"name" validate:"max=255"`
	Description     string           `bun:"description" json:"description,omitempty" validate:"max=255"`
	ClientID        string           `bun:"client_id,notnull" json:"clientId" validate:"required,max=255"`
	ClientSecret    string           `bun:"client_secret" json:"-"`
	CallbackURL     string           `bun:"callback_url" json:"callbackUrl,omitempty" validate:"omitempty,url"`
	Type            ApplicationType  `bun:"type,notnull" json:"type" validate:"required,oneof=oAuth apiKey"`
	CollectiveID    int64            `bun:"collective_id,nullzero" json:"CollectiveId,omitempty"`
	CreatedByUserID int64            `bun:"created_by_user_id,notnull" json:"CreatedByUserId" validate:"required"`
	Data            types.JsonObject `bun:"data" json:"data,omitempty"`
	Timestamps
}

func (a *Application) Validate() error {
	return validation.Struct("Application", a)
}

func (a *Application) Info() Projection {
	return Projection{
		"id":          a.ID,
		"name":        a.Name,
		"description": a.Description,
		"clientId":    a.ClientID,
		"callbackUrl": a.CallbackURL,
		"type":        a.Type,
	}
}

func (*Application) Indexes() []Index {
	return []Index{{Name: "applications_client_id_idx", Columns: []string{"client_id"}, Unique: true}}
}

const UserTokenTypeOAuth = "OAUTH"

// UserToken is an OAuth access token issued to an application on behalf of
// a user.
type UserToken struct {
	bun.BaseModel `bun:"table:user_tokens,alias:ut"`

	ID                    int64            `bun:"id,pk,autoincrement" json:"id"`
	Type                  string           `bun:"type,notnull" json:"type" validate:"required,oneof=OAUTH"`
	AccessToken           string           `bun:"access_token,notnull" json:"-" validate:"required"`
	RefreshToken          string           `bun:"refresh_token" json:"-"`
	ExpiresAt             time.Time        `bun:"expires_at,notnull" json:"expiresAt" validate:"required"`
	RefreshTokenExpiresAt time.Time        `bun:"refresh_token_expires_at,nullzero" json:"refreshTokenExpiresAt,omitempty"`
	ApplicationID         int64            `bun:"application_id,notnull" json:"ApplicationId" validate:"required"`
	UserID                int64            `bun:"user_id,notnull" json:"UserId" validate:"required"`
	Scope                 []string         `bun:"scope" json:"scope,omitempty"`
	LastUsedAt            time.Time        `bun:"last_used_at,nullzero" json:"lastUsedAt,omitempty"`
	Data                  types.JsonObject `bun:"data" json:"data,omitempty"`
	Timestamps
}

func (ut *UserToken) Validate() error {
	return validation.Struct("UserToken", ut)
}

func (ut *UserToken) IsExpired(now time.Time) bool { return !ut.ExpiresAt.After(now) }

func (ut *UserToken) Info() Projection {
	return Projection{
		"id":            ut.ID,
		"type":          ut.Type,
		"expiresAt":     ut.ExpiresAt,
		"scope":         ut.Scope,
		"ApplicationId": ut.ApplicationID,
		"UserId":        ut.UserID,
		"lastUsedAt":    timeOrNil(ut.LastUsedAt),
	}
}

func (*UserToken) Indexes() []Index {
	return []Index{
		{Name: "user_tokens_access_token_idx", Columns: []string{"access_token"}, Unique: true},
		{Name: "user_tokens_user_id_idx", Columns: []string{"user_id"}},
	}
}

// PersonalToken is an API key a user creates for scripts acting as one of
// their collectives.
type PersonalToken struct {
	bun.BaseModel `bun:"table:personal_tokens,alias:pt"`

	ID           int64            `bun:"id,pk,autoincrement" json:"id"`
	Name         string           `bun:"name" json:"name" validate:"max=255"`
	Token        string           `bun:"token,notnull" json:"-" validate:"required"`
	ExpiresAt    time.Time        `bun:"expires_at,nullzero" json:"expiresAt,omitempty"`
	Scope        []string         `bun:"scope" json:"scope,omitempty"`
	CollectiveID int64            `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	UserID       int64            `bun:"user_id,notnull" json:"UserId" validate:"required"`
	LastUsedAt   time.Time        `bun:"last_used_at,nullzero" json:"lastUsedAt,omitempty"`
	Data         types.JsonObject `bun:"data" json:"data,omitempty"`
	Timestamps
}

func (pt *PersonalToken) Validate() error {
	return validation.Struct("PersonalToken", pt)
}

// IsExpired is false for tokens without an expiry date.
func (pt *PersonalToken) IsExpired(now time.Time) bool {
	return !pt.ExpiresAt.IsZero() && !pt.ExpiresAt.After(now)
}

func (pt *PersonalToken) Info() Projection {
	return Projection{
		"id":           pt.ID,
		"name":         pt.Name,
		"scope":        pt.Scope,
		"expiresAt":    timeOrNil(pt.ExpiresAt),
		"CollectiveId": pt.CollectiveID,
		"UserId":       pt.UserID,
	}
}

func (*PersonalToken) Indexes() []Index {
	return []Index{{Name: "personal_tokens_token_idx", Columns: []string{"token"}, Unique: true}}
}

// OAuthAuthorizationCode is the single use code exchanged for a UserToken.
type OAuthAuthorizationCode struct {
	bun.BaseModel `bun:"table:oauth_authorization_codes,alias:oac"`

	ID                  int64            `bun:"id,pk,autoincrement" json:"id"`
	Code                string           `bun:"code,notnull" json:"-" validate:"required"`
	RedirectURI         string           `bun:"redirect_uri,notnull" json:"redirectUri" validate:"required,url"`
	ExpiresAt           time.Time        `bun:"expires_at,notnull" json:"expiresAt" validate:"required"`
	ApplicationID       int64            `bun:"application_id,notnull" json:"ApplicationId" validate:"required"`
	UserID              int64            `bun:"user_id,notnull" json:"UserId" validate:"required"`
	CodeChallenge       string           `bun:"code_challenge" json:"codeChallenge,omitempty"`
	CodeChallengeMethod string           `bun:"code_challenge_method" json:"codeChallengeMethod,omitempty" validate:"omitempty,oneof=plain S256"`
	Scope               []string         `bun:"scope" json:"scope,omitempty"`
	Data                types.JsonObject `bun:"data" json:"data,omitempty"`
	Timestamps
}

func (c *OAuthAuthorizationCode) Validate() error {
	return validation.Struct("OAuthAuthorizationCode", c)
}

func (*OAuthAuthorizationCode) Indexes() []Index {
	return []Index{{Name: "oauth_authorization_codes_code_idx", Columns: []string{"code"}, Unique: true}}
}
