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
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/validation"
)

// ConnectedAccount is an OAuth connection to a third party service
// (stripe, paypal, github, ...). Token and RefreshToken are stored
// encrypted.
type ConnectedAccount struct {
	bun.BaseModel `bun:"table:connected_accounts,alias:ca"`

	ID              int64            `bun:"id,pk,autoincrement" json:"id"`
	Service         string           `bun:"service,notnull" json:"service" validate:"required,max=64"`
	Username        string           `bun:"username" json:"username,omitempty" validate:"max=255"`
	ClientID        string           `bun:"client_id" json:"clientId,omitempty" validate:"max=255"`
	Token           string           `bun:"token" json:"-"`
	RefreshToken    string           `bun:"refresh_token" json:"-"`
	Data            types.JsonObject `bun:"data" json:"data,omitempty"`
	Settings        types.JsonObject `bun:"settings" json:"settings,omitempty"`
	CollectiveID    int64            `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	CreatedByUserID int64            `bun:"created_by_user_id,nullzero" json:"CreatedByUserId,omitempty"`
	Timestamps
}

func (ca *ConnectedAccount) Validate() error {
	return validation.Struct("ConnectedAccount", ca)
}

// Info never includes the tokens.
func (ca *ConnectedAccount) Info() Projection {
	return Projection{
		"id":           ca.ID,
		"service":      ca.Service,
		"username":     ca.Username,
		"settings":     ca.Settings,
		"CollectiveId": ca.CollectiveID,
		"createdAt":    ca.CreatedAt,
		"updatedAt":    ca.UpdatedAt,
	}
}

func (*ConnectedAccount) Indexes() []Index {
	return []Index{{Name: "connected_accounts_collective_service_idx", Columns: []string{"collective_id", "service"}}}
}
