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

type VirtualCardProvider string

const (
	VirtualCardProviderStripe  VirtualCardProvider = "STRIPE"
	VirtualCardProviderPrivacy VirtualCardProvider = "PRIVACY"
)

type VirtualCardStatus string

const (
	VirtualCardActive   VirtualCardStatus = "ACTIVE"
	VirtualCardInactive VirtualCardStatus = "INACTIVE"
	VirtualCardCanceled VirtualCardStatus = "CANCELED"
)

// VirtualCardPrivateData is the card secret kept encrypted at rest.
type VirtualCardPrivateData struct {
	CardNumber     string `json:"cardNumber,omitempty"`
	ExpirationDate string `json:"expireDate,omitempty"`
	CVV            string `json:"cvv,omitempty"`
}

// VirtualCard is a payment card issued by a host to a collective. Its id is
// the provider's card id.
type VirtualCard struct {
	bun.BaseModel `bun:"table:virtual_cards,alias:vc"`

	ID                    string              `bun:"id,pk" json:"id" validate:"required,max=255"`
	CollectiveID          int64               `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	HostCollectiveID      int64               `bun:"host_collective_id,notnull" json:"HostCollectiveId" validate:"required"`
	UserID                int64               `bun:"user_id,nullzero" json:"UserId,omitempty"`
	Name                  string              `bun:"name" json:"name,omitempty" validate:"max=255"`
	Last4                 string              `bun:"last4" json:"last4,omitempty" validate:"omitempty,len=4,numeric"`
	Provider              VirtualCardProvider `bun:"provider,notnull" json:"provider" validate:"required,oneof=STRIPE PRIVACY"`
	Currency              string              `bun:"currency,notnull" json:"currency" validate:"required,len=3,uppercase"`
	SpendingLimitAmount   int64               `bun:"spending_limit_amount" json:"spendingLimitAmount,omitempty" validate:"min=0"`
	SpendingLimitInterval string              `bun:"spending_limit_interval" json:"spendingLimitInterval,omitempty" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY YEARLY ALL_TIME PER_AUTHORIZATION"`
	Status                VirtualCardStatus   `bun:"status,notnull" json:"status" validate:"required,oneof=ACTIVE INACTIVE CANCELED"`
	Data                  types.JsonObject    `bun:"data" json:"data,omitempty"`
	PrivateData           string              `bun:"private_data" json:"-"`
	Timestamps

	// Secret holds the decrypted PrivateData; it is never a column.
	Secret *VirtualCardPrivateData `bun:"-" json:"-"`
}

func (vc *VirtualCard) Validate() error {
	return validation.Struct("VirtualCard", vc)
}

func (vc *VirtualCard) IsActive() bool { return vc.Status == VirtualCardActive }

func (vc *VirtualCard) Info() Projection {
	return Projection{
		"id":                  vc.ID,
		"name":                vc.Name,
		"last4":               vc.Last4,
		"provider":            vc.Provider,
		"status":              vc.Status,
		"currency":            vc.Currency,
		"spendingLimitAmount": vc.SpendingLimitAmount,
		"CollectiveId":        vc.CollectiveID,
		"HostCollectiveId":    vc.HostCollectiveID,
	}
}

func (*VirtualCard) Indexes() []Index {
	return []Index{
		{Name: "virtual_cards_collective_id_idx", Columns: []string{"collective_id"}},
		{Name: "virtual_cards_host_collective_id_idx", Columns: []string{"host_collective_id"}},
	}
}
