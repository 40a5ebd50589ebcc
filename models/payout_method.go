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
	"encoding/json"
	"reflect"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/validation"
)

type PayoutMethodType string

const (
	PayoutMethodOther          PayoutMethodType = "OTHER"
	PayoutMethodPaypal         PayoutMethodType = "PAYPAL"
	PayoutMethodBankAccount    PayoutMethodType = "BANK_ACCOUNT"
	PayoutMethodAccountBalance PayoutMethodType = "ACCOUNT_BALANCE"
	PayoutMethodCreditCard     PayoutMethodType = "CREDIT_CARD"
)

// PayoutMethod is where a payee wants to receive money. The shape of Data
// depends on Type.
type PayoutMethod struct {
	bun.BaseModel `bun:"table:payout_methods,alias:pm"`

	ID              int64            `bun:"id,pk,autoincrement" json:"id"`
	Type            PayoutMethodType `bun:"type,notnull" json:"type" validate:"required,oneof=OTHER PAYPAL BANK_ACCOUNT ACCOUNT_BALANCE CREDIT_CARD"`
	Name            string           `bun:"name" json:"name,omitempty" validate:"max=255"`
	Data            types.JsonObject `bun:"data,notnull" json:"data"`
	IsSaved         bool             `bun:"is_saved,notnull" json:"isSaved"`
	CollectiveID    int64            `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	CreatedByUserID int64            `bun:"created_by_user_id,nullzero" json:"CreatedByUserId,omitempty"`
	Timestamps
}

// Validate checks the fields and the data shape of the method type: PayPal
// data holds exactly a valid email, OTHER needs a content and bank
// accounts a currency.
func (pm *PayoutMethod) Validate() error {
	if err := validation.Struct("PayoutMethod", pm); err != nil {
		return err
	}
	switch pm.Type {
	case PayoutMethodPaypal:
		email, ok := pm.Data["email"].(string)
		if len(pm.Data) != 1 || !ok {
			return errs.NewValidationError("PayoutMethod", "data", "Only email is allowed in PayPal data")
		}
		if !validation.IsEmail(email) {
			return errs.NewValidationError("PayoutMethod", "data.email", "Invalid PayPal email address")
		}
	case PayoutMethodOther:
		if content, _ := pm.Data["content"].(string); content == "" {
			return errs.NewValidationError("PayoutMethod", "data.content", "is required")
		}
	case PayoutMethodBankAccount:
		if currency, _ := pm.Data["currency"].(string); currency == "" {
			return errs.NewValidationError("PayoutMethod", "data.currency", "is required")
		}
	}
	return nil
}

// SameData reports whether data describes the same destination, comparing
// the JSON documents.
func (pm *PayoutMethod) SameData(data types.JsonObject) bool {
	return reflect.DeepEqual(normalizeJSON(pm.Data), normalizeJSON(data))
}

func normalizeJSON(v types.JsonObject) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out interface{}
	_ = json.Unmarshal(b, &out)
	return out
}

// Minimal leaves Data out: it can hold bank details.
func (pm *PayoutMethod) Minimal() Projection {
	return Projection{"id": pm.ID, "type": pm.Type, "name": pm.Name, "isSaved": pm.IsSaved, "CollectiveId": pm.CollectiveID}
}

func (pm *PayoutMethod) Info() Projection {
	p := pm.Minimal()
	p["data"] = pm.Data
	p["createdAt"] = pm.CreatedAt
	return p
}

func (*PayoutMethod) Indexes() []Index {
	return []Index{{Name: "payout_methods_collective_id_idx", Columns: []string{"collective_id"}}}
}
