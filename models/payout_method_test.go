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
	"errors"
	"testing"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/types"
)

func TestPayoutMethodValidate(t *testing.T) {
	tests := []struct {
		name  string
		pm    PayoutMethod
		field string
	}{
		{"paypal", PayoutMethod{Type: PayoutMethodPaypal, Data: types.JsonObject{"email": "jane@example.com"}}, ""},
		{"paypal extra key", PayoutMethod{Type: PayoutMethodPaypal, Data: types.JsonObject{"email": "jane@example.com", "name": "x"}}, "data"},
		{"paypal no email", PayoutMethod{Type: PayoutMethodPaypal, Data: types.JsonObject{}}, "data"},
		{"paypal bad email", PayoutMethod{Type: PayoutMethodPaypal, Data: types.JsonObject{"email": "nope"}}, "data.email"},
		{"other", PayoutMethod{Type: PayoutMethodOther, Data: types.JsonObject{"content": "Send a check"}}, ""},
		{"other empty", PayoutMethod{Type: PayoutMethodOther, Data: types.JsonObject{}}, "data.content"},
		{"bank", PayoutMethod{Type: PayoutMethodBankAccount, Data: types.JsonObject{"currency": "EUR"}}, ""},
		{"bank no currency", PayoutMethod{Type: PayoutMethodBankAccount, Data: types.JsonObject{"iban": "x"}}, "data.currency"},
		{"unknown type", PayoutMethod{Type: "CASH", Data: types.JsonObject{}}, "type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pm.CollectiveID = 1
			err := tt.pm.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			var verr *errs.ValidationError
			if !errors.As(err, &verr) || !verr.Has(tt.field) {
				t.Fatalf("expected failure on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestPayoutMethodSameData(t *testing.T) {
	pm := &PayoutMethod{Data: types.JsonObject{"currency": "EUR", "details": map[string]interface{}{"iban": "FR76", "bic": "X"}}}
	if !pm.SameData(types.JsonObject{"details": map[string]interface{}{"bic": "X", "iban": "FR76"}, "currency": "EUR"}) {
		t.Error("key order must not matter")
	}
	if pm.SameData(types.JsonObject{"currency": "USD"}) {
		t.Error("different data reported as same")
	}
}
