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

package validation

import (
	"testing"

	"github.com/opencollective/ledger/errs"
)

type sample struct {
	Name     string `json:"name" validate:"required,max=5"`
	Currency string `json:"currency" validate:"omitempty,iso4217"`
	Slug     string `json:"slug" validate:"slug"`
	Website  string `json:"website" validate:"omitempty,url"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name   string
		in     sample
		fields []string
	}{
		{"valid", sample{Name: "abc", Currency: "USD", Slug: "my-slug"}, nil},
		{"missing name", sample{}, []string{"name"}},
		{"too long", sample{Name: "abcdefg"}, []string{"name"}},
		{"bad currency", sample{Name: "a", Currency: "XXXX"}, []string{"currency"}},
		{"bad slug", sample{Name: "a", Slug: "Not A Slug"}, []string{"slug"}},
		{"bad website", sample{Name: "a", Website: "nope"}, []string{"website"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct("Sample", tt.in)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			verr, ok := err.(*errs.ValidationError)
			if !ok {
				t.Fatalf("expected *errs.ValidationError, got %T (%v)", err, err)
			}
			for _, f := range tt.fields {
				if !verr.Has(f) {
					t.Errorf("expected failure on %q, got %v", f, verr.Fields)
				}
			}
		})
	}
}

func TestHelpers(t *testing.T) {
	if !IsEmail("jane@example.com") || IsEmail("jane") {
		t.Error("IsEmail mismatch")
	}
	if !IsURL("https://opencollective.com/x") || IsURL("opencollective") {
		t.Error("IsURL mismatch")
	}
	if !IsSlug("a-b-1") || IsSlug("-a") || IsSlug("A") {
		t.Error("IsSlug mismatch")
	}
}
