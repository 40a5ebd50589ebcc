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

	"github.com/shopspring/decimal"

	"github.com/opencollective/ledger/errs"
)

func TestCollectiveValidate(t *testing.T) {
	base := func() *Collective {
		return &Collective{Type: CollectiveTypeCollective, Slug: "babel", Name: "Babel", Currency: "USD"}
	}
	tests := []struct {
		name   string
		mutate func(c *Collective)
		field  string
	}{
		{"valid", func(*Collective) {}, ""},
		{"reserved slug", func(c *Collective) { c.Slug = "admin" }, "slug"},
		{"uppercase slug", func(c *Collective) { c.Slug = "Babel" }, "slug"},
		{"bad website", func(c *Collective) { c.Website = "not a url" }, "website"},
		{"unknown type", func(c *Collective) { c.Type = "CLUB" }, "type"},
		{"host fee above 100", func(c *Collective) { c.HostFeePercent = decimal.NewNullDecimal(decimal.NewFromInt(101)) }, "hostFeePercent"},
		{"negative platform fee", func(c *Collective) { c.PlatformFeePercent = decimal.NewNullDecimal(decimal.NewFromInt(-1)) }, "platformFeePercent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
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

func TestCommentNeedsTarget(t *testing.T) {
	c := &Comment{HTML: "<p>hi</p>", CollectiveID: 1, FromCollectiveID: 2, CreatedByUserID: 3, Type: CommentTypeComment}
	err := c.Validate()
	if !errs.IsInvariant(err) || err.Error() != "Comment must be linked to an expense, an update or a conversation" {
		t.Fatalf("expected invariant error, got %v", err)
	}
	c.ConversationID = 4
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestEmojiReactionValidate(t *testing.T) {
	r := &EmojiReaction{UserID: 1, FromCollectiveID: 2, CommentID: 3, Emoji: "🎉"}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	r.Emoji = "🍕"
	if !errs.IsValidation(r.Validate()) {
		t.Error("emoji outside the allow-list accepted")
	}
	r.Emoji = "🎉"
	r.UpdateID = 4
	if !errs.IsInvariant(r.Validate()) {
		t.Error("reaction on both a comment and an update accepted")
	}
}

func TestTierValidate(t *testing.T) {
	tier := &Tier{CollectiveID: 1, Name: "Backer", Slug: "backer", Type: TierTypeTier, AmountType: AmountTypeFixed, Currency: "USD"}
	if !errs.IsValidation(tier.Validate()) {
		t.Error("fixed tier without amount accepted")
	}
	tier.Amount = 500
	if err := tier.Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	tier.AmountType = AmountTypeFlexible
	tier.MinimumAmount = 300
	tier.Presets = []int64{500, 200}
	if !errs.IsValidation(tier.Validate()) {
		t.Error("preset below the minimum accepted")
	}

	tier.MaxQuantity = 10
	if left, limited := tier.AvailableQuantity(4); !limited || left != 6 {
		t.Errorf("AvailableQuantity = %d, %v", left, limited)
	}
	if left, _ := tier.AvailableQuantity(12); left != 0 {
		t.Errorf("oversold tier should report 0, got %d", left)
	}
	tier.MaxQuantity = 0
	if _, limited := tier.AvailableQuantity(100); limited {
		t.Error("tier without max quantity is unlimited")
	}
}
