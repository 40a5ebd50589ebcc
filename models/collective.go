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

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/validation"
)

type CollectiveType string

const (
	CollectiveTypeUser         CollectiveType = "USER"
	CollectiveTypeOrganization CollectiveType = "ORGANIZATION"
	CollectiveTypeCollective   CollectiveType = "COLLECTIVE"
	CollectiveTypeEvent        CollectiveType = "EVENT"
	CollectiveTypeProject      CollectiveType = "PROJECT"
	CollectiveTypeFund         CollectiveType = "FUND"
	CollectiveTypeVendor       CollectiveType = "VENDOR"
)

// SlugMaxLength bounds generated and user supplied slugs.
const SlugMaxLength = 255

// ReservedSlugs cannot be claimed by any collective since they clash with
// top level routes.
var ReservedSlugs = map[string]struct{}{
	"about": {}, "admin": {}, "api": {}, "applications": {}, "apply": {},
	"collectives": {}, "contact": {}, "create": {}, "discover": {},
	"donate": {}, "expenses": {}, "faq": {}, "help": {}, "home": {},
	"hosts": {}, "join": {}, "login": {}, "opencollective": {},
	"order": {}, "orders": {}, "pricing": {}, "privacypolicy": {},
	"search": {}, "signin": {}, "signup": {}, "subscriptions": {},
	"tos": {}, "transactions": {}, "updates": {},
}

func IsReservedSlug(slug string) bool {
	_, ok := ReservedSlugs[slug]
	return ok
}

// Collective is the central party: a user profile, an organization, a
// project, an event or a fund. Hosts are collectives with IsHostAccount.
type Collective struct {
	bun.BaseModel `bun:"table:collectives,alias:c"`

	ID                 int64               `bun:"id,pk,autoincrement" json:"id"`
	Type               CollectiveType      `bun:"type,notnull" json:"type" validate:"required,oneof=USER ORGANIZATION COLLECTIVE EVENT PROJECT FUND VENDOR"`
	Slug               string              `bun:"slug,notnull,unique" json:"slug" validate:"required,max=255,slug"`
	Name               string              `bun:"name,notnull" json:"name" validate:"required,max=255"`
	LegalName          string              `bun:"legal_name" json:"legalName,omitempty" validate:"max=255"`
	Description        string              `bun:"description" json:"description,omitempty" validate:"max=255"`
	LongDescription    string              `bun:"long_description" json:"longDescription,omitempty"`
	Currency           string              `bun:"currency,notnull" json:"currency" validate:"required,len=3,uppercase"`
	Website            string              `bun:"website" json:"website,omitempty" validate:"omitempty,url,max=255"`
	CountryISO         string              `bun:"country_iso" json:"countryISO,omitempty" validate:"omitempty,len=2"`
	Tags               []string            `bun:"tags" json:"tags,omitempty"`
	HostCollectiveID   int64               `bun:"host_collective_id,nullzero" json:"HostCollectiveId,omitempty"`
	ParentCollectiveID int64               `bun:"parent_collective_id,nullzero" json:"ParentCollectiveId,omitempty"`
	CreatedByUserID    int64               `bun:"created_by_user_id,nullzero" json:"CreatedByUserId,omitempty"`
	IsActive           bool                `bun:"is_active,notnull" json:"isActive"`
	IsHostAccount      bool                `bun:"is_host_account,notnull" json:"isHostAccount"`
	IsIncognito        bool                `bun:"is_incognito,notnull" json:"isIncognito"`
	ApprovedAt         time.Time           `bun:"approved_at,nullzero" json:"approvedAt,omitempty"`
	DeactivatedAt      time.Time           `bun:"deactivated_at,nullzero" json:"deactivatedAt,omitempty"`
	HostFeePercent     decimal.NullDecimal `bun:"host_fee_percent,type:numeric" json:"hostFeePercent"`
	PlatformFeePercent decimal.NullDecimal `bun:"platform_fee_percent,type:numeric" json:"platformFeePercent"`
	Settings           types.JsonObject    `bun:"settings" json:"settings,omitempty"`
	Data               types.JsonObject    `bun:"data" json:"data,omitempty"`
	Timestamps
}

var hundred = decimal.NewFromInt(100)

func (c *Collective) Validate() error {
	if err := validation.Struct("Collective", c); err != nil {
		return err
	}
	if IsReservedSlug(c.Slug) {
		return errs.NewValidationError("Collective", "slug", "is reserved")
	}
	for field, fee := range map[string]decimal.NullDecimal{"hostFeePercent": c.HostFeePercent, "platformFeePercent": c.PlatformFeePercent} {
		if fee.Valid && (fee.Decimal.IsNegative() || fee.Decimal.GreaterThan(hundred)) {
			return errs.NewValidationError("Collective", field, "must be between 0 and 100")
		}
	}
	return nil
}

func (c *Collective) IsHost() bool { return c.IsHostAccount }

func (c *Collective) IsUser() bool { return c.Type == CollectiveTypeUser }

func (c *Collective) IsDeactivated() bool { return !c.DeactivatedAt.IsZero() }

func (c *Collective) Info() Projection {
	p := Projection{
		"id":            c.ID,
		"type":          c.Type,
		"slug":          c.Slug,
		"name":          c.Name,
		"legalName":     c.LegalName,
		"currency":      c.Currency,
		"website":       c.Website,
		"description":   c.Description,
		"isActive":      c.IsActive,
		"isHostAccount": c.IsHostAccount,
		"createdAt":     c.CreatedAt,
	}
	if c.HostFeePercent.Valid {
		p["hostFeePercent"] = c.HostFeePercent.Decimal.String()
	}
	return p
}

func (c *Collective) Minimal() Projection {
	return Projection{"id": c.ID, "type": c.Type, "name": c.Name, "slug": c.Slug}
}

// Public omits the legal name and anything host private.
func (c *Collective) Public() Projection {
	return Projection{
		"id":            c.ID,
		"type":          c.Type,
		"slug":          c.Slug,
		"name":          c.Name,
		"description":   c.Description,
		"website":       c.Website,
		"currency":      c.Currency,
		"tags":          c.Tags,
		"isHostAccount": c.IsHostAccount,
	}
}

func (*Collective) Indexes() []Index {
	return []Index{
		{Name: "collectives_host_collective_id_idx", Columns: []string{"host_collective_id"}},
		{Name: "collectives_parent_collective_id_idx", Columns: []string{"parent_collective_id"}},
	}
}
