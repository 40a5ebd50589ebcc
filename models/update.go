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

type UpdateAudience string

const (
	UpdateAudienceAll              UpdateAudience = "ALL"
	UpdateAudienceFinancialContrib UpdateAudience = "FINANCIAL_CONTRIBUTORS"
	UpdateAudienceHostedCollective UpdateAudience = "COLLECTIVE_ADMINS"
	UpdateAudienceNoOne            UpdateAudience = "NO_ONE"
)

const UpdateSummaryLength = 240

// Update is a news post published by a collective.
type Update struct {
	bun.BaseModel `bun:"table:updates,alias:up"`

	ID                   int64            `bun:"id,pk,autoincrement" json:"id"`
	Title                string           `bun:"title,notnull" json:"title" validate:"required,max=255"`
	Slug                 string           `bun:"slug,notnull" json:"slug" validate:"required,slug,max=255"`
	HTML                 string           `bun:"html" json:"html"`
	Summary              string           `bun:"summary" json:"summary"`
	IsPrivate            bool             `bun:"is_private,notnull" json:"isPrivate"`
	IsChangelog          bool             `bun:"is_changelog,notnull" json:"isChangelog"`
	NotificationAudience UpdateAudience   `bun:"notification_audience" json:"notificationAudience,omitempty" validate:"omitempty,oneof=ALL FINANCIAL_CONTRIBUTORS COLLECTIVE_ADMINS NO_ONE"`
	PublishedAt          time.Time        `bun:"published_at,nullzero" json:"publishedAt,omitempty"`
	MakePublicOn         time.Time        `bun:"make_public_on,nullzero" json:"makePublicOn,omitempty"`
	CollectiveID         int64            `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	FromCollectiveID     int64            `bun:"from_collective_id,notnull" json:"FromCollectiveId" validate:"required"`
	CreatedByUserID      int64            `bun:"created_by_user_id,notnull" json:"CreatedByUserId" validate:"required"`
	LastEditedByUserID   int64            `bun:"last_edited_by_user_id,nullzero" json:"LastEditedByUserId,omitempty"`
	Data                 types.JsonObject `bun:"data" json:"data,omitempty"`
	Timestamps
}

func (u *Update) Validate() error {
	return validation.Struct("Update", u)
}

func (u *Update) IsPublished() bool { return !u.PublishedAt.IsZero() }

func (u *Update) Info() Projection {
	return Projection{
		"id":                   u.ID,
		"title":                u.Title,
		"slug":                 u.Slug,
		"summary":              u.Summary,
		"isPrivate":            u.IsPrivate,
		"notificationAudience": u.NotificationAudience,
		"publishedAt":          timeOrNil(u.PublishedAt),
		"CollectiveId":         u.CollectiveID,
		"FromCollectiveId":     u.FromCollectiveID,
	}
}

// Public hides the body of private updates.
func (u *Update) Public() Projection {
	p := u.Info()
	if !u.IsPrivate {
		p["html"] = u.HTML
	}
	return p
}

func (*Update) Indexes() []Index {
	return []Index{{Name: "updates_collective_slug_idx", Columns: []string{"collective_id", "slug"}, Unique: true}}
}
