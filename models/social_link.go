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

	"github.com/opencollective/ledger/validation"
)

type SocialLinkType string

const (
	SocialLinkWebsite   SocialLinkType = "WEBSITE"
	SocialLinkTwitter   SocialLinkType = "TWITTER"
	SocialLinkGithub    SocialLinkType = "GITHUB"
	SocialLinkGitlab    SocialLinkType = "GITLAB"
	SocialLinkMastodon  SocialLinkType = "MASTODON"
	SocialLinkDiscord   SocialLinkType = "DISCORD"
	SocialLinkLinkedIn  SocialLinkType = "LINKEDIN"
	SocialLinkYoutube   SocialLinkType = "YOUTUBE"
	SocialLinkInstagram SocialLinkType = "INSTAGRAM"
	SocialLinkDiscourse SocialLinkType = "DISCOURSE"
	SocialLinkMeetup    SocialLinkType = "MEETUP"
	SocialLinkSlack     SocialLinkType = "SLACK"
	SocialLinkFacebook  SocialLinkType = "FACEBOOK"
	SocialLinkTumblr    SocialLinkType = "TUMBLR"
	SocialLinkPatreon   SocialLinkType = "PATREON"
	SocialLinkPixelfed  SocialLinkType = "PIXELFED"
	SocialLinkThreads   SocialLinkType = "THREADS"
	SocialLinkGhost     SocialLinkType = "GHOST"
	SocialLinkTiktok    SocialLinkType = "TIKTOK"
	SocialLinkBluesky   SocialLinkType = "BLUESKY"
)

// SocialLink is identified by (CollectiveID, Type, URL); Position keeps the
// display order. Links are replaced wholesale, so rows are hard deleted.
type SocialLink struct {
	bun.BaseModel `bun:"table:social_links,alias:sl"`

	CollectiveID int64          `bun:"collective_id,pk" json:"CollectiveId" validate:"required"`
	Type         SocialLinkType `bun:"type,pk" json:"type" validate:"required,oneof=WEBSITE TWITTER GITHUB GITLAB MASTODON DISCORD LINKEDIN YOUTUBE INSTAGRAM DISCOURSE MEETUP SLACK FACEBOOK TUMBLR PATREON PIXELFED THREADS GHOST TIKTOK BLUESKY"`
	URL          string         `bun:"url,pk,type:varchar(255)" json:"url" validate:"required,url,max=255"`
	Position     int            `bun:"position,notnull" json:"order"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull" json:"createdAt"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull" json:"updatedAt"`
}

func (l *SocialLink) Validate() error {
	return validation.Struct("SocialLink", l)
}

func (l *SocialLink) Info() Projection {
	return Projection{"type": l.Type, "url": l.URL, "order": l.Position}
}

func (*SocialLink) Indexes() []Index {
	return []Index{{Name: "social_links_collective_position_idx", Columns: []string{"collective_id", "position"}}}
}
