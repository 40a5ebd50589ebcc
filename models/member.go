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

type MemberRole string

const (
	RoleAdmin       MemberRole = "ADMIN"
	RoleMember      MemberRole = "MEMBER"
	RoleAccountant  MemberRole = "ACCOUNTANT"
	RoleBacker      MemberRole = "BACKER"
	RoleFollower    MemberRole = "FOLLOWER"
	RoleHost        MemberRole = "HOST"
	RoleAttendee    MemberRole = "ATTENDEE"
	RoleContributor MemberRole = "CONTRIBUTOR"
)

// Member links MemberCollectiveID to CollectiveID with a role.
type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID                 int64      `bun:"id,pk,autoincrement" json:"id"`
	CollectiveID       int64      `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	MemberCollectiveID int64      `bun:"member_collective_id,notnull" json:"MemberCollectiveId" validate:"required"`
	CreatedByUserID    int64      `bun:"created_by_user_id,nullzero" json:"CreatedByUserId,omitempty"`
	TierID             int64      `bun:"tier_id,nullzero" json:"TierId,omitempty"`
	Role               MemberRole `bun:"role,notnull" json:"role" validate:"required,oneof=ADMIN MEMBER ACCOUNTANT BACKER FOLLOWER HOST ATTENDEE CONTRIBUTOR"`
	Since              time.Time  `bun:"since,nullzero,notnull" json:"since"`
	Description        string     `bun:"description" json:"description,omitempty" validate:"max=255"`
	PublicMessage      string     `bun:"public_message" json:"publicMessage,omitempty" validate:"max=255"`
	Timestamps
}

func (m *Member) Validate() error {
	return validation.Struct("Member", m)
}

func (m *Member) Info() Projection {
	return Projection{
		"id":                 m.ID,
		"role":               m.Role,
		"CollectiveId":       m.CollectiveID,
		"MemberCollectiveId": m.MemberCollectiveID,
		"TierId":             idOrNil(m.TierID),
		"since":              m.Since,
		"description":        m.Description,
	}
}

func (*Member) Indexes() []Index {
	return []Index{
		{Name: "members_collective_id_role_idx", Columns: []string{"collective_id", "role"}},
		{Name: "members_member_collective_id_idx", Columns: []string{"member_collective_id"}},
	}
}

// MemberInvitation is a pending offer to become a Member. Only the roles
// that grant account access can be offered.
type MemberInvitation struct {
	bun.BaseModel `bun:"table:member_invitations,alias:mi"`

	ID                 int64      `bun:"id,pk,autoincrement" json:"id"`
	CollectiveID       int64      `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	MemberCollectiveID int64      `bun:"member_collective_id,notnull" json:"MemberCollectiveId" validate:"required"`
	CreatedByUserID    int64      `bun:"created_by_user_id,nullzero" json:"CreatedByUserId,omitempty"`
	TierID             int64      `bun:"tier_id,nullzero" json:"TierId,omitempty"`
	Role               MemberRole `bun:"role,notnull" json:"role" validate:"required,oneof=ADMIN MEMBER ACCOUNTANT"`
	Since              time.Time  `bun:"since,nullzero" json:"since,omitempty"`
	Description        string     `bun:"description" json:"description,omitempty" validate:"max=255"`
	Timestamps
}

func (i *MemberInvitation) Validate() error {
	return validation.Struct("MemberInvitation", i)
}

// Member materializes the invitation.
func (i *MemberInvitation) Member() *Member {
	since := i.Since
	if since.IsZero() {
		since = Now()
	}
	return &Member{
		CollectiveID:       i.CollectiveID,
		MemberCollectiveID: i.MemberCollectiveID,
		CreatedByUserID:    i.CreatedByUserID,
		TierID:             i.TierID,
		Role:               i.Role,
		Since:              since,
		Description:        i.Description,
	}
}

func (i *MemberInvitation) Info() Projection {
	return Projection{
		"id":                 i.ID,
		"role":               i.Role,
		"CollectiveId":       i.CollectiveID,
		"MemberCollectiveId": i.MemberCollectiveID,
		"createdAt":          i.CreatedAt,
	}
}

func (*MemberInvitation) Indexes() []Index {
	return []Index{{Name: "member_invitations_collective_member_idx", Columns: []string{"collective_id", "member_collective_id"}}}
}
