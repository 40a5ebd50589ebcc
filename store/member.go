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

package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
)

type MemberStore struct {
	db          bun.IDB
	members     repository.Repository[models.Member]
	invitations repository.Repository[models.MemberInvitation]
	collectives repository.Repository[models.Collective]
}

// NewMemberStore returns a MemberStore on db.
func NewMemberStore(db bun.IDB) *MemberStore {
	return &MemberStore{
		db:          db,
		members:     repository.NewRepository[models.Member](db),
		invitations: repository.NewRepository[models.MemberInvitation](db),
		collectives: repository.NewRepository[models.Collective](db),
	}
}

// Create adds the membership, defaulting Since to now.
func (s *MemberStore) Create(ctx context.Context, m *models.Member) (*models.Member, error) {
	if m.Since.IsZero() {
		m.Since = models.Now()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := s.members.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	return m, nil
}

// ListForCollective returns the members of collectiveID, restricted to roles
// when any are given.
func (s *MemberStore) ListForCollective(ctx context.Context, collectiveID int64, roles ...models.MemberRole) ([]*models.Member, error) {
	var out []*models.Member
	q := s.members.NewSelect().Model(&out).Where("m.collective_id = ?", collectiveID)
	if len(roles) > 0 {
		q = q.Where("m.role IN (?)", bun.In(roles))
	}
	err := q.Order("m.id ASC").Scan(ctx)
	return out, err
}

// IsAdminOf reports whether memberCollectiveID administers collectiveID,
// directly or through the parent collective.
func (s *MemberStore) IsAdminOf(ctx context.Context, memberCollectiveID, collectiveID int64) (bool, error) {
	ids := []int64{collectiveID}
	c, err := s.collectives.GetOne(ctx, collectiveID)
	switch {
	case err == nil && c.ParentCollectiveID != 0:
		ids = append(ids, c.ParentCollectiveID)
	case err != nil && !repository.IsNotFound(err):
		return false, err
	}
	return s.members.Exists(ctx, "m.member_collective_id = ? AND m.role = ? AND m.collective_id IN (?)",
		memberCollectiveID, models.RoleAdmin, bun.In(ids))
}

// Remove soft deletes the membership.
func (s *MemberStore) Remove(ctx context.Context, id int64) error {
	return s.members.Delete(ctx, id)
}

// Invite records an invitation. A pending invitation for the same member
// and role is refreshed instead of duplicated.
func (s *MemberStore) Invite(ctx context.Context, inv *models.MemberInvitation) (*models.MemberInvitation, []events.Event, error) {
	if err := inv.Validate(); err != nil {
		return nil, nil, err
	}
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		invitations := s.invitations.Tx(tx)
		existing, err := invitations.First(ctx, "mi.collective_id = ? AND mi.member_collective_id = ? AND mi.role = ?",
			inv.CollectiveID, inv.MemberCollectiveID, inv.Role)
		switch {
		case err == nil:
			existing.Description = inv.Description
			existing.Since = inv.Since
			existing.TierID = inv.TierID
			existing.CreatedByUserID = inv.CreatedByUserID
			if err := invitations.Update(ctx, existing, "description", "since", "tier_id", "created_by_user_id"); err != nil {
				return err
			}
			*inv = *existing
			return nil
		case repository.IsNotFound(err):
			return invitations.Create(ctx, inv)
		default:
			return err
		}
	})
	if err != nil {
		return nil, nil, err
	}
	e := events.Event{Type: events.CollectiveMemberInvited, CollectiveID: inv.CollectiveID, FromCollectiveID: inv.MemberCollectiveID, Data: inv.Info()}
	return inv, []events.Event{e}, nil
}

// Accept turns the invitation into a Member and removes it.
func (s *MemberStore) Accept(ctx context.Context, invitationID int64) (*models.Member, []events.Event, error) {
	var member *models.Member
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		invitations := s.invitations.Tx(tx)
		inv, err := invitations.GetOne(ctx, invitationID)
		if err != nil {
			return err
		}
		member = inv.Member()
		if err := member.Validate(); err != nil {
			return err
		}
		if err := s.members.Tx(tx).Create(ctx, member); err != nil {
			return fmt.Errorf("failed to create member: %w", err)
		}
		return invitations.Delete(ctx, inv.ID)
	})
	if err != nil {
		return nil, nil, err
	}
	e := events.Event{Type: events.CollectiveMemberCreated, CollectiveID: member.CollectiveID, FromCollectiveID: member.MemberCollectiveID, Data: member.Info()}
	return member, []events.Event{e}, nil
}

// Decline deletes the invitation.
func (s *MemberStore) Decline(ctx context.Context, invitationID int64) ([]events.Event, error) {
	inv, err := s.invitations.GetOne(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if err := s.invitations.Delete(ctx, inv.ID); err != nil {
		return nil, err
	}
	e := events.Event{Type: events.MemberInvitationDeclined, CollectiveID: inv.CollectiveID, FromCollectiveID: inv.MemberCollectiveID, Data: inv.Info()}
	return []events.Event{e}, nil
}

// ListInvitations returns the pending invitations of collectiveID.
func (s *MemberStore) ListInvitations(ctx context.Context, collectiveID int64) ([]*models.MemberInvitation, error) {
	return s.invitations.Query(ctx, "mi.collective_id = ?", collectiveID)
}
