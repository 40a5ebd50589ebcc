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
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/sanitize"
	"github.com/opencollective/ledger/types"
)

type UpdateStore struct {
	db      bun.IDB
	updates repository.Repository[models.Update]
}

// NewUpdateStore returns an UpdateStore on db.
func NewUpdateStore(db bun.IDB) *UpdateStore {
	return &UpdateStore{db: db, updates: repository.NewRepository[models.Update](db)}
}

// Create stores an unpublished update with a slug unique in its collective.
func (s *UpdateStore) Create(ctx context.Context, u *models.Update) (*models.Update, error) {
	base := sanitize.Slug(u.Slug, models.SlugMaxLength)
	if base == "" {
		base = sanitize.Slug(u.Title, models.SlugMaxLength)
	}
	if base == "" {
		base = "update"
	}
	slug, err := uniqueSlug(ctx, base, models.SlugMaxLength, func(ctx context.Context, slug string) (bool, error) {
		return withDeletedExists(ctx, s.updates, "collective_id = ? AND slug = ?", u.CollectiveID, slug)
	})
	if err != nil {
		return nil, err
	}
	u.Slug = slug
	u.HTML = sanitize.RichHTML(u.HTML)
	u.Summary = sanitize.Summary(u.HTML, models.UpdateSummaryLength)
	u.PublishedAt = time.Time{}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.updates.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create update: %w", err)
	}
	return u, nil
}

// Get returns the update with id.
func (s *UpdateStore) Get(ctx context.Context, id int64) (*models.Update, error) {
	return s.updates.GetOne(ctx, id)
}

// GetBySlug returns the update of collectiveID with slug.
func (s *UpdateStore) GetBySlug(ctx context.Context, collectiveID int64, slug string) (*models.Update, error) {
	return s.updates.First(ctx, "up.collective_id = ? AND up.slug = ?", collectiveID, slug)
}

// Edit replaces the title and body. Empty values are left untouched.
func (s *UpdateStore) Edit(ctx context.Context, id int64, title, html string, editedByUserID int64) (*models.Update, error) {
	u, err := s.updates.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if title != "" {
		u.Title = title
	}
	if html != "" {
		u.HTML = sanitize.RichHTML(html)
		u.Summary = sanitize.Summary(u.HTML, models.UpdateSummaryLength)
	}
	u.LastEditedByUserID = editedByUserID
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.updates.Update(ctx, u, "title", "html", "summary", "last_edited_by_user_id"); err != nil {
		return nil, err
	}
	return u, nil
}

// Publish stamps PublishedAt and records who gets notified.
func (s *UpdateStore) Publish(ctx context.Context, id int64, audience models.UpdateAudience) (*models.Update, []events.Event, error) {
	u, err := s.updates.GetOne(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if u.IsPublished() {
		return nil, nil, errs.Invariant("Update %d is already published", u.ID)
	}
	if audience == "" {
		audience = models.UpdateAudienceAll
	}
	u.PublishedAt = models.Now()
	u.NotificationAudience = audience
	if err := u.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.updates.Update(ctx, u, "published_at", "notification_audience"); err != nil {
		return nil, nil, err
	}
	data := u.Public()
	ev := event(events.CollectiveUpdatePublished, u.CollectiveID, data)
	ev.FromCollectiveID = u.FromCollectiveID
	ev.UserID = u.CreatedByUserID
	return u, []events.Event{ev}, nil
}

// Unpublish clears the publication date.
func (s *UpdateStore) Unpublish(ctx context.Context, id int64) (*models.Update, error) {
	u, err := s.updates.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	u.PublishedAt = time.Time{}
	if err := s.updates.Update(ctx, u, "published_at"); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete soft deletes the update.
func (s *UpdateStore) Delete(ctx context.Context, id int64) error {
	return s.updates.Delete(ctx, id)
}

// ListForCollective returns the updates of collectiveID, newest first,
// only the published ones when publishedOnly is set.
func (s *UpdateStore) ListForCollective(ctx context.Context, collectiveID int64, publishedOnly bool) ([]*models.Update, error) {
	filter := types.NewQueryFilter("up.collective_id = ?", collectiveID)
	if publishedOnly {
		filter = types.NewQueryFilter("up.collective_id = ? AND up.published_at IS NOT NULL", collectiveID)
	}
	return s.updates.List(ctx, filter, "up.id DESC")
}

type ReactionStore struct {
	db        bun.IDB
	reactions repository.Repository[models.EmojiReaction]
}

// NewReactionStore returns a ReactionStore on db.
func NewReactionStore(db bun.IDB) *ReactionStore {
	return &ReactionStore{db: db, reactions: repository.NewRepository[models.EmojiReaction](db)}
}

// AddReactionOnComment adds emoji to commentID, or returns the identical
// reaction already there.
func (s *ReactionStore) AddReactionOnComment(ctx context.Context, userID, fromCollectiveID, commentID int64, emoji string) (*models.EmojiReaction, error) {
	return s.add(ctx, &models.EmojiReaction{UserID: userID, FromCollectiveID: fromCollectiveID, CommentID: commentID, Emoji: emoji},
		"er.user_id = ? AND er.from_collective_id = ? AND er.comment_id = ? AND er.emoji = ?", commentID)
}

// AddReactionOnUpdate adds emoji to updateID, or returns the identical
// reaction already there.
func (s *ReactionStore) AddReactionOnUpdate(ctx context.Context, userID, fromCollectiveID, updateID int64, emoji string) (*models.EmojiReaction, error) {
	return s.add(ctx, &models.EmojiReaction{UserID: userID, FromCollectiveID: fromCollectiveID, UpdateID: updateID, Emoji: emoji},
		"er.user_id = ? AND er.from_collective_id = ? AND er.update_id = ? AND er.emoji = ?", updateID)
}

// add inserts r once. A duplicate returns the row already stored; there is
// no retry.
func (s *ReactionStore) add(ctx context.Context, r *models.EmojiReaction, existing string, targetID int64) (*models.EmojiReaction, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	err := s.reactions.Create(ctx, r)
	if errors.Is(err, errs.ErrAlreadyExists) {
		return s.reactions.First(ctx, existing, r.UserID, r.FromCollectiveID, targetID, r.Emoji)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Remove deletes the reaction of userID. Reactions are removed for good so
// the same emoji can be added again.
func (s *ReactionStore) Remove(ctx context.Context, id, userID int64) error {
	res, err := s.db.NewDelete().Model((*models.EmojiReaction)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		ForceDelete().
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// CountByEmoji tallies the reactions on a comment or an update.
func (s *ReactionStore) CountByEmoji(ctx context.Context, commentID, updateID int64) ([]models.EmojiCount, error) {
	q := s.db.NewSelect().Model((*models.EmojiReaction)(nil)).
		Column("er.emoji").
		ColumnExpr("COUNT(*) AS count").
		Group("er.emoji").
		Order("count DESC", "er.emoji ASC")
	switch {
	case commentID != 0:
		q = q.Where("er.comment_id = ?", commentID)
	case updateID != 0:
		q = q.Where("er.update_id = ?", updateID)
	default:
		return nil, errs.Invariant("Reaction must be linked to either a comment or an update")
	}
	var out []models.EmojiCount
	if err := q.Scan(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type SocialLinkStore struct {
	db    bun.IDB
	links repository.Repository[models.SocialLink]
}

// NewSocialLinkStore returns a SocialLinkStore on db.
func NewSocialLinkStore(db bun.IDB) *SocialLinkStore {
	return &SocialLinkStore{db: db, links: repository.NewRepository[models.SocialLink](db)}
}

// ReplaceForCollective swaps the links of collectiveID for links, keeping
// their order.
func (s *SocialLinkStore) ReplaceForCollective(ctx context.Context, collectiveID int64, links []*models.SocialLink) ([]*models.SocialLink, error) {
	now := models.Now()
	seen := make(map[[2]string]struct{}, len(links))
	for i, l := range links {
		l.CollectiveID = collectiveID
		l.Position = i
		l.CreatedAt, l.UpdatedAt = now, now
		if err := l.Validate(); err != nil {
			return nil, err
		}
		key := [2]string{string(l.Type), l.URL}
		if _, dup := seen[key]; dup {
			return nil, errs.NewValidationError("SocialLink", "url", fmt.Sprintf("%s is listed twice", l.URL))
		}
		seen[key] = struct{}{}
	}
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.links.Tx(tx).DeleteWhere(ctx, "collective_id = ?", collectiveID); err != nil {
			return err
		}
		return s.links.Tx(tx).Create(ctx, links...)
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// ListForCollective returns the links of collectiveID in display order.
func (s *SocialLinkStore) ListForCollective(ctx context.Context, collectiveID int64) ([]*models.SocialLink, error) {
	return s.links.List(ctx, types.NewQueryFilter("sl.collective_id = ?", collectiveID), "sl.position ASC")
}
