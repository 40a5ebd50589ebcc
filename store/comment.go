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
	"strings"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/sanitize"
	"github.com/opencollective/ledger/types"
)

// CommentTarget selects the thread a comment belongs to. Exactly the
// non zero ids are matched.
type CommentTarget struct {
	ExpenseID      int64
	UpdateID       int64
	ConversationID int64
}

type CommentStore struct {
	db        bun.IDB
	comments  repository.Repository[models.Comment]
	followers *FollowerStore
}

// NewCommentStore returns a CommentStore that subscribes authors through followers.
func NewCommentStore(db bun.IDB, followers *FollowerStore) *CommentStore {
	return &CommentStore{db: db, comments: repository.NewRepository[models.Comment](db), followers: followers}
}

// Create sanitizes and stores c. Commenting on a conversation makes the
// author follow it.
func (s *CommentStore) Create(ctx context.Context, c *models.Comment) (*models.Comment, []events.Event, error) {
	if c.Type == "" {
		c.Type = models.CommentTypeComment
	}
	c.HTML = sanitize.CommentHTML(c.HTML)
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		return s.create(ctx, tx, c)
	})
	if err != nil {
		return nil, nil, err
	}
	return c, []events.Event{commentEvent(c)}, nil
}

func (s *CommentStore) create(ctx context.Context, tx bun.Tx, c *models.Comment) error {
	if err := s.comments.Tx(tx).Create(ctx, c); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	if c.ConversationID != 0 {
		if _, err := s.followers.follow(ctx, tx, c.CreatedByUserID, c.ConversationID); err != nil {
			return err
		}
	}
	return nil
}

func commentEvent(c *models.Comment) events.Event {
	return events.Event{
		Type:             events.CollectiveCommentCreated,
		CollectiveID:     c.CollectiveID,
		FromCollectiveID: c.FromCollectiveID,
		UserID:           c.CreatedByUserID,
		ExpenseID:        c.ExpenseID,
		Data:             c.Info(),
	}
}

// Get returns the comment with id.
func (s *CommentStore) Get(ctx context.Context, id int64) (*models.Comment, error) {
	return s.comments.GetOne(ctx, id)
}

// Edit replaces the body with the sanitized html.
func (s *CommentStore) Edit(ctx context.Context, id int64, html string) (*models.Comment, error) {
	c, err := s.comments.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	c.HTML = sanitize.CommentHTML(html)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.comments.Update(ctx, c, "html"); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete soft deletes the comment.
func (s *CommentStore) Delete(ctx context.Context, id int64) error {
	return s.comments.Delete(ctx, id)
}

// ListFor returns the comments of target, oldest first.
func (s *CommentStore) ListFor(ctx context.Context, target CommentTarget) ([]*models.Comment, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if target.ExpenseID != 0 {
		clauses, args = append(clauses, "cm.expense_id = ?"), append(args, target.ExpenseID)
	}
	if target.UpdateID != 0 {
		clauses, args = append(clauses, "cm.update_id = ?"), append(args, target.UpdateID)
	}
	if target.ConversationID != 0 {
		clauses, args = append(clauses, "cm.conversation_id = ?"), append(args, target.ConversationID)
	}
	if len(clauses) == 0 {
		return nil, errs.Invariant("Comment must be linked to an expense, an update or a conversation")
	}
	return s.comments.List(ctx, types.NewQueryFilter(strings.Join(clauses, " AND "), args...), "cm.created_at ASC", "cm.id ASC")
}

type ConversationStore struct {
	db            bun.IDB
	conversations repository.Repository[models.Conversation]
	comments      *CommentStore
}

// NewConversationStore returns a ConversationStore posting root comments through comments.
func NewConversationStore(db bun.IDB, comments *CommentStore) *ConversationStore {
	return &ConversationStore{db: db, conversations: repository.NewRepository[models.Conversation](db), comments: comments}
}

// CreateWithComment opens conv with its first comment holding html. The
// summary is derived from html.
func (s *ConversationStore) CreateWithComment(ctx context.Context, conv *models.Conversation, html string) (*models.Conversation, *models.Comment, []events.Event, error) {
	html = sanitize.CommentHTML(html)
	conv.Summary = sanitize.Summary(html, models.ConversationSummaryLength)
	conv.Tags = models.NormalizeTags(conv.Tags)
	if err := conv.Validate(); err != nil {
		return nil, nil, nil, err
	}
	root := &models.Comment{
		HTML:             html,
		CollectiveID:     conv.CollectiveID,
		FromCollectiveID: conv.FromCollectiveID,
		CreatedByUserID:  conv.CreatedByUserID,
		Type:             models.CommentTypeComment,
	}
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		repo := s.conversations.Tx(tx)
		if err := repo.Create(ctx, conv); err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		root.ConversationID = conv.ID
		if err := root.Validate(); err != nil {
			return err
		}
		if err := s.comments.create(ctx, tx, root); err != nil {
			return err
		}
		conv.RootCommentID = root.ID
		return repo.Update(ctx, conv, "root_comment_id")
	})
	if err != nil {
		return nil, nil, nil, err
	}
	ev := event(events.CollectiveConversationCreated, conv.CollectiveID, conv.Info())
	ev.FromCollectiveID = conv.FromCollectiveID
	ev.UserID = conv.CreatedByUserID
	return conv, root, []events.Event{ev}, nil
}

// Get returns the conversation with id.
func (s *ConversationStore) Get(ctx context.Context, id int64) (*models.Conversation, error) {
	return s.conversations.GetOne(ctx, id)
}

// Edit changes the title and tags. Nil tags leave them untouched.
func (s *ConversationStore) Edit(ctx context.Context, id int64, title string, tags []string) (*models.Conversation, error) {
	conv, err := s.conversations.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if title != "" {
		conv.Title = title
	}
	if tags != nil {
		conv.Tags = models.NormalizeTags(tags)
	}
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	if err := s.conversations.Update(ctx, conv, "title", "tags"); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetMostPopularTagsForCollective ranks the tags of the conversations of
// collectiveID by use, keeping at most limit.
func (s *ConversationStore) GetMostPopularTagsForCollective(ctx context.Context, collectiveID int64, limit int) ([]models.TagCount, error) {
	var rows []*models.Conversation
	err := s.conversations.NewSelect().Model(&rows).
		Column("id", "tags").
		Where("cv.collective_id = ?", collectiveID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	lists := make([][]string, 0, len(rows))
	for _, c := range rows {
		lists = append(lists, c.Tags)
	}
	return models.RankTags(lists, limit), nil
}

type FollowerStore struct {
	db        bun.IDB
	followers repository.Repository[models.ConversationFollower]
}

// NewFollowerStore returns a FollowerStore on db.
func NewFollowerStore(db bun.IDB) *FollowerStore {
	return &FollowerStore{db: db, followers: repository.NewRepository[models.ConversationFollower](db)}
}

// Follow subscribes userID to conversationID, reactivating a previous
// subscription.
func (s *FollowerStore) Follow(ctx context.Context, userID, conversationID int64) (*models.ConversationFollower, error) {
	return s.follow(ctx, s.db, userID, conversationID)
}

func (s *FollowerStore) follow(ctx context.Context, db bun.IDB, userID, conversationID int64) (*models.ConversationFollower, error) {
	return s.setActive(ctx, db, userID, conversationID, true)
}

// Unfollow flags the follower row inactive. Commenting again reactivates
// it.
func (s *FollowerStore) Unfollow(ctx context.Context, userID, conversationID int64) (*models.ConversationFollower, error) {
	return s.setActive(ctx, s.db, userID, conversationID, false)
}

func (s *FollowerStore) setActive(ctx context.Context, db bun.IDB, userID, conversationID int64, active bool) (*models.ConversationFollower, error) {
	repo := s.followers.Tx(db)
	f, err := repo.First(ctx, "cf.user_id = ? AND cf.conversation_id = ?", userID, conversationID)
	if repository.IsNotFound(err) {
		f = &models.ConversationFollower{UserID: userID, ConversationID: conversationID, IsActive: active}
		if err := repo.Create(ctx, f); err != nil {
			return nil, fmt.Errorf("failed to follow conversation: %w", err)
		}
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	if f.IsActive == active {
		return f, nil
	}
	f.IsActive = active
	if err := repo.Update(ctx, f, "is_active"); err != nil {
		return nil, err
	}
	return f, nil
}

// IsFollowing reports whether userID actively follows conversationID.
func (s *FollowerStore) IsFollowing(ctx context.Context, userID, conversationID int64) (bool, error) {
	return s.followers.Exists(ctx, "cf.user_id = ? AND cf.conversation_id = ? AND cf.is_active = ?", userID, conversationID, true)
}

// ListFollowers returns the active followers of conversationID.
func (s *FollowerStore) ListFollowers(ctx context.Context, conversationID int64) ([]*models.ConversationFollower, error) {
	return s.followers.Query(ctx, "cf.conversation_id = ? AND cf.is_active = ?", conversationID, true)
}
