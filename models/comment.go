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
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/validation"
)

type CommentType string

const (
	CommentTypeComment     CommentType = "COMMENT"
	CommentTypePrivateNote CommentType = "PRIVATE_NOTE"
)

// Comment is attached to exactly one expense, update or conversation.
type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:cm"`

	ID               int64            `bun:"id,pk,autoincrement" json:"id"`
	HTML             string           `bun:"html,notnull" json:"html" validate:"required"`
	CollectiveID     int64            `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	FromCollectiveID int64            `bun:"from_collective_id,notnull" json:"FromCollectiveId" validate:"required"`
	CreatedByUserID  int64            `bun:"created_by_user_id,notnull" json:"CreatedByUserId" validate:"required"`
	ExpenseID        int64            `bun:"expense_id,nullzero" json:"ExpenseId,omitempty"`
	UpdateID         int64            `bun:"update_id,nullzero" json:"UpdateId,omitempty"`
	ConversationID   int64            `bun:"conversation_id,nullzero" json:"ConversationId,omitempty"`
	Type             CommentType      `bun:"type,notnull" json:"type" validate:"required,oneof=COMMENT PRIVATE_NOTE"`
	Data             types.JsonObject `bun:"data" json:"data,omitempty"`
	Timestamps
}

// Validate checks the target link first: a dangling comment is refused
// before anything else is looked at.
func (c *Comment) Validate() error {
	if c.ExpenseID == 0 && c.UpdateID == 0 && c.ConversationID == 0 {
		return errs.Invariant("Comment must be linked to an expense, an update or a conversation")
	}
	return validation.Struct("Comment", c)
}

func (c *Comment) Info() Projection {
	return Projection{
		"id":               c.ID,
		"html":             c.HTML,
		"type":             c.Type,
		"CollectiveId":     c.CollectiveID,
		"FromCollectiveId": c.FromCollectiveID,
		"CreatedByUserId":  c.CreatedByUserID,
		"ExpenseId":        idOrNil(c.ExpenseID),
		"UpdateId":         idOrNil(c.UpdateID),
		"ConversationId":   idOrNil(c.ConversationID),
		"createdAt":        c.CreatedAt,
	}
}

func (*Comment) Indexes() []Index {
	return []Index{
		{Name: "comments_expense_id_idx", Columns: []string{"expense_id"}},
		{Name: "comments_update_id_idx", Columns: []string{"update_id"}},
		{Name: "comments_conversation_id_idx", Columns: []string{"conversation_id"}},
	}
}

// Conversation is a discussion thread on a collective, opened by its root
// comment.
type Conversation struct {
	bun.BaseModel `bun:"table:conversations,alias:cv"`

	ID               int64            `bun:"id,pk,autoincrement" json:"id"`
	Title            string           `bun:"title,notnull" json:"title" validate:"required,max=255"`
	Summary          string           `bun:"summary,notnull" json:"summary"`
	Tags             []string         `bun:"tags" json:"tags,omitempty"`
	CollectiveID     int64            `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	FromCollectiveID int64            `bun:"from_collective_id,notnull" json:"FromCollectiveId" validate:"required"`
	CreatedByUserID  int64            `bun:"created_by_user_id,notnull" json:"CreatedByUserId" validate:"required"`
	RootCommentID    int64            `bun:"root_comment_id,nullzero" json:"RootCommentId,omitempty"`
	Data             types.JsonObject `bun:"data" json:"data,omitempty"`
	Timestamps
}

const ConversationSummaryLength = 240

func (c *Conversation) Validate() error {
	return validation.Struct("Conversation", c)
}

func (c *Conversation) Info() Projection {
	return Projection{
		"id":               c.ID,
		"title":            c.Title,
		"summary":          c.Summary,
		"tags":             c.Tags,
		"CollectiveId":     c.CollectiveID,
		"FromCollectiveId": c.FromCollectiveID,
		"RootCommentId":    idOrNil(c.RootCommentID),
	}
}

func (*Conversation) Indexes() []Index {
	return []Index{{Name: "conversations_collective_id_idx", Columns: []string{"collective_id"}}}
}

type ConversationFollower struct {
	bun.BaseModel `bun:"table:conversation_followers,alias:cf"`

	ID             int64 `bun:"id,pk,autoincrement" json:"id"`
	UserID         int64 `bun:"user_id,notnull" json:"UserId" validate:"required"`
	ConversationID int64 `bun:"conversation_id,notnull" json:"ConversationId" validate:"required"`
	IsActive       bool  `bun:"is_active,notnull" json:"isActive"`
	Timestamps
}

func (*ConversationFollower) Indexes() []Index {
	return []Index{{Name: "conversation_followers_user_conversation_idx", Columns: []string{"user_id", "conversation_id"}, Unique: true}}
}
