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

// ReactionEmojis is the allow-list of reactions.
var ReactionEmojis = []string{"👍️", "👎", "😀", "🎉", "😕", "❤️", "🚀", "👀"}

func IsReactionEmoji(emoji string) bool { return types.OneOf(emoji, ReactionEmojis...) }

type EmojiReaction struct {
	bun.BaseModel `bun:"table:emoji_reactions,alias:er"`

	ID               int64  `bun:"id,pk,autoincrement" json:"id"`
	UserID           int64  `bun:"user_id,notnull" json:"UserId" validate:"required"`
	FromCollectiveID int64  `bun:"from_collective_id,notnull" json:"FromCollectiveId" validate:"required"`
	CommentID        int64  `bun:"comment_id,nullzero" json:"CommentId,omitempty"`
	UpdateID         int64  `bun:"update_id,nullzero" json:"UpdateId,omitempty"`
	Emoji            string `bun:"emoji,notnull" json:"emoji" validate:"required"`
	Timestamps
}

func (r *EmojiReaction) Validate() error {
	if err := validation.Struct("EmojiReaction", r); err != nil {
		return err
	}
	if !IsReactionEmoji(r.Emoji) {
		return errs.NewValidationError("EmojiReaction", "emoji", "must be one of the allowed reactions")
	}
	if (r.CommentID == 0) == (r.UpdateID == 0) {
		return errs.Invariant("Reaction must be linked to either a comment or an update")
	}
	return nil
}

func (r *EmojiReaction) Info() Projection {
	return Projection{
		"id":               r.ID,
		"emoji":            r.Emoji,
		"UserId":           r.UserID,
		"FromCollectiveId": r.FromCollectiveID,
		"CommentId":        idOrNil(r.CommentID),
		"UpdateId":         idOrNil(r.UpdateID),
	}
}

func (*EmojiReaction) Indexes() []Index {
	return []Index{
		{Name: "emoji_reactions_comment_idx", Columns: []string{"user_id", "from_collective_id", "comment_id", "emoji"}, Unique: true},
		{Name: "emoji_reactions_update_idx", Columns: []string{"user_id", "from_collective_id", "update_id", "emoji"}, Unique: true},
	}
}

// EmojiCount is a per-emoji tally.
type EmojiCount struct {
	Emoji string `bun:"emoji" json:"emoji"`
	Count int    `bun:"count" json:"count"`
}
