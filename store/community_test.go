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
	"errors"
	"testing"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
)

func TestCommentNeedsTarget(t *testing.T) {
	f := newFixture(t)
	comments := NewCommentStore(f.db, NewFollowerStore(f.db))

	_, _, err := comments.Create(f.ctx, &models.Comment{HTML: "<p>hello</p>", CollectiveID: 1, FromCollectiveID: 2, CreatedByUserID: 3})
	if !errs.IsInvariant(err) {
		t.Fatalf("expected an invariant error, got %v", err)
	}
	if n, _ := f.db.NewSelect().Model((*models.Comment)(nil)).Count(f.ctx); n != 0 {
		t.Errorf("%d comments written for a dangling comment", n)
	}
	if _, err := comments.ListFor(f.ctx, CommentTarget{}); !errs.IsInvariant(err) {
		t.Errorf("listing without a target = %v", err)
	}

	c, evs, err := comments.Create(f.ctx, &models.Comment{
		HTML: `<p>Looks good <script>alert(1)</script></p>`, CollectiveID: 1, FromCollectiveID: 2, CreatedByUserID: 3, ExpenseID: 9,
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.HTML != "<p>Looks good </p>" {
		t.Errorf("html = %q", c.HTML)
	}
	if len(evs) != 1 || evs[0].Type != events.CollectiveCommentCreated || evs[0].ExpenseID != 9 {
		t.Errorf("events = %+v", evs)
	}
	list, err := comments.ListFor(f.ctx, CommentTarget{ExpenseID: 9})
	if err != nil || len(list) != 1 {
		t.Errorf("ListFor = %v, %v", list, err)
	}
}

func TestConversationFollowers(t *testing.T) {
	f := newFixture(t)
	followers := NewFollowerStore(f.db)
	comments := NewCommentStore(f.db, followers)
	conversations := NewConversationStore(f.db, comments)

	conv, root, evs, err := conversations.CreateWithComment(f.ctx, &models.Conversation{
		Title: "Roadmap", CollectiveID: 1, FromCollectiveID: 2, CreatedByUserID: 3, Tags: []string{"planning", "Planning"},
	}, "<p>What should we build <strong>next</strong>?</p>")
	if err != nil {
		t.Fatal(err)
	}
	if conv.RootCommentID != root.ID || root.ConversationID != conv.ID {
		t.Errorf("root comment not linked: %+v %+v", conv, root)
	}
	if conv.Summary != "What should we build next?" {
		t.Errorf("summary = %q", conv.Summary)
	}
	if len(evs) != 1 || evs[0].Type != events.CollectiveConversationCreated {
		t.Errorf("events = %+v", evs)
	}
	if ok, _ := followers.IsFollowing(f.ctx, 3, conv.ID); !ok {
		t.Error("author should follow the conversation")
	}

	if _, err := followers.Unfollow(f.ctx, 3, conv.ID); err != nil {
		t.Fatal(err)
	}
	if ok, _ := followers.IsFollowing(f.ctx, 3, conv.ID); ok {
		t.Error("unfollow ignored")
	}
	if _, _, err := comments.Create(f.ctx, &models.Comment{
		HTML: "<p>bump</p>", CollectiveID: 1, FromCollectiveID: 2, CreatedByUserID: 3, ConversationID: conv.ID,
	}); err != nil {
		t.Fatal(err)
	}
	list, _ := followers.ListFollowers(f.ctx, conv.ID)
	if len(list) != 1 || !list[0].IsActive {
		t.Errorf("commenting should reactivate the follower: %+v", list)
	}

	if _, _, _, err := conversations.CreateWithComment(f.ctx, &models.Conversation{
		Title: "Budget", CollectiveID: 1, FromCollectiveID: 2, CreatedByUserID: 3, Tags: []string{"finance", "planning"},
	}, "<p>numbers</p>"); err != nil {
		t.Fatal(err)
	}
	tags, err := conversations.GetMostPopularTagsForCollective(f.ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 || tags[0].Tag != "planning" || tags[0].Count != 2 || tags[1].Tag != "finance" {
		t.Errorf("tags = %+v", tags)
	}
}

func TestReactions(t *testing.T) {
	f := newFixture(t)
	reactions := NewReactionStore(f.db)

	first, err := reactions.AddReactionOnComment(f.ctx, 1, 2, 10, "🎉")
	if err != nil {
		t.Fatal(err)
	}
	again, err := reactions.AddReactionOnComment(f.ctx, 1, 2, 10, "🎉")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("duplicate reaction created row %d, want %d", again.ID, first.ID)
	}
	if _, err := reactions.AddReactionOnComment(f.ctx, 4, 5, 10, "🎉"); err != nil {
		t.Fatal(err)
	}
	if _, err := reactions.AddReactionOnComment(f.ctx, 1, 2, 10, "🚀"); err != nil {
		t.Fatal(err)
	}
	if _, err := reactions.AddReactionOnComment(f.ctx, 1, 2, 10, "not an emoji"); !errs.IsValidation(err) {
		t.Errorf("unknown emoji = %v", err)
	}

	counts, err := reactions.CountByEmoji(f.ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 || counts[0].Emoji != "🎉" || counts[0].Count != 2 {
		t.Errorf("counts = %+v", counts)
	}

	if err := reactions.Remove(f.ctx, first.ID, 99); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("removing someone else's reaction = %v", err)
	}
	if err := reactions.Remove(f.ctx, first.ID, 1); err != nil {
		t.Fatal(err)
	}
	readded, err := reactions.AddReactionOnComment(f.ctx, 1, 2, 10, "🎉")
	if err != nil || readded.ID == first.ID {
		t.Errorf("re-adding after removal = %v, %v", readded, err)
	}
}

func TestReactionsOnUpdate(t *testing.T) {
	f := newFixture(t)
	reactions := NewReactionStore(f.db)

	first, err := reactions.AddReactionOnUpdate(f.ctx, 1, 2, 10, "🎉")
	if err != nil {
		t.Fatal(err)
	}
	if first.UpdateID != 10 || first.CommentID != 0 {
		t.Errorf("reaction target = comment %d update %d", first.CommentID, first.UpdateID)
	}
	again, err := reactions.AddReactionOnUpdate(f.ctx, 1, 2, 10, "🎉")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("duplicate update reaction created row %d, want %d", again.ID, first.ID)
	}
	onComment, err := reactions.AddReactionOnComment(f.ctx, 1, 2, 10, "🎉")
	if err != nil || onComment.ID == first.ID {
		t.Errorf("comment reaction with the same id = %v, %v", onComment, err)
	}

	counts, err := reactions.CountByEmoji(f.ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts[0].Emoji != "🎉" || counts[0].Count != 1 {
		t.Errorf("update counts = %+v", counts)
	}
}

func TestSocialLinksReplace(t *testing.T) {
	f := newFixture(t)
	links := NewSocialLinkStore(f.db)

	_, err := links.ReplaceForCollective(f.ctx, 1, []*models.SocialLink{
		{Type: models.SocialLinkWebsite, URL: "https://example.com"},
		{Type: models.SocialLinkGithub, URL: "https://github.com/example"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = links.ReplaceForCollective(f.ctx, 1, []*models.SocialLink{
		{Type: models.SocialLinkMastodon, URL: "https://mastodon.social/@example"},
		{Type: models.SocialLinkWebsite, URL: "https://example.com"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := links.ListForCollective(f.ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Type != models.SocialLinkMastodon || got[1].Position != 1 {
		t.Errorf("links = %+v", got)
	}

	_, err = links.ReplaceForCollective(f.ctx, 1, []*models.SocialLink{
		{Type: models.SocialLinkWebsite, URL: "https://example.com"},
		{Type: models.SocialLinkWebsite, URL: "https://example.com"},
	})
	if !errs.IsValidation(err) {
		t.Fatalf("duplicate link = %v", err)
	}
	if kept, _ := links.ListForCollective(f.ctx, 1); len(kept) != 2 {
		t.Errorf("rejected replace changed the links: %+v", kept)
	}
}

func TestUpdatePublish(t *testing.T) {
	f := newFixture(t)
	updates := NewUpdateStore(f.db)
	newUpdate := func() *models.Update {
		u, err := updates.Create(f.ctx, &models.Update{
			Title: "Monthly report", HTML: `<p>We <em>shipped</em> it<script>x()</script></p>`,
			CollectiveID: 1, FromCollectiveID: 1, CreatedByUserID: 3,
		})
		if err != nil {
			t.Fatal(err)
		}
		return u
	}
	u := newUpdate()
	if u.Slug != "monthly-report" || u.Summary != "We shipped it" || u.IsPublished() {
		t.Errorf("update = %q %q published=%v", u.Slug, u.Summary, u.IsPublished())
	}
	if second := newUpdate(); second.Slug != "monthly-report-1" {
		t.Errorf("second slug = %q", second.Slug)
	}

	published, evs, err := updates.Publish(f.ctx, u.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if published.NotificationAudience != models.UpdateAudienceAll || len(evs) != 1 || evs[0].Type != events.CollectiveUpdatePublished {
		t.Errorf("publish = %s %+v", published.NotificationAudience, evs)
	}
	if _, _, err := updates.Publish(f.ctx, u.ID, ""); !errs.IsInvariant(err) {
		t.Errorf("publishing twice = %v", err)
	}
	list, _ := updates.ListForCollective(f.ctx, 1, true)
	if len(list) != 1 || list[0].ID != u.ID {
		t.Errorf("published updates = %+v", list)
	}
}
