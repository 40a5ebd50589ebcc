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
)

type CollectiveStore struct {
	db          bun.IDB
	collectives repository.Repository[models.Collective]
}

// NewCollectiveStore returns a CollectiveStore on db.
func NewCollectiveStore(db bun.IDB) *CollectiveStore {
	return &CollectiveStore{db: db, collectives: repository.NewRepository[models.Collective](db)}
}

// Create inserts c. Its slug is derived from c.Slug, then suggestions, then
// c.Name: the first candidate that is not reserved wins and gets a numeric
// suffix when already taken.
func (s *CollectiveStore) Create(ctx context.Context, c *models.Collective, suggestions ...string) (*models.Collective, []events.Event, error) {
	if err := s.create(ctx, s.collectives, c, suggestions); err != nil {
		return nil, nil, err
	}
	return c, []events.Event{event(events.CollectiveCreated, c.ID, c.Minimal())}, nil
}

func (s *CollectiveStore) create(ctx context.Context, repo repository.Repository[models.Collective], c *models.Collective, suggestions []string) error {
	base := ""
	for _, candidate := range append([]string{c.Slug}, append(suggestions, c.Name)...) {
		slug := sanitize.Slug(candidate, models.SlugMaxLength)
		if slug != "" && !models.IsReservedSlug(slug) {
			base = slug
			break
		}
	}
	if base == "" {
		return errs.NewValidationError("Collective", "slug", "could not be generated")
	}
	slug, err := uniqueSlug(ctx, base, models.SlugMaxLength, func(ctx context.Context, slug string) (bool, error) {
		return withDeletedExists(ctx, repo, "slug = ?", slug)
	})
	if err != nil {
		return err
	}
	c.Slug = slug
	if c.Currency == "" {
		c.Currency = "USD"
	}
	c.Currency = strings.ToUpper(c.Currency)
	if err := c.Validate(); err != nil {
		return err
	}
	if err := repo.Create(ctx, c); err != nil {
		return fmt.Errorf("failed to create collective: %w", err)
	}
	return nil
}

// Get returns the live collective with id.
func (s *CollectiveStore) Get(ctx context.Context, id int64) (*models.Collective, error) {
	return s.collectives.GetOne(ctx, id)
}

// GetBySlug looks a collective up by its slug, case insensitively.
func (s *CollectiveStore) GetBySlug(ctx context.Context, slug string) (*models.Collective, error) {
	return s.collectives.First(ctx, "c.slug = ?", strings.ToLower(slug))
}

// Update validates c and writes columns, or every column when none given.
func (s *CollectiveStore) Update(ctx context.Context, c *models.Collective, columns ...string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.collectives.Update(ctx, c, columns...)
}

// Destroy soft deletes the collective.
func (s *CollectiveStore) Destroy(ctx context.Context, id int64) error {
	return s.collectives.Delete(ctx, id)
}

// Host returns the fiscal host of c, errs.ErrNotFound when it has none.
func (s *CollectiveStore) Host(ctx context.Context, c *models.Collective) (*models.Collective, error) {
	if c.HostCollectiveID == 0 {
		return nil, errs.ErrNotFound
	}
	return s.collectives.GetOne(ctx, c.HostCollectiveID)
}

// ListHosted returns the active collectives hosted by hostID.
func (s *CollectiveStore) ListHosted(ctx context.Context, hostID int64) ([]*models.Collective, error) {
	var out []*models.Collective
	err := s.collectives.NewSelect().Model(&out).
		Where("c.host_collective_id = ?", hostID).
		Where("c.id != ?", hostID).
		Where("c.is_active = ?", true).
		Order("c.id ASC").
		Scan(ctx)
	return out, err
}
