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

// Package store implements the persistence operations of every entity on
// top of the generic repository. Multi-row operations run in a single
// transaction; side effects are returned as events.Event values for the
// caller to dispatch after commit.
package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/database"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/sanitize"
	"github.com/opencollective/ledger/utils"
)

var logger = utils.NewLogger("STORE")

// maxSlugAttempts bounds the numeric suffixes tried when a slug is taken.
const maxSlugAttempts = 1000

type validatable interface {
	Validate() error
}

func validateAll[T validatable](entities ...T) error {
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// uniqueSlug returns the first of base, base-1, base-2, ... that taken
// reports as free.
func uniqueSlug(ctx context.Context, base string, maxLength int, taken func(ctx context.Context, slug string) (bool, error)) (string, error) {
	if base == "" {
		return "", fmt.Errorf("cannot derive a slug from an empty value")
	}
	candidate := base
	for n := 1; n <= maxSlugAttempts; n++ {
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		candidate = sanitize.SlugWithSuffix(base, n, maxLength)
	}
	return "", fmt.Errorf("no free slug found for %q", base)
}

// withDeletedExists reports whether a row matching query exists, soft
// deleted rows included: unique indexes cover them too.
func withDeletedExists[T any](ctx context.Context, repo repository.Repository[T], query string, args ...interface{}) (bool, error) {
	return repo.NewSelect().Model((*T)(nil)).WhereAllWithDeleted().Where(query, args...).Exists(ctx)
}

func event(t events.Type, collectiveID int64, data models.Projection) events.Event {
	return events.Event{Type: t, CollectiveID: collectiveID, Data: data}
}

func runInTx(ctx context.Context, db bun.IDB, fn func(ctx context.Context, tx bun.Tx) error) error {
	return db.RunInTx(ctx, nil, fn)
}

// repositoryError maps driver level misses onto errs.ErrNotFound for
// queries built outside the repository.
func repositoryError(err error) error {
	return database.TranslateError(err)
}
