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

package ledger

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/types"
)

// Service is a read-only view on one entity table. Writes go through the
// stores, which validate entities and produce events.
type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter, orders ...string) ([]*T, error)

	// Query executes a where clause and maps the results to entities.
	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	// Count returns the number of entities matching the where clause.
	Count(ctx context.Context, query string, args ...interface{}) (int, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Collection[T], error)

	// WithTx returns the same view running on db, typically a bun.Tx.
	WithTx(db bun.IDB) Service[T]

	// SelectBuilder returns a Bun select query builder for the entity.
	SelectBuilder() *bun.SelectQuery
}

type baseServiceImpl[T any] struct {
	repo repository.Repository[T]
}

// NewService returns a Service backed by the generic repository on db.
func NewService[T any](db bun.IDB) Service[T] {
	return &baseServiceImpl[T]{repo: repository.NewRepository[T](db)}
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	return s.repo.GetOne(ctx, id)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	return s.repo.GetAll(ctx)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filter *types.QueryFilter, orders ...string) ([]*T, error) {
	return s.repo.List(ctx, filter, orders...)
}

func (s *baseServiceImpl[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	return s.repo.Query(ctx, query, args...)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, query string, args ...interface{}) (int, error) {
	return s.repo.Count(ctx, query, args...)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Collection[T], error) {
	return s.repo.Page(ctx, page)
}

func (s *baseServiceImpl[T]) WithTx(db bun.IDB) Service[T] {
	return &baseServiceImpl[T]{repo: s.repo.Tx(db)}
}

func (s *baseServiceImpl[T]) SelectBuilder() *bun.SelectQuery {
	return s.repo.NewSelect().Model((*T)(nil))
}
