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

package repository

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/opencollective/ledger/types"
)

// CrudRepository defines basic CRUD operations for a generic entity type.
// Lookups return errs.ErrNotFound when nothing matches; inserts colliding
// with a unique key return an error wrapping errs.ErrAlreadyExists.
type CrudRepository[T any] interface {
	GetOne(ctx context.Context, id any) (*T, error)

	First(ctx context.Context, query string, args ...interface{}) (*T, error)

	GetAll(ctx context.Context) ([]*T, error)

	List(ctx context.Context, filter *types.QueryFilter, orders ...string) ([]*T, error)

	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	Count(ctx context.Context, query string, args ...interface{}) (int, error)

	Exists(ctx context.Context, query string, args ...interface{}) (bool, error)

	Create(ctx context.Context, entity ...*T) error

	// CreateIgnore inserts the entities, silently skipping the ones that
	// collide with a unique key, and reports how many rows were written.
	CreateIgnore(ctx context.Context, entity ...*T) (int64, error)

	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error

	// Update writes the entity by primary key, restricted to columns when
	// any are given.
	Update(ctx context.Context, entity *T, columns ...string) error

	// Delete soft deletes when the model has a soft_delete column.
	Delete(ctx context.Context, id any) error

	DeleteWhere(ctx context.Context, query string, args ...interface{}) (int64, error)

	ForceDelete(ctx context.Context, id any) error
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Collection[T], error)
}

// Repository combines CRUD and pagination and exposes bun query builders for
// everything else.
type Repository[T any] interface {
	CrudRepository[T]
	PageQueryRepository[T]

	// Tx returns a copy running its queries on db, usually a bun.Tx.
	Tx(db bun.IDB) Repository[T]
	DB() bun.IDB
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
