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
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"

	"github.com/opencollective/ledger/database"
	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/types"
)

type baseRepositoryImpl[T any] struct {
	db bun.IDB
}

// NewRepository returns a generic repository running on db.
func NewRepository[T any](db bun.IDB) Repository[T] {
	return &baseRepositoryImpl[T]{db: db}
}

func (r *baseRepositoryImpl[T]) Tx(db bun.IDB) Repository[T] { return &baseRepositoryImpl[T]{db: db} }

func (r *baseRepositoryImpl[T]) DB() bun.IDB { return r.db }

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, id any) (*T, error) {
	return r.First(ctx, "?TableAlias.id = ?", id)
}

func (r *baseRepositoryImpl[T]) First(ctx context.Context, query string, args ...interface{}) (*T, error) {
	var entity T
	err := r.db.NewSelect().Model(&entity).Where(query, args...).Limit(1).Scan(ctx)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context) ([]*T, error) {
	var entities []*T
	err := r.db.NewSelect().Model(&entities).Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter, orders ...string) ([]*T, error) {
	var entities []*T
	query := r.db.NewSelect().Model(&entities)
	if filter != nil {
		query = query.Where(filter.Schema, filter.Args...)
	}
	if len(orders) > 0 {
		query = query.Order(orders...)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	var entities []*T
	err := r.db.NewSelect().Model(&entities).Where(query, args...).Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, query string, args ...interface{}) (int, error) {
	return r.db.NewSelect().Model((*T)(nil)).Where(query, args...).Count(ctx)
}

func (r *baseRepositoryImpl[T]) Exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	return r.db.NewSelect().Model((*T)(nil)).Where(query, args...).Exists(ctx)
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Collection[T], error) {
	var entities []*T
	query := r.db.NewSelect().Model(&entities)
	if page.Filter != nil {
		query = query.Where(page.Filter.Schema, page.Filter.Args...)
	}
	total, err := query.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total > page.GetOffset() {
		orders := page.Orders
		if len(orders) == 0 {
			orders = []string{"id ASC"}
		}
		err = query.
			Offset(page.GetOffset()).
			Limit(page.GetLimit()).
			Order(orders...).
			Scan(ctx)
		if err != nil {
			return nil, err
		}
	}
	return types.NewCollection(page, total, entities), nil
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	var err error
	switch len(entity) {
	case 0:
		return nil
	case 1:
		_, err = r.db.NewInsert().Model(entity[0]).Exec(ctx)
	default:
		entities := append([]*T(nil), entity...)
		_, err = r.db.NewInsert().Model(&entities).Exec(ctx)
	}
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) CreateIgnore(ctx context.Context, entity ...*T) (int64, error) {
	var written int64
	for _, e := range entity {
		q := r.db.NewInsert().Model(e)
		if r.db.Dialect().Features().Has(feature.InsertOnConflict) {
			q = q.On("CONFLICT DO NOTHING")
		} else {
			q = q.Ignore()
		}
		res, err := q.Exec(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			// RETURNING produced nothing: the row was skipped.
			continue
		}
		if err != nil {
			return written, database.TranslateError(err)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += n
		}
	}
	return written, nil
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	if len(entity) == 0 {
		return nil
	}
	entities := append([]*T(nil), entity...)
	features := r.db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		return r.upsertOnConflict(ctx, fields, duplicateKeys, entities)
	case features.Has(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, fields, entities)
	default:
		return r.upsertFallback(ctx, entities)
	}
}

func (r *baseRepositoryImpl[T]) upsertOnDuplicateKey(ctx context.Context, fields []string, entities []*T) error {
	assignments := make([]string, 0, len(fields))
	for _, field := range fields {
		assignments = append(assignments, fmt.Sprintf("%s = VALUES(%s)", field, field))
	}
	_, err := r.db.NewInsert().
		Model(&entities).
		On("DUPLICATE KEY UPDATE " + strings.Join(assignments, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertOnConflict(ctx context.Context, fields []string, duplicateKeys []string, entities []*T) error {
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{"id"}
	}
	assignments := make([]string, 0, len(fields))
	for _, field := range fields {
		assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", field, field))
	}
	_, err := r.db.NewInsert().
		Model(&entities).
		On("CONFLICT (" + strings.Join(duplicateKeys, ",") + ") DO UPDATE").
		Set(strings.Join(assignments, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
			if _, updateErr := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx); updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", err, updateErr)
			}
		}
	}
	return nil
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T, columns ...string) error {
	q := r.db.NewUpdate().Model(entity).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return database.TranslateError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any) error {
	_, err := r.db.NewDelete().Model((*T)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) DeleteWhere(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := r.db.NewDelete().Model((*T)(nil)).Where(query, args...).Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *baseRepositoryImpl[T]) ForceDelete(ctx context.Context, id any) error {
	_, err := r.db.NewDelete().Model((*T)(nil)).Where("id = ?", id).ForceDelete().Exec(ctx)
	return err
}

// ForUpdate adds a row lock on dialects that support SELECT ... FOR UPDATE.
// SQLite serializes writers itself.
func ForUpdate(db bun.IDB, q *bun.SelectQuery) *bun.SelectQuery {
	if db.Dialect().Name() == dialect.SQLite {
		return q
	}
	return q.For("UPDATE")
}

// IsNotFound is a shorthand for errors.Is(err, errs.ErrNotFound).
func IsNotFound(err error) bool { return errors.Is(err, errs.ErrNotFound) }
