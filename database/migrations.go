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

package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// SchemaMigration records a step applied by the Migrator.
type SchemaMigration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version   string    `bun:"version,pk"`
	Name      string    `bun:"name,notnull"`
	AppliedAt time.Time `bun:"applied_at,notnull"`
}

type step struct {
	version string
	name    string
	// repeatable steps are idempotent and run every time, so models
	// registered after the first deploy still get their tables.
	repeatable bool
	up         func(ctx context.Context, db bun.IDB) error
}

// Migrator brings the schema in line with the registered models.
type Migrator struct {
	db     *bun.DB
	config DataMigrateConfig
}

func NewMigrator(db *bun.DB, config DataMigrateConfig) *Migrator {
	return &Migrator{db: db, config: config}
}

func (m *Migrator) steps() []step {
	steps := []step{
		{version: "001", name: "create_tables", repeatable: true, up: createTables},
		{version: "002", name: "create_indexes", repeatable: true, up: createIndexes},
	}
	if m.config.EnableForeignKey {
		steps = append(steps, step{version: "003", name: "add_foreign_keys", up: m.addForeignKeys})
	}
	return steps
}

// Run applies every pending step, each in its own transaction.
func (m *Migrator) Run(ctx context.Context) error {
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}
	if _, err := m.db.NewCreateTable().Model((*SchemaMigration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	applied := 0
	for _, s := range m.steps() {
		ran, err := m.apply(ctx, s)
		if err != nil {
			return fmt.Errorf("migration %s_%s failed: %w", s.version, s.name, err)
		}
		if ran {
			applied++
		}
	}
	logger.WithFields(logrus.Fields{
		"steps":  applied,
		"models": len(RegisteredModelInstances()),
	}).Info("schema migrated")
	return nil
}

func (m *Migrator) apply(ctx context.Context, s step) (bool, error) {
	if !s.repeatable {
		done, err := m.db.NewSelect().Model((*SchemaMigration)(nil)).Where("version = ?", s.version).Exists(ctx)
		if err != nil || done {
			return false, err
		}
	}
	err := m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.up(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*SchemaMigration)(nil)).Where("version = ?", s.version).Exec(ctx); err != nil {
			return err
		}
		record := &SchemaMigration{Version: s.version, Name: s.name, AppliedAt: time.Now().UTC()}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	logger.WithFields(logrus.Fields{"version": s.version, "name": s.name}).Debug("migration step applied")
	return true, nil
}

// Applied lists the recorded steps by version.
func (m *Migrator) Applied(ctx context.Context) ([]SchemaMigration, error) {
	var out []SchemaMigration
	err := m.db.NewSelect().Model(&out).Order("version ASC").Scan(ctx)
	return out, err
}

func createTables(ctx context.Context, db bun.IDB) error {
	for _, model := range RegisteredModelInstances() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %s: %w", modelName(model), err)
		}
	}
	return nil
}

func createIndexes(ctx context.Context, db bun.IDB) error {
	// MySQL has no CREATE INDEX IF NOT EXISTS; duplicates are detected from
	// the error instead.
	ifNotExists := db.Dialect().Name() != dialect.MySQL
	for _, model := range RegisteredModelInstances() {
		indexed, ok := model.(IndexedModel)
		if !ok {
			continue
		}
		for _, idx := range indexed.Indexes() {
			q := db.NewCreateIndex().Model(model).Index(idx.Name).Column(idx.Columns...)
			if idx.Unique {
				q = q.Unique()
			}
			if ifNotExists {
				q = q.IfNotExists()
			}
			if _, err := q.Exec(ctx); err != nil {
				if kind, ok := ClassifyError(err); ok && kind == ExistIndexErr {
					continue
				}
				return fmt.Errorf("failed to create index %s on %s: %w", idx.Name, modelName(model), err)
			}
		}
	}
	return nil
}

func (m *Migrator) addForeignKeys(ctx context.Context, db bun.IDB) error {
	fkm := LoadForeignKeys(m.config.ForeignKeyFile)
	if errs := fkm.Validate(); len(errs) > 0 {
		for _, err := range errs {
			logger.WithError(err).Warn("invalid foreign key constraint")
		}
		return fmt.Errorf("%d invalid foreign key constraints", len(errs))
	}
	return fkm.Apply(ctx, db)
}
