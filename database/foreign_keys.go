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
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"gopkg.in/yaml.v3"
)

// ForeignKeyConstraint is one column referencing another table.
type ForeignKeyConstraint struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete,omitempty"`
	OnUpdate        string `yaml:"on_update,omitempty"`
	Name            string `yaml:"name,omitempty"`
}

// ConstraintName is Name, or fk_<table>_<column> when unset.
func (fk ForeignKeyConstraint) ConstraintName() string {
	if fk.Name != "" {
		return fk.Name
	}
	return "fk_" + fk.Table + "_" + fk.Column
}

func (fk ForeignKeyConstraint) sql() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		fk.Table, fk.ConstraintName(), fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE " + strings.ToUpper(fk.OnDelete))
	}
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE " + strings.ToUpper(fk.OnUpdate))
	}
	return b.String()
}

var (
	foreignKeysMu sync.RWMutex
	foreignKeys   []ForeignKeyConstraint
)

// RegisterForeignKeys adds constraints applied by the foreign key
// migration step, typically from a model package init.
func RegisterForeignKeys(constraints ...ForeignKeyConstraint) {
	foreignKeysMu.Lock()
	defer foreignKeysMu.Unlock()
	foreignKeys = append(foreignKeys, constraints...)
}

// ForeignKeySet is the list of constraints a migration applies.
type ForeignKeySet struct {
	Constraints []ForeignKeyConstraint `yaml:"foreign_keys"`
}

// RegisteredForeignKeys returns the constraints declared in code.
func RegisteredForeignKeys() *ForeignKeySet {
	foreignKeysMu.RLock()
	defer foreignKeysMu.RUnlock()
	return &ForeignKeySet{Constraints: slices.Clone(foreignKeys)}
}

// LoadForeignKeys reads the YAML file at path. An empty path, or a file that
// cannot be read or parsed, falls back to the registered constraints.
func LoadForeignKeys(path string) *ForeignKeySet {
	if path == "" {
		return RegisteredForeignKeys()
	}
	entry := logger.WithField("path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		entry.WithError(err).Debug("foreign key file not readable, using registered constraints")
		return RegisteredForeignKeys()
	}
	set := &ForeignKeySet{}
	if err := yaml.Unmarshal(data, set); err != nil {
		entry.WithError(err).Warn("foreign key file is not valid YAML, using registered constraints")
		return RegisteredForeignKeys()
	}
	return set
}

// YAML renders the set in the format LoadForeignKeys reads.
func (s *ForeignKeySet) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}

var referentialActions = []string{"CASCADE", "RESTRICT", "SET NULL", "NO ACTION"}

// Validate reports every incomplete constraint and unknown referential
// action.
func (s *ForeignKeySet) Validate() []error {
	var errs []error
	for _, c := range s.Constraints {
		if c.Table == "" || c.Column == "" || c.ReferenceTable == "" || c.ReferenceColumn == "" {
			errs = append(errs, fmt.Errorf("incomplete foreign key %s: %s.%s -> %s.%s",
				c.ConstraintName(), c.Table, c.Column, c.ReferenceTable, c.ReferenceColumn))
		}
		for _, action := range []string{c.OnDelete, c.OnUpdate} {
			if action != "" && !slices.Contains(referentialActions, strings.ToUpper(action)) {
				errs = append(errs, fmt.Errorf("invalid referential action %q on %s", action, c.ConstraintName()))
			}
		}
	}
	return errs
}

// Apply adds every constraint. A constraint that cannot be added, usually
// because it already exists, is logged and skipped. SQLite cannot add
// constraints to existing tables and is skipped entirely. On postgres db
// must be a transaction: each statement runs under a savepoint so one
// failure does not abort the others.
func (s *ForeignKeySet) Apply(ctx context.Context, db bun.IDB) error {
	name := db.Dialect().Name()
	if name == dialect.SQLite {
		logger.WithField("constraints", len(s.Constraints)).Debug("skipping foreign keys on sqlite")
		return nil
	}
	savepoint := name == dialect.PG
	added := 0
	for _, c := range s.Constraints {
		if savepoint {
			if _, err := db.ExecContext(ctx, "SAVEPOINT add_foreign_key"); err != nil {
				return err
			}
		}
		if _, err := db.ExecContext(ctx, c.sql()); err != nil {
			logger.WithError(err).WithField("constraint", c.ConstraintName()).Debug("foreign key not added")
			if savepoint {
				if _, err := db.ExecContext(ctx, "ROLLBACK TO SAVEPOINT add_foreign_key"); err != nil {
					return err
				}
			}
			continue
		}
		added++
	}
	logger.WithFields(logrus.Fields{"added": added, "total": len(s.Constraints)}).Info("foreign keys applied")
	return nil
}
