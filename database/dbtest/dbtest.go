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

// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/database"
)

// Config returns a file backed SQLite configuration inside dir with
// migrations enabled and background health checks disabled.
func Config(dir string) *database.Config {
	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.Type = "sqlite"
	cfg.ConnectionConfig.DBName = filepath.Join(dir, "ledger_test.db")
	cfg.ConnectionConfig.HealthCheckInterval = 0
	cfg.ConnectionConfig.SlowQueryTime = 0
	cfg.ConnectionConfig.ConnectTimeout = 10 * time.Second
	cfg.DataMigrateConfig.EnableMigrateOnStartup = true
	return cfg
}

// Open creates a fresh database in t.TempDir(), migrates every registered
// model and closes it when the test ends.
func Open(t testing.TB) *bun.DB {
	t.Helper()
	conn, err := database.Open(context.Background(), Config(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})
	return conn.DB()
}
