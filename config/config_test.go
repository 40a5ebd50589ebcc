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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opencollective/ledger/utils"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LEDGER_ENV", "test")
	t.Setenv("LEDGER_SECRET_KEY", testKey)
	t.Setenv("LEDGER_DATABASE__CONNECTION__TYPE", "sqlite")
	t.Setenv("LEDGER_DATABASE__CONNECTION__DBNAME", "ledger")
	t.Setenv("LEDGER_DATABASE__CONNECTION__SLOW_QUERY_TIME", "250ms")
	t.Setenv("LEDGER_DATABASE__MIGRATE__ENABLE_FOREIGN_KEY", "true")
	t.Setenv("LEDGER_LOG__LEVEL", "debug")
	t.Setenv("LEDGER_QUEUE__ENABLED", "true")
	t.Setenv("LEDGER_QUEUE__REDIS_ADDRESS", "redis:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	conn := cfg.Database.ConnectionConfig
	if conn.Type != "sqlite" || conn.DBName != "ledger" {
		t.Errorf("connection = %+v", conn)
	}
	if conn.SlowQueryTime != 250*time.Millisecond {
		t.Errorf("SlowQueryTime = %v", conn.SlowQueryTime)
	}
	if conn.MaxIdleConns != 10 {
		t.Errorf("defaults should be kept, MaxIdleConns = %d", conn.MaxIdleConns)
	}
	if !cfg.Database.DataMigrateConfig.EnableForeignKey || !cfg.Database.DataMigrateConfig.EnableMigrateOnStartup {
		t.Errorf("migrate = %+v", cfg.Database.DataMigrateConfig)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if !cfg.Queue.Enabled || cfg.Queue.RedisAddress != "redis:6379" {
		t.Errorf("queue = %+v", cfg.Queue)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"missing key", map[string]string{"LEDGER_DATABASE__CONNECTION__DBNAME": "x"}, "SecretKey"},
		{"short key", map[string]string{"LEDGER_SECRET_KEY": "abcd", "LEDGER_DATABASE__CONNECTION__DBNAME": "x"}, "SecretKey"},
		{"missing db name", map[string]string{"LEDGER_SECRET_KEY": testKey}, "DBName"},
		{"bad db type", map[string]string{"LEDGER_SECRET_KEY": testKey, "LEDGER_DATABASE__CONNECTION__DBNAME": "x", "LEDGER_DATABASE__CONNECTION__TYPE": "oracle"}, "Type"},
		{"bad log format", map[string]string{"LEDGER_SECRET_KEY": testKey, "LEDGER_DATABASE__CONNECTION__DBNAME": "x", "LEDGER_LOG__FORMAT": "xml"}, "Format"},
		{"negative log age", map[string]string{"LEDGER_SECRET_KEY": testKey, "LEDGER_DATABASE__CONNECTION__DBNAME": "x", "LEDGER_LOG__MAX_AGE_DAYS": "-1"}, "MaxAgeDays"},
		{"bad file level", map[string]string{"LEDGER_SECRET_KEY": testKey, "LEDGER_DATABASE__CONNECTION__DBNAME": "x", "LEDGER_LOG__FILE_LEVEL": "loud"}, "FileLevel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("expected failure on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestApplyLoggingWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	t.Setenv("LEDGER_SECRET_KEY", testKey)
	t.Setenv("LEDGER_DATABASE__CONNECTION__DBNAME", "ledger")
	t.Setenv("LEDGER_LOG__DIR", dir)
	t.Setenv("LEDGER_LOG__MAX_AGE_DAYS", "7")
	t.Setenv("LEDGER_LOG__FILE_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Dir != dir || cfg.Log.MaxAgeDays != 7 || cfg.Log.FileLevel != "warn" {
		t.Fatalf("log = %+v", cfg.Log)
	}
	if err := cfg.ApplyLogging(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = utils.ConfigureFileLog("", 0)
		utils.ConfigureFileLogLevel("trace")
	})

	l := utils.NewLogger("CONFIGTEST")
	l.Info("not for files")
	l.Warn("tax form reminder skipped")

	warn, _ := filepath.Glob(filepath.Join(dir, "*", "warn.log"))
	if len(warn) != 1 {
		t.Fatalf("warn files = %v", warn)
	}
	b, err := os.ReadFile(warn[0])
	if err != nil || !strings.Contains(string(b), "tax form reminder skipped") {
		t.Errorf("warn file = %q, %v", b, err)
	}
	if info, _ := filepath.Glob(filepath.Join(dir, "*", "info.log")); len(info) != 0 {
		t.Errorf("info files = %v", info)
	}
}
