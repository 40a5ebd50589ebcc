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

package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDailyRollingFiles(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	files.now = func() time.Time { return day }
	ConfigureLogOutput(io.Discard)
	ConfigureLogLevel("info")
	if err := ConfigureFileLog(dir, 2); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = ConfigureFileLog("", 0)
		ConfigureFileLogLevel("trace")
		files.now = time.Now
	})

	if err := os.MkdirAll(filepath.Join(dir, "2026-03-01"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatal(err)
	}

	l := NewLogger("FILETEST")
	l.Info("drafted 3 recurring expenses")
	l.WithField("expense", 7).Error("payout failed")
	l.Debug("below the logger level")

	info := readLog(t, dir, "2026-03-10", "info")
	if !strings.Contains(info, "drafted 3 recurring expenses") || strings.Contains(info, "payout failed") {
		t.Errorf("info file = %q", info)
	}
	if strings.Contains(info, "\x1b[") {
		t.Errorf("file output must not be coloured: %q", info)
	}
	if errLog := readLog(t, dir, "2026-03-10", "error"); !strings.Contains(errLog, "payout failed expense=7") {
		t.Errorf("error file = %q", errLog)
	}
	if _, err := os.Stat(filepath.Join(dir, "2026-03-10", "debug.log")); !os.IsNotExist(err) {
		t.Errorf("debug file should not exist, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2026-03-01")); !os.IsNotExist(err) {
		t.Errorf("expired day directory kept, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "archive")); err != nil {
		t.Errorf("non dated directory removed: %v", err)
	}

	ConfigureFileLogLevel("error")
	day = day.AddDate(0, 0, 1)
	l.Info("next day info")
	l.Error("next day error")
	if _, err := os.Stat(filepath.Join(dir, "2026-03-11", "info.log")); !os.IsNotExist(err) {
		t.Errorf("info should be filtered from files at error level, stat err = %v", err)
	}
	if errLog := readLog(t, dir, "2026-03-11", "error"); !strings.Contains(errLog, "next day error") {
		t.Errorf("rolled error file = %q", errLog)
	}
	if _, err := os.Stat(filepath.Join(dir, "2026-03-10")); err != nil {
		t.Errorf("day within max age removed: %v", err)
	}
}

func TestFileLogDisabled(t *testing.T) {
	dir := t.TempDir()
	if err := ConfigureFileLog("", 0); err != nil {
		t.Fatal(err)
	}
	ConfigureLogOutput(io.Discard)
	NewLogger("FILETEST").Error("nowhere")
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 0 {
		t.Errorf("entries = %v, %v", entries, err)
	}
}

func readLog(t *testing.T, dir, day, level string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, day, level+".log"))
	if err != nil {
		t.Fatalf("read %s/%s: %v", day, level, err)
	}
	return string(b)
}
