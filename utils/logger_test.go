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
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLoggersFollowConfiguration(t *testing.T) {
	var buf bytes.Buffer
	ConfigureLogOutput(&buf)
	l := NewLogger("UTILSTEST")
	if NewLogger("UTILSTEST") != l {
		t.Fatal("NewLogger should return the registered logger")
	}

	ConfigureLogLevel("warn")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}

	ConfigureConsoleLogFormat("json")
	defer ConfigureConsoleLogFormat("text")
	defer ConfigureLogLevel("info")
	l.WithError(errors.New("boom")).WithField("expense", 42).Warn("payout failed")

	var rec jsonRecord
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec.Logger != "UTILSTEST" || rec.Level != "warning" || rec.Message != "payout failed" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Fields["error"] != "boom" || rec.Fields["expense"] != float64(42) {
		t.Errorf("fields = %v", rec.Fields)
	}
}

func TestTextFormatter(t *testing.T) {
	f := &TextFormatter{Name: "A-VERY-LONG-NAME", NameWidth: 6}
	entry := logrus.NewEntry(logrus.New()).WithFields(logrus.Fields{"b": 2, "a": 1})
	entry.Level = logrus.InfoLevel
	entry.Message = "hello"
	out, err := f.Format(entry)
	if err != nil {
		t.Fatal(err)
	}
	line := string(out)
	if !strings.Contains(line, "A-VERY") || strings.Contains(line, "A-VERY-") {
		t.Errorf("name should be cut to 6 runes: %q", line)
	}
	if !strings.HasSuffix(line, "hello a=1 b=2\n") {
		t.Errorf("fields should be sorted after the message: %q", line)
	}
}
