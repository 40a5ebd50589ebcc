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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const dayLayout = "2006-01-02"

// fileSink holds the rolling log files shared by every logger. All writes
// go through its mutex.
type fileSink struct {
	mu         sync.Mutex
	dir        string
	maxAgeDays int
	level      logrus.Level
	writers    map[string]*dailyWriter
	now        func() time.Time
}

var files = &fileSink{level: logrus.TraceLevel, now: time.Now}

// ConfigureFileLog mirrors every logger into daily rolling files laid out
// as dir/<yyyy-mm-dd>/<level>.log. When a new day starts, day directories
// older than maxAgeDays are removed; 0 keeps them all. An empty dir turns
// file logging off and closes the open files.
func ConfigureFileLog(dir string, maxAgeDays int) error {
	files.mu.Lock()
	defer files.mu.Unlock()
	files.closeLocked()
	files.dir = ""
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create log directory: %w", err)
	}
	files.dir = dir
	files.maxAgeDays = maxAgeDays
	return nil
}

// ConfigureFileLogLevel sets the most verbose level written to files.
// Entries already filtered by the logger level never reach them.
func ConfigureFileLogLevel(s string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		lvl = logrus.TraceLevel
	}
	files.mu.Lock()
	files.level = lvl
	files.mu.Unlock()
}

func (s *fileSink) write(e *logrus.Entry, f logrus.Formatter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" || e.Level > s.level {
		return nil
	}
	b, err := f.Format(e)
	if err != nil {
		return err
	}
	name := fileLevelName(e.Level)
	w, ok := s.writers[name]
	if !ok {
		w = &dailyWriter{dir: s.dir, level: name, maxAgeDays: s.maxAgeDays}
		s.writers[name] = w
	}
	return w.write(s.now(), b)
}

func (s *fileSink) closeLocked() {
	for _, w := range s.writers {
		w.close()
	}
	s.writers = map[string]*dailyWriter{}
}

// fatal and panic entries share the error file.
func fileLevelName(lvl logrus.Level) string {
	switch lvl {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return "error"
	case logrus.WarnLevel:
		return "warn"
	default:
		return lvl.String()
	}
}

// fileHook forwards the entries of one named logger to the shared sink,
// formatted like the console but without colours.
type fileHook struct {
	name string
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	mu.RLock()
	f := format
	mu.RUnlock()
	var formatter logrus.Formatter = &TextFormatter{Name: h.name, NameWidth: 10, Plain: true}
	if f == "json" {
		formatter = &JSONFormatter{Name: h.name}
	}
	return files.write(e, formatter)
}

type dailyWriter struct {
	dir        string
	level      string
	maxAgeDays int
	day        string
	file       *os.File
}

func (w *dailyWriter) write(now time.Time, p []byte) error {
	day := now.Format(dayLayout)
	if w.file == nil || w.day != day {
		w.close()
		if err := os.MkdirAll(filepath.Join(w.dir, day), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(w.dir, day, w.level+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		w.file, w.day = f, day
		removeExpiredLogDirs(w.dir, now, w.maxAgeDays)
	}
	_, err := w.file.Write(p)
	return err
}

func (w *dailyWriter) close() {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
}

// removeExpiredLogDirs deletes the day directories dated before
// now - maxAgeDays. Anything not named like a date is left alone.
func removeExpiredLogDirs(dir string, now time.Time, maxAgeDays int) {
	if maxAgeDays <= 0 {
		return
	}
	cutoff := now.AddDate(0, 0, -maxAgeDays).Format(dayLayout)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(dayLayout, e.Name()); err != nil {
			continue
		}
		if e.Name() < cutoff {
			_ = os.RemoveAll(filepath.Join(dir, e.Name()))
		}
	}
}
