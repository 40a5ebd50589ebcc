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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05.000"

var (
	mu      sync.RWMutex
	loggers           = map[string]*logrus.Logger{}
	level             = logrus.InfoLevel
	format            = "text"
	output  io.Writer = os.Stdout
)

// NewLogger returns the logger registered under name, creating it on first
// use. Loggers follow later ConfigureLogLevel and ConfigureConsoleLogFormat
// calls.
func NewLogger(name string) *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetOutput(output)
	l.SetLevel(level)
	l.SetReportCaller(true)
	l.SetFormatter(newFormatter(name, format))
	l.AddHook(&fileHook{name: name})
	loggers[name] = l
	return l
}

func newFormatter(name, format string) logrus.Formatter {
	if format == "json" {
		return &JSONFormatter{Name: name}
	}
	return &TextFormatter{Name: name, NameWidth: 10, CallerWidth: 25}
}

// ConfigureConsoleLogFormat switches every logger between "text" and
// "json" output.
func ConfigureConsoleLogFormat(f string) {
	mu.Lock()
	defer mu.Unlock()
	format = "text"
	if strings.EqualFold(strings.TrimSpace(f), "json") {
		format = "json"
	}
	for name, l := range loggers {
		l.SetFormatter(newFormatter(name, format))
	}
}

// ConfigureLogLevel sets the level of every logger.
func ConfigureLogLevel(s string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	for _, l := range loggers {
		l.SetLevel(lvl)
	}
	logrus.SetLevel(lvl)
}

// ConfigureLogOutput redirects every logger to w.
func ConfigureLogOutput(w io.Writer) {
	if w == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	output = w
	for _, l := range loggers {
		l.SetOutput(w)
	}
}

var levelColors = map[logrus.Level]*color.Color{
	logrus.TraceLevel: color.New(color.FgBlue),
	logrus.DebugLevel: color.New(color.FgBlue),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.FatalLevel: color.New(color.FgRed, color.Bold),
	logrus.PanicLevel: color.New(color.FgRed, color.Bold),
}

var (
	nameColor  = color.New(color.FgCyan)
	faintColor = color.New(color.Faint)
)

// TextFormatter prints one coloured line per entry:
// time LEVEL pid - NAME file:line : message key=value...
// Plain drops the colours, for files.
type TextFormatter struct {
	Name        string
	NameWidth   int
	CallerWidth int
	Plain       bool
}

func (f *TextFormatter) paint(c *color.Color, s string) string {
	if f.Plain || c == nil {
		return s
	}
	return c.Sprint(s)
}

func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(entry.Time.Format(timestampFormat))
	b.WriteByte(' ')
	b.WriteString(f.paint(levelColors[entry.Level], fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String()))))
	fmt.Fprintf(&b, " %-6d - ", os.Getpid())
	b.WriteString(f.paint(nameColor, fmt.Sprintf("%*s", f.NameWidth, truncate(f.Name, f.NameWidth, false))))
	if entry.Caller != nil {
		caller := fmt.Sprintf("%s:%d", shortPath(entry.Caller.File), entry.Caller.Line)
		b.WriteString(f.paint(faintColor, fmt.Sprintf(" %*s", f.CallerWidth, truncate(caller, f.CallerWidth, true))))
	}
	b.WriteString(f.paint(faintColor, " :"))
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// JSONFormatter prints one JSON object per entry. Error values are
// rendered with their message.
type JSONFormatter struct {
	Name string
}

type jsonRecord struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Logger  string                 `json:"logger"`
	Caller  string                 `json:"caller,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

func (f *JSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	rec := jsonRecord{
		Time:    entry.Time.Format(timestampFormat),
		Level:   entry.Level.String(),
		Logger:  f.Name,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = fmt.Sprintf("%s:%d", shortPath(entry.Caller.File), entry.Caller.Line)
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// truncate keeps at most n runes, from the end when tail is set.
func truncate(s string, n int, tail bool) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if tail {
		return string(r[len(r)-n:])
	}
	return string(r[:n])
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// shortPath keeps the parent directory and the file name.
func shortPath(p string) string {
	dir, file := filepath.Split(filepath.ToSlash(p))
	return filepath.Base(dir) + "/" + file
}
