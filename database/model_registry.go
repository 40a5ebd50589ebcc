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
	"reflect"
	"sort"
	"sync"
)

// Index is a secondary index created after the tables.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// IndexedModel is implemented by models declaring secondary indexes. bun's
// struct tags only express single column uniqueness.
type IndexedModel interface {
	Indexes() []Index
}

type registration struct {
	model    interface{}
	priority int
}

var (
	registryMu sync.RWMutex
	registry   []registration
)

// Register adds models to the migration set at priority. Lower priorities
// are created first so referenced tables exist before the rows pointing at
// them. Models are nil struct pointers, e.g. (*Expense)(nil).
func Register(priority int, models ...interface{}) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, m := range models {
		registry = append(registry, registration{model: m, priority: priority})
	}
}

// RegisteredModelInstances returns the registered models by ascending
// priority, keeping registration order within a priority.
func RegisteredModelInstances() []interface{} {
	registryMu.RLock()
	sorted := make([]registration, len(registry))
	copy(sorted, registry)
	registryMu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})
	out := make([]interface{}, len(sorted))
	for i, r := range sorted {
		out[i] = r.model
	}
	return out
}

func modelName(model interface{}) string {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
