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

package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JsonObject is a convenience type for JSON columns mapped to objects.
type JsonObject map[string]interface{}

// Value implements driver.Valuer for JsonObject. The document is sent as
// text so every dialect can cast it into its JSON column type.
func (j JsonObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JsonObject.
func (j *JsonObject) Scan(value interface{}) error {
	*j = make(JsonObject)
	raw, err := jsonBytes(value)
	if err != nil || len(raw) == 0 {
		return err
	}
	return json.Unmarshal(raw, j)
}

// Get returns a nested value following keys, or nil when any level is missing.
func (j JsonObject) Get(keys ...string) interface{} {
	var cur interface{} = map[string]interface{}(j)
	for _, k := range keys {
		m, ok := asMap(cur)
		if !ok {
			return nil
		}
		cur = m[k]
	}
	return cur
}

// String returns the string stored under key, or "".
func (j JsonObject) String(key string) string {
	s, _ := j[key].(string)
	return s
}

// Clone returns a shallow copy that can be modified without touching j.
func (j JsonObject) Clone() JsonObject {
	out := make(JsonObject, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}

// Pick keeps only the listed keys.
func (j JsonObject) Pick(keys ...string) JsonObject {
	out := make(JsonObject, len(keys))
	for _, k := range keys {
		if v, ok := j[k]; ok {
			out[k] = v
		}
	}
	return out
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", value)
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case JsonObject:
		return m, true
	default:
		return nil, false
	}
}
