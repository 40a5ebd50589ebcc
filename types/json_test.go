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

import "testing"

func TestJsonObjectScan(t *testing.T) {
	var j JsonObject
	if err := j.Scan([]byte(`{"payee":{"address":{"country":"FR"}},"draftKey":"k1"}`)); err != nil {
		t.Fatal(err)
	}
	if got := j.Get("payee", "address", "country"); got != "FR" {
		t.Errorf("Get = %v", got)
	}
	if j.Get("payee", "missing", "country") != nil {
		t.Error("a missing level should yield nil")
	}
	if j.String("draftKey") != "k1" || j.String("payee") != "" {
		t.Error("String should only return string values")
	}

	if err := j.Scan(nil); err != nil || j == nil || len(j) != 0 {
		t.Errorf("NULL should scan into an empty object, got %v %v", j, err)
	}
	if err := j.Scan(42); err == nil {
		t.Error("integers are not JSON documents")
	}
}

func TestJsonObjectPickAndClone(t *testing.T) {
	j := JsonObject{"a": 1, "b": 2}
	c := j.Clone()
	c["a"] = 3
	if j["a"] != 1 {
		t.Error("Clone must not share the map")
	}
	if p := j.Pick("b", "z"); len(p) != 1 || p["b"] != 2 {
		t.Errorf("Pick = %v", p)
	}
	if v, err := JsonObject(nil).Value(); v != nil || err != nil {
		t.Errorf("nil object should be stored as NULL, got %v %v", v, err)
	}
}
