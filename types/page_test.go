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

func TestPageRequestClamps(t *testing.T) {
	tests := []struct {
		offset, limit         int
		wantOffset, wantLimit int
	}{
		{0, 0, 0, DefaultLimit},
		{-5, 20, 0, 20},
		{40, 5000, 40, MaxLimit},
	}
	for _, tt := range tests {
		p := NewPageRequest(tt.offset, tt.limit, nil)
		if p.GetOffset() != tt.wantOffset || p.GetLimit() != tt.wantLimit {
			t.Errorf("NewPageRequest(%d, %d) = offset %d limit %d", tt.offset, tt.limit, p.GetOffset(), p.GetLimit())
		}
	}
}

func TestCollectionHasMore(t *testing.T) {
	a, b := 1, 2
	c := NewCollection(NewPageRequest(0, 2, nil), 3, []*int{&a, &b})
	if !c.HasMore() {
		t.Error("expected more rows after the first window")
	}
	c = NewCollection[int](NewPageRequest(2, 2, nil), 2, nil)
	if c.HasMore() || c.Nodes == nil {
		t.Errorf("empty tail window = %+v", c)
	}
}
