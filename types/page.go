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

// QueryFilter is a WHERE clause with its bound arguments.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// PageRequest selects a window of a listing by offset and limit. Limit is
// clamped to [1, MaxLimit] and defaults to DefaultLimit.
type PageRequest struct {
	Offset int
	Limit  int
	Filter *QueryFilter
	Orders []string // "created_at DESC", "id ASC"
}

func NewPageRequest(offset, limit int, filter *QueryFilter, orders ...string) *PageRequest {
	return &PageRequest{Offset: offset, Limit: limit, Filter: filter, Orders: orders}
}

func (p *PageRequest) GetLimit() int {
	switch {
	case p.Limit < 1:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	}
	return p.Limit
}

func (p *PageRequest) GetOffset() int {
	if p.Offset < 0 {
		return 0
	}
	return p.Offset
}

// Collection is one window of a listing plus the size of the whole listing.
type Collection[T any] struct {
	Offset     int  `json:"offset"`
	Limit      int  `json:"limit"`
	TotalCount int  `json:"totalCount"`
	Nodes      []*T `json:"nodes"`
}

// HasMore reports whether rows exist past this window.
func (c *Collection[T]) HasMore() bool {
	return c.Offset+len(c.Nodes) < c.TotalCount
}

func emptyCollection[T any](p *PageRequest) *Collection[T] {
	return &Collection[T]{Offset: p.GetOffset(), Limit: p.GetLimit(), Nodes: make([]*T, 0)}
}

// NewCollection wraps nodes fetched for p.
func NewCollection[T any](p *PageRequest, total int, nodes []*T) *Collection[T] {
	c := emptyCollection[T](p)
	c.TotalCount = total
	if nodes != nil {
		c.Nodes = nodes
	}
	return c
}
