// Copyright 2025 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package osmbuf provides the entity buffer parsers fill and consumers
// drain. A buffer accumulates committed entities up to a byte capacity;
// once it crosses ninety percent of that capacity the parser swaps it out
// and enqueues it downstream. A buffer is never modified after it has been
// enqueued.
package osmbuf

import (
	"m4o.io/osmio/model"
)

// DefaultCapacity is the default buffer capacity in bytes.
const DefaultCapacity = 2 * 1000 * 1000

const (
	flushNumerator   = 9
	flushDenominator = 10

	entityBase = 64
	tagBase    = 16
	memberBase = 24
	refSize    = 8
)

// Buffer holds a sequence of committed entities in input order.
type Buffer struct {
	capacity  int
	committed int
	entities  []model.Entity
}

// New creates an empty buffer with the given byte capacity. A
// non-positive capacity selects DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Buffer{capacity: capacity}
}

// Append commits an entity to the buffer.
func (b *Buffer) Append(e model.Entity) {
	b.entities = append(b.entities, e)
	b.committed += footprint(e)
}

// Entities returns the committed entities in input order.
func (b *Buffer) Entities() []model.Entity {
	return b.entities
}

// Len returns the number of committed entities.
func (b *Buffer) Len() int {
	return len(b.entities)
}

// Committed returns the committed size in bytes.
func (b *Buffer) Committed() int {
	return b.committed
}

// Capacity returns the buffer capacity in bytes.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// NeedsFlush reports whether the buffer has crossed its flush threshold.
func (b *Buffer) NeedsFlush() bool {
	return b.committed > b.capacity/flushDenominator*flushNumerator
}

// footprint estimates the committed size of an entity.
func footprint(e model.Entity) int {
	size := entityBase

	for _, tag := range e.GetTags() {
		size += tagBase + len(tag.Key) + len(tag.Value)
	}

	if info := e.GetInfo(); info != nil {
		size += len(info.User)
	}

	switch v := e.(type) {
	case model.Way:
		size += refSize * len(v.NodeIDs)
	case model.Relation:
		for _, m := range v.Members {
			size += memberBase + len(m.Role)
		}
	}

	return size
}
