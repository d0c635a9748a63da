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

package o5m

import (
	"m4o.io/osmio/internal/errs"
)

// The following settings are from the o5m description:
const (
	// numberOfEntries is the maximum number of entries in the table.
	numberOfEntries = 15000

	// entrySize is the size of one entry in the table.
	entrySize = 256

	// maxLength is the maximum length of a string in the table including
	// two NUL bytes.
	maxLength = 250 + 2
)

// ReferenceTable is the ring of recently seen string pairs an o5m stream
// refers back into. Index 1 is the most recent insertion, numberOfEntries
// the oldest still-live one. The backing slab is allocated on first use so
// an idle table stays small.
type ReferenceTable struct {
	table   []byte
	current int
	live    int
}

// Clear resets the table cursor. The backing storage is unchanged; every
// index is invalid until a new string is added.
func (t *ReferenceTable) Clear() {
	t.current = 0
	t.live = 0
}

// Add stores a string, including its NUL terminators, in the next slot.
// Strings longer than maxLength are not stored and cannot be referenced
// later.
func (t *ReferenceTable) Add(s []byte) {
	if t.table == nil {
		t.table = make([]byte, entrySize*numberOfEntries)
	}

	if len(s) > maxLength {
		return
	}

	copy(t.table[t.current*entrySize:], s)

	t.current++
	if t.current == numberOfEntries {
		t.current = 0
	}

	if t.live < numberOfEntries {
		t.live++
	}
}

// Get returns the slot for a 1-based backward index. Index zero, an index
// beyond the table size, and an index not populated since the last Clear
// are all invalid.
func (t *ReferenceTable) Get(index uint64) ([]byte, error) {
	if index == 0 || index > numberOfEntries || index > uint64(t.live) {
		return nil, errs.ErrBadStringSlot
	}

	entry := (t.current + numberOfEntries - int(index)) % numberOfEntries

	return t.table[entry*entrySize : (entry+1)*entrySize], nil
}
