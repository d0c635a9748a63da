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

// Package varint implements the LEB128 and zigzag primitives used by the
// o5m decoder.
package varint

import (
	"m4o.io/osmio/internal/errs"
)

// MaxLen is the maximum number of bytes a 64-bit varint occupies.
const MaxLen = 10

// Uvarint decodes an unsigned LEB128 varint from buf starting at pos and
// returns the value together with the position of the first byte after it.
// A varint longer than MaxLen bytes, or one cut off by the end of buf,
// yields errs.ErrMalformedVarint.
func Uvarint(buf []byte, pos int) (uint64, int, error) {
	var val uint64

	var shift uint

	for i := 0; i < MaxLen; i++ {
		if pos+i >= len(buf) {
			return 0, pos, errs.ErrMalformedVarint
		}

		b := buf[pos+i]
		val |= uint64(b&0x7f) << shift

		if b < 0x80 {
			return val, pos + i + 1, nil
		}

		shift += 7
	}

	return 0, pos, errs.ErrMalformedVarint
}

// Svarint decodes a zigzag-encoded signed varint from buf starting at pos.
func Svarint(buf []byte, pos int) (int64, int, error) {
	u, next, err := Uvarint(buf, pos)
	if err != nil {
		return 0, pos, err
	}

	return ZigzagDecode(u), next, nil
}

// ZigzagDecode maps an unsigned zigzag value back to its signed form.
func ZigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
