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

package pb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// fieldFunc handles one field positioned at its value. It returns the
// number of bytes consumed, or a negative count to have the field skipped
// as unknown.
type fieldFunc func(num protowire.Number, typ protowire.Type, data []byte) (int, error)

// scan walks every field of a message, dispatching each to f and skipping
// whatever f declines.
func scan(data []byte, f fieldFunc) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrMalformed
		}

		data = data[n:]

		n, err := f(num, typ, data)
		if err != nil {
			return err
		}

		if n < 0 {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return ErrMalformed
			}
		}

		data = data[n:]
	}

	return nil
}

func asUint32(v uint64) uint32 { return uint32(v) }

func asInt32(v uint64) int32 { return int32(v) }

func asSint64(v uint64) int64 { return protowire.DecodeZigZag(v) }

func asSint32(v uint64) int32 { return int32(protowire.DecodeZigZag(v)) }

func asBool(v uint64) bool { return v != 0 }

// packed appends the values of a packed repeated varint field to dst. A
// single unpacked element, as older writers emit, is accepted as well.
func packed[T any](dst []T, data []byte, typ protowire.Type, conv func(uint64) T) ([]T, int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return dst, n, ErrMalformed
		}

		return append(dst, conv(v)), n, nil
	case protowire.BytesType:
		buf, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return dst, n, ErrMalformed
		}

		for len(buf) > 0 {
			v, m := protowire.ConsumeVarint(buf)
			if m < 0 {
				return dst, n, ErrMalformed
			}

			dst = append(dst, conv(v))
			buf = buf[m:]
		}

		return dst, n, nil
	default:
		return dst, 0, ErrMalformed
	}
}
