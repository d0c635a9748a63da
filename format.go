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

package osmio

import (
	"bytes"
	"fmt"
)

// Format is the tag of a stream encoding the parser factory is keyed on.
type Format int

const (
	// FormatUnknown is the zero value; no parser is registered for it.
	FormatUnknown Format = iota

	// O5M is the o5m data file format.
	O5M

	// O5C is the o5c change file format.
	O5C

	// PBF is the protobuf-based format.
	PBF
)

func (f Format) String() string {
	switch f {
	case O5M:
		return "o5m"
	case O5C:
		return "o5c"
	case PBF:
		return "pbf"
	default:
		return "unknown"
	}
}

// ParseFormat converts a format tag into a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "o5m":
		return O5M, nil
	case "o5c":
		return O5C, nil
	case "pbf":
		return PBF, nil
	default:
		return FormatUnknown, fmt.Errorf("format %q: %w", s, ErrUnsupportedFormat)
	}
}

var o5mPrologue = []byte{0xff, 0xe0, 0x04, 'o', '5'}

// DetectFormat sniffs the encoding from the first bytes of a stream.
// Sixteen bytes are enough for every format it knows.
func DetectFormat(prefix []byte) Format {
	if len(prefix) >= 6 && bytes.HasPrefix(prefix, o5mPrologue) {
		switch prefix[5] {
		case 'm':
			return O5M
		case 'c':
			return O5C
		}

		return FormatUnknown
	}

	// A PBF stream opens with a 4-byte frame size followed by a
	// BlobHeader whose first field is the type string "OSMHeader".
	if len(prefix) >= 6 && prefix[4] == 0x0a && bytes.Contains(prefix, []byte("OSMHeader")) {
		return PBF
	}

	return FormatUnknown
}
