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
	"m4o.io/osmio/internal/errs"
)

// The error kinds a parser can fail with. Every kind terminates the
// stream; match with errors.Is.
var (
	// ErrFormatMagic is returned when the o5m prologue or a PBF blob type
	// does not match what the format requires.
	ErrFormatMagic = errs.ErrFormatMagic

	// ErrTruncated is returned when the input ends in the middle of a
	// dataset or blob.
	ErrTruncated = errs.ErrTruncated

	// ErrMalformedVarint is returned when a varint exceeds ten bytes or is
	// cut off by the end of its buffer.
	ErrMalformedVarint = errs.ErrMalformedVarint

	// ErrBadStringSlot is returned for a reference-table index that is
	// zero, beyond the table size, or not populated since the last reset.
	ErrBadStringSlot = errs.ErrBadStringSlot

	// ErrMissingNul is returned when a tag, user name, or role lacks its
	// NUL terminator.
	ErrMissingNul = errs.ErrMissingNul

	// ErrUnknownMemberType is returned for a relation member type outside
	// the node/way/relation range.
	ErrUnknownMemberType = errs.ErrUnknownMemberType

	// ErrSizeLimitExceeded is returned when a BlobHeader or an
	// uncompressed blob exceeds its configured cap.
	ErrSizeLimitExceeded = errs.ErrSizeLimitExceeded

	// ErrMissingBlobSize is returned when BlobHeader.datasize is missing
	// or zero.
	ErrMissingBlobSize = errs.ErrMissingBlobSize

	// ErrUnsupportedFeature is returned for a PBF required feature this
	// implementation does not provide.
	ErrUnsupportedFeature = errs.ErrUnsupportedFeature

	// ErrUnsupportedCompression is returned for a blob compressed with a
	// codec that is not enabled.
	ErrUnsupportedCompression = errs.ErrUnsupportedCompression

	// ErrSizeMismatch is returned when an inflated blob does not match its
	// declared raw size.
	ErrSizeMismatch = errs.ErrSizeMismatch

	// ErrCancelled is returned when parsing is cancelled.
	ErrCancelled = errs.ErrCancelled

	// ErrUnsupportedFormat is returned by the parser factory for an
	// unknown format tag.
	ErrUnsupportedFormat = errs.ErrUnsupportedFormat

	// ErrDuplicateFormat is returned when a format tag is registered
	// twice.
	ErrDuplicateFormat = errs.ErrDuplicateFormat
)
