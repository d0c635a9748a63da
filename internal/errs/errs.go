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

// Package errs holds the sentinel errors shared by the o5m and PBF parsers.
// The root osmio package re-exports them for callers to match with errors.Is.
package errs

import "errors"

var (
	// ErrFormatMagic is returned when the o5m prologue or a PBF blob type
	// does not match what the format requires.
	ErrFormatMagic = errors.New("format magic mismatch")

	// ErrTruncated is returned when the input ends in the middle of a
	// dataset or blob.
	ErrTruncated = errors.New("premature end of file")

	// ErrMalformedVarint is returned when a varint exceeds ten bytes or is
	// cut off by the end of its buffer.
	ErrMalformedVarint = errors.New("malformed varint")

	// ErrBadStringSlot is returned for a reference-table index that is
	// zero, beyond the table size, or not populated since the last reset.
	ErrBadStringSlot = errors.New("reference to non-existing string in table")

	// ErrMissingNul is returned when a tag, user name, or role lacks its
	// NUL terminator.
	ErrMissingNul = errors.New("missing NUL terminator")

	// ErrUnknownMemberType is returned for a relation member type byte
	// outside '0'..'2'.
	ErrUnknownMemberType = errors.New("unknown member type")

	// ErrSizeLimitExceeded is returned when a BlobHeader or an uncompressed
	// blob exceeds its configured cap.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")

	// ErrMissingBlobSize is returned when BlobHeader.datasize is missing
	// or zero.
	ErrMissingBlobSize = errors.New("BlobHeader datasize missing or zero")

	// ErrUnsupportedFeature is returned for a PBF required feature this
	// implementation does not provide.
	ErrUnsupportedFeature = errors.New("unsupported required feature")

	// ErrUnsupportedCompression is returned for a blob compressed with a
	// codec that is not enabled.
	ErrUnsupportedCompression = errors.New("unsupported blob compression")

	// ErrSizeMismatch is returned when an inflated blob does not match its
	// declared raw size.
	ErrSizeMismatch = errors.New("uncompressed size mismatch")

	// ErrCancelled is returned when parsing is cancelled.
	ErrCancelled = errors.New("parsing cancelled")

	// ErrUnsupportedFormat is returned by the parser factory for an
	// unknown format tag.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrDuplicateFormat is returned when a format tag is registered twice.
	ErrDuplicateFormat = errors.New("format already registered")
)
