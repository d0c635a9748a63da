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
	"runtime"

	"m4o.io/osmio/model"
)

// DefaultNCpu provides the default number of blob decode workers.
func DefaultNCpu() uint16 {
	cpus := uint16(runtime.GOMAXPROCS(-1))

	return max(cpus-1, 1)
}

// parserOptions provides optional configuration parameters for parser
// construction.
type parserOptions struct {
	readTypes               model.EntityMask
	readMetadata            bool
	usePool                 bool
	poolSize                int
	maxBlobHeaderSize       int
	maxUncompressedBlobSize int
	bufferSize              int
}

// ParserOption configures how we set up a parser.
type ParserOption func(*parserOptions)

// WithReadTypes lets you select which entity types are delivered. With
// model.MaskNothing only the header is parsed.
func WithReadTypes(mask model.EntityMask) ParserOption {
	return func(o *parserOptions) {
		o.readTypes = mask
	}
}

// WithMetadata lets you control whether entity metadata (version,
// timestamp, changeset, uid, user) is decoded.
func WithMetadata(read bool) ParserOption {
	return func(o *parserOptions) {
		o.readMetadata = read
	}
}

// WithoutPool forces PBF blobs to be decoded on the parser goroutine.
func WithoutPool() ParserOption {
	return func(o *parserOptions) {
		o.usePool = false
	}
}

// WithPoolSize lets you set the number of blob decode workers.
func WithPoolSize(n int) ParserOption {
	return func(o *parserOptions) {
		o.usePool = n > 1
		o.poolSize = n
	}
}

// WithMaxBlobHeaderSize lets you cap the outer BlobHeader size.
func WithMaxBlobHeaderSize(n int) ParserOption {
	return func(o *parserOptions) {
		o.maxBlobHeaderSize = n
	}
}

// WithMaxUncompressedBlobSize lets you cap the size of a decompressed
// blob.
func WithMaxUncompressedBlobSize(n int) ParserOption {
	return func(o *parserOptions) {
		o.maxUncompressedBlobSize = n
	}
}

// WithBufferSize lets you set the capacity of the entity buffers emitted
// on the output queue. Only the o5m parser uses it; the PBF parser emits
// one buffer per data blob.
func WithBufferSize(n int) ParserOption {
	return func(o *parserOptions) {
		o.bufferSize = n
	}
}

// defaultParserOptions provides a default configuration for parsers.
func defaultParserOptions() parserOptions {
	return parserOptions{
		readTypes:    model.MaskAll,
		readMetadata: true,
		usePool:      true,
		poolSize:     int(DefaultNCpu()),
	}
}
