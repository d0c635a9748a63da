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
	"context"
	"fmt"
	"sync"

	"github.com/destel/rill"

	"m4o.io/osmio/future"
	"m4o.io/osmio/model"
	"m4o.io/osmio/osmbuf"
)

// Parser decodes one input stream. Run blocks until the stream ends or
// fails; Cancel may be called from any goroutine and is idempotent.
//
// The parser closes the output queue when it is done, after the header
// promise has been resolved and any trailing buffer or error has been
// enqueued.
type Parser interface {
	Run() error
	Cancel()
}

// ParserConfig carries the queue endpoints and resolved options handed to
// a parser factory.
type ParserConfig struct {
	// Input carries chunks of raw bytes; closing the channel is the
	// end-of-stream sentinel, an item with an error the failure sentinel.
	Input <-chan rill.Try[[]byte]

	// Output receives buffers of decoded entities in input order. The
	// parser closes it when the stream ends.
	Output chan<- rill.Try[*osmbuf.Buffer]

	// Header is resolved exactly once, before the first buffer reaches
	// Output.
	Header *future.Promise[model.Header]

	ReadTypes    model.EntityMask
	ReadMetadata bool

	// PoolSize is the number of PBF blob decode workers; one or less
	// decodes on the parser goroutine. Ignored by the o5m parser.
	PoolSize int

	MaxBlobHeaderSize       int
	MaxUncompressedBlobSize int

	// BufferSize is the entity buffer capacity in bytes; zero selects
	// osmbuf.DefaultCapacity. Ignored by the PBF parser, which emits one
	// buffer per data blob.
	BufferSize int
}

// ParserFactory constructs a parser bound to the given configuration.
type ParserFactory func(ctx context.Context, cfg ParserConfig) Parser

var (
	registryMu sync.RWMutex
	registry   = make(map[Format]ParserFactory)
)

// RegisterParser adds a parser factory for a format tag. Registering the
// same tag twice is an error. The formats known at build time are
// registered during package initialization.
func RegisterParser(format Format, factory ParserFactory) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[format]; dup {
		return fmt.Errorf("format %s: %w", format, ErrDuplicateFormat)
	}

	registry[format] = factory

	return nil
}

// OpenParser constructs a parser for the given format, bound to the input
// and output queues and the header promise. The caller runs the parser
// with Run, typically on its own goroutine, and drains the output queue.
func OpenParser(
	ctx context.Context,
	format Format,
	input <-chan rill.Try[[]byte],
	output chan<- rill.Try[*osmbuf.Buffer],
	header *future.Promise[model.Header],
	opts ...ParserOption,
) (Parser, error) {
	registryMu.RLock()
	factory, ok := registry[format]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("format %s: %w", format, ErrUnsupportedFormat)
	}

	cfg := defaultParserOptions()

	for _, opt := range opts {
		opt(&cfg)
	}

	poolSize := cfg.poolSize
	if !cfg.usePool {
		poolSize = 1
	}

	return factory(ctx, ParserConfig{
		Input:                   input,
		Output:                  output,
		Header:                  header,
		ReadTypes:               cfg.readTypes,
		ReadMetadata:            cfg.readMetadata,
		PoolSize:                poolSize,
		MaxBlobHeaderSize:       cfg.maxBlobHeaderSize,
		MaxUncompressedBlobSize: cfg.maxUncompressedBlobSize,
		BufferSize:              cfg.bufferSize,
	}), nil
}
