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
	"io"

	"github.com/destel/rill"

	"m4o.io/osmio/future"
	"m4o.io/osmio/model"
	"m4o.io/osmio/osmbuf"
)

const (
	// DefaultChunkSize is the size of the chunks a Reader feeds its
	// parser.
	DefaultChunkSize = 256 * 1024

	// DefaultQueueLength is the bound of the input and output queues a
	// Reader wires up.
	DefaultQueueLength = 8
)

// Reader decodes an OSM stream from an io.Reader, wiring the chunker, the
// parser, and the queues together.
type Reader struct {
	parser Parser
	cancel context.CancelFunc
	output chan rill.Try[*osmbuf.Buffer]
	header *future.Promise[model.Header]
}

// NewReader starts decoding from r in the background. The format is
// looked up in the parser factory; options are passed through.
func NewReader(ctx context.Context, r io.Reader, format Format, opts ...ParserOption) (*Reader, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)

	input := make(chan rill.Try[[]byte], DefaultQueueLength)
	output := make(chan rill.Try[*osmbuf.Buffer], DefaultQueueLength)
	header := future.NewPromise[model.Header]()

	parser, err := OpenParser(ctx, format, input, output, header, opts...)
	if err != nil {
		cancel()

		return nil, err
	}

	go produce(ctx, r, input)

	go parser.Run() //nolint:errcheck // surfaced on the output queue

	return &Reader{parser: parser, cancel: cancel, output: output, header: header}, nil
}

// produce chunks r onto the input queue until EOF or failure.
func produce(ctx context.Context, r io.Reader, input chan<- rill.Try[[]byte]) {
	defer close(input)

	for {
		chunk := make([]byte, DefaultChunkSize)

		n, err := r.Read(chunk)
		if n > 0 {
			select {
			case input <- rill.Try[[]byte]{Value: chunk[:n]}:
			case <-ctx.Done():
				return
			}
		}

		if err == io.EOF {
			return
		}

		if err != nil {
			select {
			case input <- rill.Try[[]byte]{Error: err}:
			case <-ctx.Done():
			}

			return
		}
	}
}

// Header blocks until the stream header is available or parsing fails.
func (r *Reader) Header(ctx context.Context) (model.Header, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	return r.header.Wait(ctx)
}

// Decode returns the entities of the next buffer. The end of the stream
// is reported by io.EOF.
func (r *Reader) Decode() ([]model.Entity, error) {
	t, ok := <-r.output
	if !ok {
		return nil, io.EOF
	}

	if t.Error != nil {
		return nil, t.Error
	}

	return t.Value.Entities(), nil
}

// Close cancels the parser and the chunker and drains what was in
// flight.
func (r *Reader) Close() {
	r.cancel()
	r.parser.Cancel()

	for range r.output { //nolint:revive // drain
	}
}
