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

// Package pbf implements a streaming parser for the OSM PBF format. The
// outer framing is read serially on the parser goroutine; data blobs are
// self-contained decode jobs fanned out to a bounded worker pool whose
// results reach the output queue in submission order.
package pbf

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/destel/rill"

	"m4o.io/osmio/future"
	"m4o.io/osmio/internal/errs"
	"m4o.io/osmio/internal/pbf/pb"
	"m4o.io/osmio/model"
	"m4o.io/osmio/osmbuf"
)

const (
	// DefaultMaxBlobHeaderSize caps the outer BlobHeader message.
	DefaultMaxBlobHeaderSize = 64 * 1024

	// DefaultMaxUncompressedBlobSize caps a blob after decompression.
	DefaultMaxUncompressedBlobSize = 32 * 1024 * 1024

	blobTypeHeader = "OSMHeader"
	blobTypeData   = "OSMData"
)

// Config carries the queue endpoints and read options of one parser
// instance.
type Config struct {
	Input        <-chan rill.Try[[]byte]
	Output       chan<- rill.Try[*osmbuf.Buffer]
	Header       *future.Promise[model.Header]
	ReadTypes    model.EntityMask
	ReadMetadata bool

	// PoolSize is the number of blob decode workers. A size of one or
	// less decodes every blob on the parser goroutine.
	PoolSize int

	MaxBlobHeaderSize       int
	MaxUncompressedBlobSize int
}

// Parser decodes one PBF stream. Create with NewParser; Run blocks until
// the stream ends or fails.
type Parser struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	window    []byte
	pos       int
	inputDone bool
}

// NewParser creates a parser bound to the given queues.
func NewParser(ctx context.Context, cfg Config) *Parser {
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.MaxBlobHeaderSize <= 0 {
		cfg.MaxBlobHeaderSize = DefaultMaxBlobHeaderSize
	}

	if cfg.MaxUncompressedBlobSize <= 0 {
		cfg.MaxUncompressedBlobSize = DefaultMaxUncompressedBlobSize
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Parser{cfg: cfg, ctx: ctx, cancel: cancel}
}

// Cancel stops the parser. It is idempotent and safe from any goroutine.
func (p *Parser) Cancel() {
	p.cancel()
}

// Run parses the stream to its end. The header promise is resolved before
// the first buffer reaches the output queue; the output queue is closed
// once parsing ends, successfully or not.
func (p *Parser) Run() error {
	err := p.run()
	if err != nil {
		slog.Error("unable to parse pbf stream", "error", err)

		p.cfg.Header.Fail(err)

		if !errors.Is(err, errs.ErrCancelled) {
			select {
			case p.cfg.Output <- rill.Try[*osmbuf.Buffer]{Error: err}:
			case <-p.ctx.Done():
			}
		}
	}

	close(p.cfg.Output)

	return err
}

func (p *Parser) run() error {
	if err := p.parseHeaderBlob(); err != nil {
		return err
	}

	if p.cfg.ReadTypes == model.MaskNothing {
		return nil
	}

	if p.cfg.PoolSize <= 1 {
		return p.parseDataBlobsSerial()
	}

	return p.parseDataBlobsPooled()
}

// parseHeaderBlob reads the mandatory first blob and publishes the
// header. An input that ends before the first frame publishes a default
// header.
func (p *Parser) parseHeaderBlob() error {
	raw, eof, err := p.nextBlob(blobTypeHeader)
	if err != nil {
		return err
	}

	if eof {
		p.cfg.Header.Fulfill(model.Header{})

		return nil
	}

	payload, err := unpackBlob(raw, p.cfg.MaxUncompressedBlobSize)
	if err != nil {
		return err
	}

	header, err := parseHeaderBlock(payload)
	if err != nil {
		return err
	}

	p.cfg.Header.Fulfill(header)

	return nil
}

// parseDataBlobsSerial decodes every data blob on the parser goroutine.
func (p *Parser) parseDataBlobsSerial() error {
	for {
		select {
		case <-p.ctx.Done():
			return errs.ErrCancelled
		default:
		}

		raw, eof, err := p.nextBlob(blobTypeData)
		if err != nil {
			return err
		}

		if eof {
			return nil
		}

		buf, err := p.decodeJob(raw)
		if err != nil {
			return err
		}

		select {
		case p.cfg.Output <- rill.Try[*osmbuf.Buffer]{Value: buf}:
		case <-p.ctx.Done():
			return errs.ErrCancelled
		}
	}
}

// parseDataBlobsPooled fans data blobs out to a worker pool. Results are
// forwarded in submission order, so the consumer observes entities in
// input order regardless of which worker finishes first.
func (p *Parser) parseDataBlobsPooled() error {
	jobs := make(chan rill.Try[[]byte])

	go func() {
		defer close(jobs)

		for {
			raw, eof, err := p.nextBlob(blobTypeData)
			if err != nil {
				select {
				case jobs <- rill.Try[[]byte]{Error: err}:
				case <-p.ctx.Done():
				}

				return
			}

			if eof {
				return
			}

			select {
			case jobs <- rill.Try[[]byte]{Value: raw}:
			case <-p.ctx.Done():
				return
			}
		}
	}()

	results := rill.OrderedMap(jobs, p.cfg.PoolSize, p.decodeJob)

	var firstErr error

	for result := range results {
		if firstErr != nil {
			continue // drain
		}

		if result.Error != nil {
			firstErr = result.Error
			p.cancel()

			continue
		}

		select {
		case p.cfg.Output <- rill.Try[*osmbuf.Buffer]{Value: result.Value}:
		case <-p.ctx.Done():
			firstErr = errs.ErrCancelled
			p.cancel()
		}
	}

	if firstErr == nil {
		select {
		case <-p.ctx.Done():
			firstErr = errs.ErrCancelled
		default:
		}
	}

	return firstErr
}

// decodeJob turns the raw bytes of one data blob into a buffer of decoded
// entities. It is a pure function of its payload plus the read options,
// safe to run on any worker.
func (p *Parser) decodeJob(raw []byte) (*osmbuf.Buffer, error) {
	payload, err := unpackBlob(raw, p.cfg.MaxUncompressedBlobSize)
	if err != nil {
		return nil, err
	}

	return parsePrimitiveBlock(payload, p.cfg.ReadTypes, p.cfg.ReadMetadata)
}

// nextBlob reads one frame off the input: the 4-byte size, the BlobHeader
// with the expected type, and the raw Blob message bytes. A clean end of
// input at a frame boundary reports eof.
func (p *Parser) nextBlob(expected string) (raw []byte, eof bool, err error) {
	sizeBytes, ok, err := p.readExact(4)
	if err != nil {
		return nil, false, err
	}

	if !ok {
		if len(p.window) > p.pos {
			return nil, false, fmt.Errorf("truncated blob header size: %w", errs.ErrTruncated)
		}

		return nil, true, nil
	}

	size := binary.BigEndian.Uint32(sizeBytes)
	if size > uint32(p.cfg.MaxBlobHeaderSize) {
		return nil, false, fmt.Errorf("invalid BlobHeader size %d: %w", size, errs.ErrSizeLimitExceeded)
	}

	headerBytes, ok, err := p.readExact(int(size))
	if err != nil {
		return nil, false, err
	}

	if !ok {
		return nil, false, fmt.Errorf("truncated BlobHeader: %w", errs.ErrTruncated)
	}

	header := pb.BlobHeader{}
	if err := header.Unmarshal(headerBytes); err != nil {
		return nil, false, err
	}

	if header.Datasize == 0 {
		return nil, false, errs.ErrMissingBlobSize
	}

	if header.Type != expected {
		return nil, false, fmt.Errorf("expected %s blob, got %q: %w", expected, header.Type, errs.ErrFormatMagic)
	}

	if int(header.Datasize) > p.cfg.MaxUncompressedBlobSize {
		return nil, false, fmt.Errorf("invalid blob size %d: %w", header.Datasize, errs.ErrSizeLimitExceeded)
	}

	blobBytes, ok, err := p.readExact(int(header.Datasize))
	if err != nil {
		return nil, false, err
	}

	if !ok {
		return nil, false, fmt.Errorf("truncated blob: %w", errs.ErrTruncated)
	}

	// The window is reused for the next frame; decode jobs outlive it.
	raw = append([]byte(nil), blobBytes...)

	return raw, false, nil
}

// readExact returns the next need bytes of the stream, pulling chunks off
// the input queue as required. It reports false once the input is
// exhausted before need bytes could be gathered.
func (p *Parser) readExact(need int) ([]byte, bool, error) {
	for len(p.window)-p.pos < need {
		if p.inputDone {
			return nil, false, nil
		}

		if p.pos > 0 {
			p.window = append(p.window[:0], p.window[p.pos:]...)
			p.pos = 0
		}

		select {
		case <-p.ctx.Done():
			return nil, false, errs.ErrCancelled
		case chunk, ok := <-p.cfg.Input:
			if !ok {
				p.inputDone = true

				continue
			}

			if chunk.Error != nil {
				return nil, false, chunk.Error
			}

			p.window = append(p.window, chunk.Value...)
		}
	}

	data := p.window[p.pos : p.pos+need]
	p.pos += need

	return data, true, nil
}
