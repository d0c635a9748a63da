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

// Package o5m implements a streaming parser for the o5m/o5c file formats
// according to the description at https://wiki.openstreetmap.org/wiki/O5m.
package o5m

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/destel/rill"

	"m4o.io/osmio/future"
	"m4o.io/osmio/internal/errs"
	"m4o.io/osmio/internal/varint"
	"m4o.io/osmio/model"
	"m4o.io/osmio/osmbuf"
)

// Dataset type codes.
const (
	dsNode        = 0x10
	dsWay         = 0x11
	dsRelation    = 0x12
	dsBoundingBox = 0xdb
	dsTimestamp   = 0xdc
	dsHeader      = 0xe0
	dsSync        = 0xee
	dsJump        = 0xef
	dsReset       = 0xff
)

const isoTimestamp = "2006-01-02T15:04:05Z"

var prologueMagic = []byte{0xff, 0xe0, 0x04, 'o', '5'}

// Config carries the queue endpoints and read options of one parser
// instance.
type Config struct {
	Input        <-chan rill.Try[[]byte]
	Output       chan<- rill.Try[*osmbuf.Buffer]
	Header       *future.Promise[model.Header]
	ReadTypes    model.EntityMask
	ReadMetadata bool
	BufferSize   int
}

// Parser decodes one o5m/o5c stream. Create with NewParser; Run blocks
// until the stream ends or fails.
type Parser struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	header     model.Header
	headerDone bool

	buf *osmbuf.Buffer

	window    []byte
	pos       int
	inputDone bool

	refs ReferenceTable

	deltaID        DeltaDecoder[int64]
	deltaTimestamp DeltaDecoder[int64]
	deltaChangeset DeltaDecoder[int64]
	deltaLon       DeltaDecoder[int64]
	deltaLat       DeltaDecoder[int64]
	deltaWayNodeID DeltaDecoder[int64]
	deltaMemberIDs [3]DeltaDecoder[int64]
}

// NewParser creates a parser bound to the given queues.
func NewParser(ctx context.Context, cfg Config) *Parser {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Parser{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		buf:    osmbuf.New(cfg.BufferSize),
	}
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
		slog.Error("unable to parse o5m stream", "error", err)

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
	if err := p.decodeHeader(); err != nil {
		return err
	}

	return p.decodeData()
}

// ensureBytes makes at least need bytes available in the window, pulling
// chunks off the input queue as required. It reports false once the input
// is exhausted before need bytes could be gathered.
func (p *Parser) ensureBytes(need int) (bool, error) {
	for len(p.window)-p.pos < need {
		if p.inputDone {
			return false, nil
		}

		if p.pos > 0 {
			p.window = append(p.window[:0], p.window[p.pos:]...)
			p.pos = 0
		}

		select {
		case <-p.ctx.Done():
			return false, errs.ErrCancelled
		case chunk, ok := <-p.cfg.Input:
			if !ok {
				p.inputDone = true

				continue
			}

			if chunk.Error != nil {
				return false, chunk.Error
			}

			p.window = append(p.window, chunk.Value...)
		}
	}

	return true, nil
}

func (p *Parser) decodeHeader() error {
	ok, err := p.ensureBytes(7) // overall length of the prologue
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("file too short (incomplete header info): %w", errs.ErrTruncated)
	}

	if !bytes.Equal(p.window[p.pos:p.pos+len(prologueMagic)], prologueMagic) {
		return fmt.Errorf("wrong header magic: %w", errs.ErrFormatMagic)
	}

	p.pos += len(prologueMagic)

	switch p.window[p.pos] {
	case 'm': // o5m data file
		p.header.HasMultipleVersions = false
	case 'c': // o5c change file
		p.header.HasMultipleVersions = true
	default:
		return fmt.Errorf("wrong header magic: %w", errs.ErrFormatMagic)
	}

	p.pos++

	if p.window[p.pos] != '2' {
		return fmt.Errorf("wrong header magic: %w", errs.ErrFormatMagic)
	}

	p.pos++

	return nil
}

func (p *Parser) decodeData() error {
	for {
		select {
		case <-p.ctx.Done():
			return errs.ErrCancelled
		default:
		}

		ok, err := p.ensureBytes(1)
		if err != nil {
			return err
		}

		if !ok {
			break
		}

		dsType := p.window[p.pos]
		p.pos++

		if dsType > dsJump {
			if dsType == dsReset {
				p.reset()
			}

			continue
		}

		if _, err := p.ensureBytes(varint.MaxLen); err != nil {
			return err
		}

		length64, next, err := varint.Uvarint(p.window, p.pos)
		if err != nil {
			return fmt.Errorf("premature end of file: %w", errs.ErrTruncated)
		}

		p.pos = next
		length := int(length64)

		ok, err = p.ensureBytes(length)
		if err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("premature end of file: %w", errs.ErrTruncated)
		}

		payload := p.window[p.pos : p.pos+length]

		if err := p.decodeDataset(dsType, payload); err != nil {
			return err
		}

		p.pos += length

		if p.cfg.ReadTypes == model.MaskNothing && p.headerDone {
			break
		}

		if p.buf.NeedsFlush() {
			if err := p.flush(); err != nil {
				return err
			}
		}
	}

	if p.buf.Len() > 0 {
		if err := p.flush(); err != nil {
			return err
		}
	}

	p.markHeaderDone()

	return nil
}

func (p *Parser) decodeDataset(dsType byte, payload []byte) error {
	switch dsType {
	case dsNode:
		p.markHeaderDone()

		if p.cfg.ReadTypes.Has(model.NODE) {
			node, err := p.decodeNode(payload)
			if err != nil {
				return err
			}

			p.buf.Append(node)
		}
	case dsWay:
		p.markHeaderDone()

		if p.cfg.ReadTypes.Has(model.WAY) {
			way, err := p.decodeWay(payload)
			if err != nil {
				return err
			}

			p.buf.Append(way)
		}
	case dsRelation:
		p.markHeaderDone()

		if p.cfg.ReadTypes.Has(model.RELATION) {
			relation, err := p.decodeRelation(payload)
			if err != nil {
				return err
			}

			p.buf.Append(relation)
		}
	case dsBoundingBox:
		return p.decodeBBox(payload)
	case dsTimestamp:
		return p.decodeTimestamp(payload)
	default:
		// ignore unknown datasets
	}

	return nil
}

// reset clears the delta decoders and the reference table, as demanded by
// a reset dataset.
func (p *Parser) reset() {
	p.refs.Clear()

	p.deltaID.Clear()
	p.deltaTimestamp.Clear()
	p.deltaChangeset.Clear()
	p.deltaLon.Clear()
	p.deltaLat.Clear()

	p.deltaWayNodeID.Clear()
	p.deltaMemberIDs[0].Clear()
	p.deltaMemberIDs[1].Clear()
	p.deltaMemberIDs[2].Clear()
}

func (p *Parser) decodeBBox(payload []byte) error {
	pos := 0

	var coords [4]int64

	for i := range coords {
		var err error

		coords[i], pos, err = varint.Svarint(payload, pos)
		if err != nil {
			return fmt.Errorf("bounding box dataset: %w", err)
		}
	}

	p.header.AddBox(model.Box{
		SW: model.Location{Lon: int32(coords[0]), Lat: int32(coords[1])},
		NE: model.Location{Lon: int32(coords[2]), Lat: int32(coords[3])},
	})

	return nil
}

func (p *Parser) decodeTimestamp(payload []byte) error {
	seconds, _, err := varint.Svarint(payload, 0)
	if err != nil {
		return fmt.Errorf("timestamp dataset: %w", err)
	}

	timestamp := time.Unix(seconds, 0).UTC().Format(isoTimestamp)

	p.header.Set("o5m_timestamp", timestamp)
	p.header.Set("timestamp", timestamp)

	return nil
}

func (p *Parser) markHeaderDone() {
	if p.headerDone {
		return
	}

	p.headerDone = true
	p.cfg.Header.Fulfill(p.header)
}

func (p *Parser) flush() error {
	buf := p.buf
	p.buf = osmbuf.New(p.cfg.BufferSize)

	select {
	case p.cfg.Output <- rill.Try[*osmbuf.Buffer]{Value: buf}:
		return nil
	case <-p.ctx.Done():
		return errs.ErrCancelled
	}
}
