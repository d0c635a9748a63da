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

package pbf_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/destel/rill"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"m4o.io/osmio/future"
	"m4o.io/osmio/internal/errs"
	"m4o.io/osmio/internal/pbf"
	"m4o.io/osmio/model"
	"m4o.io/osmio/osmbuf"
)

// Stream construction helpers, building protobuf messages with protowire
// and wrapping them in the outer BlobHeader/Blob framing.

func bytesField(dst []byte, num protowire.Number, v []byte) []byte {
	dst = protowire.AppendTag(dst, num, protowire.BytesType)

	return protowire.AppendBytes(dst, v)
}

func varintField(dst []byte, num protowire.Number, v uint64) []byte {
	dst = protowire.AppendTag(dst, num, protowire.VarintType)

	return protowire.AppendVarint(dst, v)
}

func packedSint64(dst []byte, num protowire.Number, vals []int64) []byte {
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(v))
	}

	return bytesField(dst, num, packed)
}

func packedInt32(dst []byte, num protowire.Number, vals []int32) []byte {
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, uint64(uint32(v)))
	}

	return bytesField(dst, num, packed)
}

func frame(blobType string, blobMsg []byte) []byte {
	var header []byte
	header = bytesField(header, 1, []byte(blobType))
	header = varintField(header, 3, uint64(len(blobMsg)))

	out := binary.BigEndian.AppendUint32(nil, uint32(len(header)))
	out = append(out, header...)

	return append(out, blobMsg...)
}

func rawBlob(payload []byte) []byte {
	return bytesField(nil, 1, payload)
}

func zlibBlob(t *testing.T, payload []byte) []byte {
	t.Helper()

	var compressed bytes.Buffer

	w := zlib.NewWriter(&compressed)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	blob := varintField(nil, 2, uint64(len(payload)))

	return bytesField(blob, 3, compressed.Bytes())
}

func zstdBlob(t *testing.T, payload []byte) []byte {
	t.Helper()

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)

	compressed := enc.EncodeAll(payload, nil)
	require.NoError(t, enc.Close())

	blob := varintField(nil, 2, uint64(len(payload)))

	return bytesField(blob, 7, compressed)
}

func headerBlock(required ...string) []byte {
	var block []byte
	for _, feature := range required {
		block = bytesField(block, 4, []byte(feature))
	}

	return block
}

func headerFrame(required ...string) []byte {
	return frame("OSMHeader", rawBlob(headerBlock(required...)))
}

// stringTable builds a StringTable message; index zero is always the
// empty string.
func stringTable(strings ...string) []byte {
	table := bytesField(nil, 1, nil)
	for _, s := range strings {
		table = bytesField(table, 1, []byte(s))
	}

	return table
}

// denseBlock builds a PrimitiveBlock holding one dense group of count
// nodes with consecutive ids starting at startID.
func denseBlock(startID int64, count int) []byte {
	deltas := make([]int64, count)
	zeros := make([]int64, count)

	deltas[0] = startID
	for i := 1; i < count; i++ {
		deltas[i] = 1
	}

	var dense []byte
	dense = packedSint64(dense, 1, deltas)
	dense = packedSint64(dense, 8, zeros)
	dense = packedSint64(dense, 9, zeros)

	var block []byte
	block = bytesField(block, 1, stringTable())
	block = bytesField(block, 2, bytesField(nil, 2, dense))

	return block
}

// run feeds one stream through a parser and collects everything it emits.
func run(t *testing.T, stream []byte, mutate ...func(*pbf.Config)) ([]model.Entity, model.Header, error) {
	t.Helper()

	input := make(chan rill.Try[[]byte], 2)
	output := make(chan rill.Try[*osmbuf.Buffer], 64)
	header := future.NewPromise[model.Header]()

	cfg := pbf.Config{
		Input:        input,
		Output:       output,
		Header:       header,
		ReadTypes:    model.MaskAll,
		ReadMetadata: true,
		PoolSize:     1,
	}

	for _, m := range mutate {
		m(&cfg)
	}

	input <- rill.Try[[]byte]{Value: stream}
	close(input)

	parser := pbf.NewParser(context.Background(), cfg)

	var entities []model.Entity

	done := make(chan struct{})

	go func() {
		defer close(done)

		for try := range output {
			if try.Error != nil {
				continue
			}

			entities = append(entities, try.Value.Entities()...)
		}
	}()

	runErr := parser.Run()

	<-done

	if runErr != nil {
		return entities, model.Header{}, runErr
	}

	hdr, err := header.Wait(context.Background())
	require.NoError(t, err)

	return entities, hdr, nil
}

func TestHeaderOnly(t *testing.T) {
	stream := headerFrame("OsmSchema-V0.6")

	entities, header, err := run(t, stream)
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Equal(t, []string{"OsmSchema-V0.6"}, header.RequiredFeatures)
	assert.False(t, header.HasMultipleVersions)
}

func TestEmptyInput(t *testing.T) {
	entities, header, err := run(t, nil)
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Equal(t, model.Header{}, header)
}

func TestHeaderFields(t *testing.T) {
	var bbox []byte
	bbox = varintField(bbox, 1, protowire.EncodeZigZag(-5114820_00))
	bbox = varintField(bbox, 2, protowire.EncodeZigZag(3354370_00))
	bbox = varintField(bbox, 3, protowire.EncodeZigZag(516934400_00))
	bbox = varintField(bbox, 4, protowire.EncodeZigZag(512855400_00))

	block := bytesField(nil, 1, bbox)
	block = append(block, headerBlock("OsmSchema-V0.6", "HistoricalInformation")...)
	block = bytesField(block, 16, []byte("osmium/1.14.0"))
	block = bytesField(block, 17, []byte("test"))
	block = varintField(block, 32, 1_500_000_000)
	block = varintField(block, 33, 4221)

	stream := frame("OSMHeader", rawBlob(block))

	_, header, err := run(t, stream)
	require.NoError(t, err)

	assert.True(t, header.HasMultipleVersions, "HistoricalInformation sets the flag")
	assert.Equal(t, "osmium/1.14.0", header.WritingProgram)
	assert.Equal(t, "test", header.Source)
	assert.Equal(t, time.Unix(1_500_000_000, 0).UTC(), header.OsmosisReplicationTimestamp)
	assert.Equal(t, int64(4221), header.OsmosisReplicationSequenceNumber)

	require.Len(t, header.Boxes, 1)
	assert.Equal(t, int32(-5114820), header.Boxes[0].SW.Lon)
	assert.Equal(t, int32(512855400), header.Boxes[0].SW.Lat)
	assert.Equal(t, int32(3354370), header.Boxes[0].NE.Lon)
	assert.Equal(t, int32(516934400), header.Boxes[0].NE.Lat)
}

func TestUnsupportedFeature(t *testing.T) {
	stream := headerFrame("OsmSchema-V0.6", "MadeUpFeature")

	input := make(chan rill.Try[[]byte], 1)
	output := make(chan rill.Try[*osmbuf.Buffer], 4)
	header := future.NewPromise[model.Header]()

	input <- rill.Try[[]byte]{Value: stream}
	close(input)

	parser := pbf.NewParser(context.Background(), pbf.Config{
		Input:     input,
		Output:    output,
		Header:    header,
		ReadTypes: model.MaskAll,
		PoolSize:  1,
	})

	var buffers int

	errCh := make(chan error, 1)

	go func() {
		errCh <- parser.Run()
	}()

	for try := range output {
		if try.Error == nil {
			buffers++
		}
	}

	assert.ErrorIs(t, <-errCh, errs.ErrUnsupportedFeature)
	assert.Zero(t, buffers, "no entity buffers delivered")

	_, err := header.Wait(context.Background())
	assert.ErrorIs(t, err, errs.ErrUnsupportedFeature)
}

func TestWrongFirstBlobType(t *testing.T) {
	stream := frame("OSMData", rawBlob(denseBlock(1, 1)))

	_, _, err := run(t, stream)
	assert.ErrorIs(t, err, errs.ErrFormatMagic)
}

func TestDataBlobWithHeaderType(t *testing.T) {
	stream := append(headerFrame("OsmSchema-V0.6"), headerFrame("OsmSchema-V0.6")...)

	_, _, err := run(t, stream)
	assert.ErrorIs(t, err, errs.ErrFormatMagic)
}

func collectIDs(entities []model.Entity) []int64 {
	ids := make([]int64, len(entities))
	for i, e := range entities {
		ids[i] = int64(e.GetID())
	}

	return ids
}

func TestDenseNodesAcrossBlobs(t *testing.T) {
	stream := headerFrame("OsmSchema-V0.6", "DenseNodes")
	stream = append(stream, frame("OSMData", rawBlob(denseBlock(1, 1000)))...)
	stream = append(stream, frame("OSMData", rawBlob(denseBlock(1001, 1000)))...)

	for _, poolSize := range []int{1, 4} {
		entities, _, err := run(t, stream, func(cfg *pbf.Config) {
			cfg.PoolSize = poolSize
		})
		require.NoError(t, err)
		require.Len(t, entities, 2000)

		ids := collectIDs(entities)
		for i, id := range ids {
			require.Equal(t, int64(i+1), id, "ids in strictly ascending input order (pool size %d)", poolSize)
		}
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	stream := headerFrame("OsmSchema-V0.6", "DenseNodes")
	for i := 0; i < 8; i++ {
		stream = append(stream, frame("OSMData", rawBlob(denseBlock(int64(i*100+1), 100)))...)
	}

	serial, _, err := run(t, stream, func(cfg *pbf.Config) { cfg.PoolSize = 1 })
	require.NoError(t, err)

	pooled, _, err := run(t, stream, func(cfg *pbf.Config) { cfg.PoolSize = 4 })
	require.NoError(t, err)

	assert.Equal(t, collectIDs(serial), collectIDs(pooled))
}

func TestDenseNodesDecoded(t *testing.T) {
	var info []byte
	info = packedInt32(info, 1, []int32{1, 2})
	info = packedSint64(info, 2, []int64{1_500_000_000, 1})
	info = packedSint64(info, 3, []int64{77, 1})
	info = bytesField(info, 4, protowire.AppendVarint(protowire.AppendVarint(nil, protowire.EncodeZigZag(45)), protowire.EncodeZigZag(0)))
	info = bytesField(info, 5, protowire.AppendVarint(protowire.AppendVarint(nil, protowire.EncodeZigZag(3)), protowire.EncodeZigZag(0)))

	var dense []byte
	dense = packedSint64(dense, 1, []int64{1, 1})
	dense = bytesField(dense, 5, info)
	dense = packedSint64(dense, 8, []int64{514682630, 10})
	dense = packedSint64(dense, 9, []int64{136108997, -10})
	dense = packedInt32(dense, 10, []int32{1, 2, 0, 0})

	var block []byte
	block = bytesField(block, 1, stringTable("highway", "primary", "mapper"))
	block = bytesField(block, 2, bytesField(nil, 2, dense))

	stream := append(headerFrame("OsmSchema-V0.6", "DenseNodes"), frame("OSMData", rawBlob(block))...)

	entities, _, err := run(t, stream)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	first := entities[0].(model.Node)
	assert.Equal(t, model.ID(1), first.ID)
	assert.Equal(t, int32(514682630), first.Location.Lat)
	assert.Equal(t, int32(136108997), first.Location.Lon)
	assert.Equal(t, model.Tags{{Key: "highway", Value: "primary"}}, first.Tags)
	assert.Equal(t, int32(1), first.Info.Version)
	assert.Equal(t, time.Unix(1_500_000_000, 0).UTC(), first.Info.Timestamp)
	assert.Equal(t, int64(77), first.Info.Changeset)
	assert.Equal(t, model.UID(45), first.Info.UID)
	assert.Equal(t, "mapper", first.Info.User)
	assert.True(t, first.Info.Visible)

	second := entities[1].(model.Node)
	assert.Equal(t, model.ID(2), second.ID)
	assert.Equal(t, int32(514682640), second.Location.Lat, "coordinates are delta coded")
	assert.Equal(t, int32(136108987), second.Location.Lon)
	assert.Empty(t, second.Tags)
	assert.Equal(t, int32(2), second.Info.Version, "versions are absolute")
	assert.Equal(t, time.Unix(1_500_000_001, 0).UTC(), second.Info.Timestamp, "timestamps are delta coded")
	assert.Equal(t, int64(78), second.Info.Changeset)
	assert.Equal(t, "mapper", second.Info.User)
}

func TestGranularityAndOffsets(t *testing.T) {
	var dense []byte
	dense = packedSint64(dense, 1, []int64{1})
	dense = packedSint64(dense, 8, []int64{100})
	dense = packedSint64(dense, 9, []int64{200})

	var block []byte
	block = bytesField(block, 1, stringTable())
	block = bytesField(block, 2, bytesField(nil, 2, dense))
	block = varintField(block, 17, 10000)
	block = varintField(block, 19, 5000)
	block = varintField(block, 20, 6000)

	stream := append(headerFrame("OsmSchema-V0.6", "DenseNodes"), frame("OSMData", rawBlob(block))...)

	entities, _, err := run(t, stream)
	require.NoError(t, err)
	require.Len(t, entities, 1)

	node := entities[0].(model.Node)
	assert.Equal(t, int32((5000+10000*100)/100), node.Location.Lat)
	assert.Equal(t, int32((6000+10000*200)/100), node.Location.Lon)
}

func TestWaysAndRelations(t *testing.T) {
	var way []byte
	way = varintField(way, 1, 2001)
	way = packedInt32(way, 2, []int32{1})
	way = packedInt32(way, 3, []int32{2})
	way = packedSint64(way, 8, []int64{1000, 5, -2})

	var relation []byte
	relation = varintField(relation, 1, 3001)
	relation = packedInt32(relation, 8, []int32{3})
	relation = packedSint64(relation, 9, []int64{500})
	relation = packedInt32(relation, 10, []int32{1})

	var block []byte
	block = bytesField(block, 1, stringTable("highway", "residential", "outer"))
	block = bytesField(block, 2, bytesField(nil, 3, way))
	block = bytesField(block, 2, bytesField(nil, 4, relation))

	stream := append(headerFrame("OsmSchema-V0.6"), frame("OSMData", rawBlob(block))...)

	entities, _, err := run(t, stream)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	w := entities[0].(model.Way)
	assert.Equal(t, model.ID(2001), w.ID)
	assert.Equal(t, []model.ID{1000, 1005, 1003}, w.NodeIDs, "refs are delta coded")
	assert.Equal(t, model.Tags{{Key: "highway", Value: "residential"}}, w.Tags)

	r := entities[1].(model.Relation)
	assert.Equal(t, model.ID(3001), r.ID)
	assert.Equal(t, []model.Member{{ID: 500, Type: model.WAY, Role: "outer"}}, r.Members)
}

func TestReadTypesSkipsGroups(t *testing.T) {
	var way []byte
	way = varintField(way, 1, 2001)
	way = packedSint64(way, 8, []int64{1000})

	var dense []byte
	dense = packedSint64(dense, 1, []int64{1, 1})
	dense = packedSint64(dense, 8, []int64{0, 0})
	dense = packedSint64(dense, 9, []int64{0, 0})

	var block []byte
	block = bytesField(block, 1, stringTable())
	block = bytesField(block, 2, bytesField(nil, 2, dense))
	block = bytesField(block, 2, bytesField(nil, 3, way))

	stream := append(headerFrame("OsmSchema-V0.6", "DenseNodes"), frame("OSMData", rawBlob(block))...)

	entities, _, err := run(t, stream, func(cfg *pbf.Config) {
		cfg.ReadTypes = model.MaskWay
	})
	require.NoError(t, err)
	require.Len(t, entities, 1)

	_, ok := entities[0].(model.Way)
	assert.True(t, ok)
}

func TestReadTypesNothingParsesHeaderOnly(t *testing.T) {
	stream := headerFrame("OsmSchema-V0.6")
	// Garbage after the header blob; with an empty mask it is never read.
	stream = append(stream, 0xde, 0xad)

	entities, header, err := run(t, stream, func(cfg *pbf.Config) {
		cfg.ReadTypes = model.MaskNothing
	})
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Equal(t, []string{"OsmSchema-V0.6"}, header.RequiredFeatures)
}

func TestMetadataSkipped(t *testing.T) {
	var info []byte
	info = packedInt32(info, 1, []int32{7})
	info = packedSint64(info, 2, []int64{1_500_000_000})
	info = packedSint64(info, 3, []int64{77})

	var dense []byte
	dense = packedSint64(dense, 1, []int64{1})
	dense = bytesField(dense, 5, info)
	dense = packedSint64(dense, 8, []int64{0})
	dense = packedSint64(dense, 9, []int64{0})

	var block []byte
	block = bytesField(block, 1, stringTable())
	block = bytesField(block, 2, bytesField(nil, 2, dense))

	stream := append(headerFrame("OsmSchema-V0.6", "DenseNodes"), frame("OSMData", rawBlob(block))...)

	entities, _, err := run(t, stream, func(cfg *pbf.Config) {
		cfg.ReadMetadata = false
	})
	require.NoError(t, err)
	require.Len(t, entities, 1)

	node := entities[0].(model.Node)
	assert.Zero(t, node.Info.Version)
	assert.True(t, node.Info.Timestamp.IsZero())
	assert.Zero(t, node.Info.Changeset)
	assert.True(t, node.Info.Visible)
}

func TestChangesetGroupIgnored(t *testing.T) {
	var block []byte
	block = bytesField(block, 1, stringTable())
	block = bytesField(block, 2, bytesField(nil, 5, varintField(nil, 1, 123)))

	stream := append(headerFrame("OsmSchema-V0.6"), frame("OSMData", rawBlob(block))...)

	entities, _, err := run(t, stream)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestZlibBlob(t *testing.T) {
	stream := append(headerFrame("OsmSchema-V0.6", "DenseNodes"),
		frame("OSMData", zlibBlob(t, denseBlock(1, 50)))...)

	entities, _, err := run(t, stream)
	require.NoError(t, err)
	assert.Len(t, entities, 50)
}

func TestZstdBlob(t *testing.T) {
	stream := append(headerFrame("OsmSchema-V0.6", "DenseNodes"),
		frame("OSMData", zstdBlob(t, denseBlock(1, 50)))...)

	entities, _, err := run(t, stream)
	require.NoError(t, err)
	assert.Len(t, entities, 50)
}

func TestUnsupportedCompression(t *testing.T) {
	blob := varintField(nil, 2, 10)
	blob = bytesField(blob, 5, []byte("bzip2 data")) // obsolete bzip2 member

	stream := append(headerFrame("OsmSchema-V0.6"), frame("OSMData", blob)...)

	_, _, err := run(t, stream)
	assert.ErrorIs(t, err, errs.ErrUnsupportedCompression)
}

func TestUncompressedSizeMismatch(t *testing.T) {
	payload := denseBlock(1, 50)

	var compressed bytes.Buffer

	w := zlib.NewWriter(&compressed)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	blob := varintField(nil, 2, uint64(len(payload)+1)) // wrong raw_size
	blob = bytesField(blob, 3, compressed.Bytes())

	stream := append(headerFrame("OsmSchema-V0.6"), frame("OSMData", blob)...)

	_, _, err = run(t, stream)
	assert.ErrorIs(t, err, errs.ErrSizeMismatch)
}

func TestBlobHeaderSizeLimit(t *testing.T) {
	stream := headerFrame("OsmSchema-V0.6")

	_, _, err := run(t, stream, func(cfg *pbf.Config) {
		cfg.MaxBlobHeaderSize = 4
	})
	assert.ErrorIs(t, err, errs.ErrSizeLimitExceeded)
}

func TestBlobSizeLimit(t *testing.T) {
	stream := append(headerFrame("OsmSchema-V0.6"),
		frame("OSMData", rawBlob(denseBlock(1, 1000)))...)

	_, _, err := run(t, stream, func(cfg *pbf.Config) {
		cfg.MaxUncompressedBlobSize = 64
	})
	assert.ErrorIs(t, err, errs.ErrSizeLimitExceeded)
}

func TestMissingBlobSize(t *testing.T) {
	header := bytesField(nil, 1, []byte("OSMHeader")) // no datasize field

	stream := binary.BigEndian.AppendUint32(nil, uint32(len(header)))
	stream = append(stream, header...)

	_, _, err := run(t, stream)
	assert.ErrorIs(t, err, errs.ErrMissingBlobSize)
}

func TestTruncatedBlob(t *testing.T) {
	full := headerFrame("OsmSchema-V0.6")
	stream := full[:len(full)-1]

	_, _, err := run(t, stream)
	assert.ErrorIs(t, err, errs.ErrTruncated)
}

func TestCancelWhilePooled(t *testing.T) {
	input := make(chan rill.Try[[]byte]) // never fed after the header
	output := make(chan rill.Try[*osmbuf.Buffer], 4)
	header := future.NewPromise[model.Header]()

	parser := pbf.NewParser(context.Background(), pbf.Config{
		Input:     input,
		Output:    output,
		Header:    header,
		ReadTypes: model.MaskAll,
		PoolSize:  4,
	})

	errCh := make(chan error, 1)

	go func() {
		errCh <- parser.Run()
	}()

	input <- rill.Try[[]byte]{Value: headerFrame("OsmSchema-V0.6")}

	_, err := header.Wait(context.Background())
	require.NoError(t, err, "header published before cancellation")

	parser.Cancel()

	assert.ErrorIs(t, <-errCh, errs.ErrCancelled)

	for range output { //nolint:revive // drain
	}
}
