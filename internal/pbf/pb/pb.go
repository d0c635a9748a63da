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

// Package pb reads the messages of the public OSM PBF schema with
// protowire, skipping unknown fields the way generated code would. The
// readers stay close to the wire so primitive groups can be classified
// and skipped without decoding their contents.
package pb

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned when a protobuf message cannot be decoded.
var ErrMalformed = errors.New("malformed protobuf message")

// BlobHeader precedes every blob in the outer framing.
type BlobHeader struct {
	Type     string
	Datasize int32
}

// Unmarshal decodes a BlobHeader message.
func (m *BlobHeader) Unmarshal(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Type = string(v)

			return n, nil
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Datasize = int32(v)

			return n, nil
		default:
			return -1, nil
		}
	})
}

// BlobKind identifies which member of the Blob data oneof is present.
type BlobKind int

const (
	// KindMissing marks a blob without any payload member.
	KindMissing BlobKind = iota

	// KindRaw marks uncompressed payload.
	KindRaw

	// KindZlib marks zlib-compressed payload.
	KindZlib

	// KindLzma marks lzma-compressed payload.
	KindLzma

	// KindBzip2 marks the obsolete bzip2 compression, never supported.
	KindBzip2

	// KindLz4 marks lz4-compressed payload.
	KindLz4

	// KindZstd marks zstd-compressed payload.
	KindZstd
)

func (k BlobKind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindZlib:
		return "zlib"
	case KindLzma:
		return "lzma"
	case KindBzip2:
		return "bzip2"
	case KindLz4:
		return "lz4"
	case KindZstd:
		return "zstd"
	default:
		return "missing"
	}
}

// Blob is the outer frame payload, raw or compressed.
type Blob struct {
	RawSize int32
	Kind    BlobKind
	Data    []byte
}

// Unmarshal decodes a Blob message.
func (m *Blob) Unmarshal(data []byte) error {
	kinds := map[protowire.Number]BlobKind{
		1: KindRaw,
		3: KindZlib,
		4: KindLzma,
		5: KindBzip2,
		6: KindLz4,
		7: KindZstd,
	}

	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 2 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.RawSize = int32(v)

			return n, nil
		}

		if kind, ok := kinds[num]; ok && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Kind = kind
			m.Data = v

			return n, nil
		}

		return -1, nil
	})
}

// HeaderBBox is the bounding box of a HeaderBlock, in nanodegrees.
type HeaderBBox struct {
	Left   int64
	Right  int64
	Top    int64
	Bottom int64
}

// HeaderBlock is the payload of the OSMHeader blob.
type HeaderBlock struct {
	BBox                      *HeaderBBox
	RequiredFeatures          []string
	OptionalFeatures          []string
	WritingProgram            string
	Source                    string
	ReplicationTimestamp      int64
	ReplicationSequenceNumber int64
	ReplicationBaseURL        string
}

// Unmarshal decodes a HeaderBlock message.
func (m *HeaderBlock) Unmarshal(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			bbox := &HeaderBBox{}
			if err := bbox.unmarshal(v); err != nil {
				return n, err
			}

			m.BBox = bbox

			return n, nil
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.RequiredFeatures = append(m.RequiredFeatures, string(v))

			return n, nil
		case num == 5 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.OptionalFeatures = append(m.OptionalFeatures, string(v))

			return n, nil
		case num == 16 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.WritingProgram = string(v)

			return n, nil
		case num == 17 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Source = string(v)

			return n, nil
		case num == 32 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.ReplicationTimestamp = int64(v)

			return n, nil
		case num == 33 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.ReplicationSequenceNumber = int64(v)

			return n, nil
		case num == 34 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.ReplicationBaseURL = string(v)

			return n, nil
		default:
			return -1, nil
		}
	})
}

func (m *HeaderBBox) unmarshal(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if typ != protowire.VarintType || num < 1 || num > 4 {
			return -1, nil
		}

		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return n, ErrMalformed
		}

		val := protowire.DecodeZigZag(v)

		switch num {
		case 1:
			m.Left = val
		case 2:
			m.Right = val
		case 3:
			m.Top = val
		case 4:
			m.Bottom = val
		}

		return n, nil
	})
}

// PrimitiveBlock is the payload of an OSMData blob. Primitive groups are
// kept as raw message bytes so they can be classified and skipped without
// being decoded.
type PrimitiveBlock struct {
	Strings         []string
	Groups          [][]byte
	Granularity     int32
	DateGranularity int32
	LatOffset       int64
	LonOffset       int64
}

// Unmarshal decodes a PrimitiveBlock message, applying the schema defaults
// for granularity and date granularity.
func (m *PrimitiveBlock) Unmarshal(data []byte) error {
	m.Granularity = 100
	m.DateGranularity = 1000

	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			if err := m.unmarshalStringTable(v); err != nil {
				return n, err
			}

			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Groups = append(m.Groups, v)

			return n, nil
		case num == 17 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Granularity = int32(v)

			return n, nil
		case num == 18 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.DateGranularity = int32(v)

			return n, nil
		case num == 19 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.LatOffset = int64(v)

			return n, nil
		case num == 20 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.LonOffset = int64(v)

			return n, nil
		default:
			return -1, nil
		}
	})
}

// unmarshalStringTable decodes a StringTable message. Index zero is
// reserved for the empty string.
func (m *PrimitiveBlock) unmarshalStringTable(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return -1, nil
		}

		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return n, ErrMalformed
		}

		m.Strings = append(m.Strings, string(v))

		return n, nil
	})
}

// GroupKind identifies which entity collection populates a primitive
// group.
type GroupKind int

const (
	// GroupEmpty marks a group without entities.
	GroupEmpty GroupKind = iota

	// GroupNodes marks a group of sparse nodes.
	GroupNodes

	// GroupDense marks a group of dense nodes.
	GroupDense

	// GroupWays marks a group of ways.
	GroupWays

	// GroupRelations marks a group of relations.
	GroupRelations

	// GroupChangesets marks a group of changesets, which are ignored.
	GroupChangesets
)

// Kind classifies a raw PrimitiveGroup message without decoding its
// contents.
func Kind(data []byte) (GroupKind, error) {
	kind := GroupEmpty

	err := scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if typ == protowire.BytesType && num >= 1 && num <= 5 && kind == GroupEmpty {
			kind = GroupKind(num)
		}

		return -1, nil
	})

	return kind, err
}

// PrimitiveGroup is a tagged union of entity collections.
type PrimitiveGroup struct {
	Nodes     []Node
	Dense     *DenseNodes
	Ways      []Way
	Relations []Relation
}

// Unmarshal decodes a PrimitiveGroup message.
func (m *PrimitiveGroup) Unmarshal(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if typ != protowire.BytesType || num < 1 || num > 4 {
			return -1, nil
		}

		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return n, ErrMalformed
		}

		switch num {
		case 1:
			node := Node{}
			if err := node.unmarshal(v); err != nil {
				return n, err
			}

			m.Nodes = append(m.Nodes, node)
		case 2:
			dense := &DenseNodes{}
			if err := dense.unmarshal(v); err != nil {
				return n, err
			}

			m.Dense = dense
		case 3:
			way := Way{}
			if err := way.unmarshal(v); err != nil {
				return n, err
			}

			m.Ways = append(m.Ways, way)
		case 4:
			relation := Relation{}
			if err := relation.unmarshal(v); err != nil {
				return n, err
			}

			m.Relations = append(m.Relations, relation)
		}

		return n, nil
	})
}

// Info carries the optional metadata of a sparse node, way, or relation.
type Info struct {
	Version   int32
	Timestamp int64
	Changeset int64
	UID       int32
	UserSid   uint32
	Visible   *bool
}

func (m *Info) unmarshal(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if typ != protowire.VarintType {
			return -1, nil
		}

		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return n, ErrMalformed
		}

		switch num {
		case 1:
			m.Version = int32(v)
		case 2:
			m.Timestamp = int64(v)
		case 3:
			m.Changeset = int64(v)
		case 4:
			m.UID = int32(v)
		case 5:
			m.UserSid = uint32(v)
		case 6:
			visible := v != 0
			m.Visible = &visible
		default:
			return -1, nil
		}

		return n, nil
	})
}

// Node is a sparse node with absolute values.
type Node struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Info *Info
	Lat  int64
	Lon  int64
}

func (m *Node) unmarshal(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		var err error

		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.ID = protowire.DecodeZigZag(v)

			return n, nil
		case 2:
			var n int

			m.Keys, n, err = packed(m.Keys, data, typ, asUint32)

			return n, err
		case 3:
			var n int

			m.Vals, n, err = packed(m.Vals, data, typ, asUint32)

			return n, err
		case 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Info = &Info{}

			return n, m.Info.unmarshal(v)
		case 8:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Lat = protowire.DecodeZigZag(v)

			return n, nil
		case 9:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Lon = protowire.DecodeZigZag(v)

			return n, nil
		default:
			return -1, nil
		}
	})
}

// DenseInfo carries the columnar metadata of a dense node group. All
// columns except the versions are delta coded.
type DenseInfo struct {
	Versions   []int32
	Timestamps []int64
	Changesets []int64
	UIDs       []int32
	UserSids   []int32
	Visibles   []bool
}

func (m *DenseInfo) unmarshal(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		var (
			n   int
			err error
		)

		switch num {
		case 1:
			m.Versions, n, err = packed(m.Versions, data, typ, asInt32)
		case 2:
			m.Timestamps, n, err = packed(m.Timestamps, data, typ, asSint64)
		case 3:
			m.Changesets, n, err = packed(m.Changesets, data, typ, asSint64)
		case 4:
			m.UIDs, n, err = packed(m.UIDs, data, typ, asSint32)
		case 5:
			m.UserSids, n, err = packed(m.UserSids, data, typ, asSint32)
		case 6:
			m.Visibles, n, err = packed(m.Visibles, data, typ, asBool)
		default:
			return -1, nil
		}

		return n, err
	})
}

// DenseNodes is the columnar encoding of many nodes; ids and coordinates
// are delta coded, and keys_vals packs each node's tags with a zero
// terminator.
type DenseNodes struct {
	IDs      []int64
	Info     *DenseInfo
	Lats     []int64
	Lons     []int64
	KeysVals []int32
}

func (m *DenseNodes) unmarshal(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		var (
			n   int
			err error
		)

		switch num {
		case 1:
			m.IDs, n, err = packed(m.IDs, data, typ, asSint64)
		case 5:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Info = &DenseInfo{}

			return n, m.Info.unmarshal(v)
		case 8:
			m.Lats, n, err = packed(m.Lats, data, typ, asSint64)
		case 9:
			m.Lons, n, err = packed(m.Lons, data, typ, asSint64)
		case 10:
			m.KeysVals, n, err = packed(m.KeysVals, data, typ, asInt32)
		default:
			return -1, nil
		}

		return n, err
	})
}

// Way carries an absolute id and delta-coded node refs.
type Way struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Info *Info
	Refs []int64
}

func (m *Way) unmarshal(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		var (
			n   int
			err error
		)

		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.ID = int64(v)

			return n, nil
		case 2:
			m.Keys, n, err = packed(m.Keys, data, typ, asUint32)
		case 3:
			m.Vals, n, err = packed(m.Vals, data, typ, asUint32)
		case 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Info = &Info{}

			return n, m.Info.unmarshal(v)
		case 8:
			m.Refs, n, err = packed(m.Refs, data, typ, asSint64)
		default:
			return -1, nil
		}

		return n, err
	})
}

// Relation carries an absolute id, delta-coded member ids, and parallel
// role and type columns.
type Relation struct {
	ID       int64
	Keys     []uint32
	Vals     []uint32
	Info     *Info
	RolesSid []int32
	MemIDs   []int64
	Types    []int32
}

func (m *Relation) unmarshal(data []byte) error {
	return scan(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		var (
			n   int
			err error
		)

		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.ID = int64(v)

			return n, nil
		case 2:
			m.Keys, n, err = packed(m.Keys, data, typ, asUint32)
		case 3:
			m.Vals, n, err = packed(m.Vals, data, typ, asUint32)
		case 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, ErrMalformed
			}

			m.Info = &Info{}

			return n, m.Info.unmarshal(v)
		case 8:
			m.RolesSid, n, err = packed(m.RolesSid, data, typ, asInt32)
		case 9:
			m.MemIDs, n, err = packed(m.MemIDs, data, typ, asSint64)
		case 10:
			m.Types, n, err = packed(m.Types, data, typ, asInt32)
		default:
			return -1, nil
		}

		return n, err
	})
}
