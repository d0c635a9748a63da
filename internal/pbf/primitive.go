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

package pbf

import (
	"fmt"
	"time"

	"m4o.io/osmio/internal/errs"
	"m4o.io/osmio/internal/pbf/pb"
	"m4o.io/osmio/model"
	"m4o.io/osmio/osmbuf"
)

// parsePrimitiveBlock decodes one OSMData payload into a buffer of
// entities. Groups whose entity type is excluded by the mask are skipped
// without being decoded.
func parsePrimitiveBlock(payload []byte, mask model.EntityMask, readMetadata bool) (*osmbuf.Buffer, error) {
	block := pb.PrimitiveBlock{}
	if err := block.Unmarshal(payload); err != nil {
		return nil, err
	}

	c := blockContext{
		strings:         block.Strings,
		granularity:     int64(block.Granularity),
		latOffset:       block.LatOffset,
		lonOffset:       block.LonOffset,
		dateGranularity: int64(block.DateGranularity),
		readMetadata:    readMetadata,
	}

	buf := osmbuf.New(0)

	for _, raw := range block.Groups {
		kind, err := pb.Kind(raw)
		if err != nil {
			return nil, err
		}

		if !wantGroup(kind, mask) {
			continue
		}

		group := pb.PrimitiveGroup{}
		if err := group.Unmarshal(raw); err != nil {
			return nil, err
		}

		if err := c.appendNodes(buf, group.Nodes); err != nil {
			return nil, err
		}

		if group.Dense != nil {
			if err := c.appendDenseNodes(buf, group.Dense); err != nil {
				return nil, err
			}
		}

		if err := c.appendWays(buf, group.Ways); err != nil {
			return nil, err
		}

		if err := c.appendRelations(buf, group.Relations); err != nil {
			return nil, err
		}
	}

	return buf, nil
}

// wantGroup reports whether a group kind survives the read-type mask.
// Changeset groups are known but ignored.
func wantGroup(kind pb.GroupKind, mask model.EntityMask) bool {
	switch kind {
	case pb.GroupNodes, pb.GroupDense:
		return mask.Has(model.NODE)
	case pb.GroupWays:
		return mask.Has(model.WAY)
	case pb.GroupRelations:
		return mask.Has(model.RELATION)
	default:
		return false
	}
}

type blockContext struct {
	strings         []string
	granularity     int64
	latOffset       int64
	lonOffset       int64
	dateGranularity int64
	readMetadata    bool
}

// str resolves a string-table index, with index zero reserved for the
// empty string.
func (c *blockContext) str(index int) (string, error) {
	if index < 0 || index >= len(c.strings) {
		return "", fmt.Errorf("string table index %d out of range: %w", index, pb.ErrMalformed)
	}

	return c.strings[index], nil
}

// location converts raw block coordinates into fixed-point form.
func (c *blockContext) location(rawLon, rawLat int64) model.Location {
	return model.Location{
		Lon: int32((c.lonOffset + c.granularity*rawLon) / nanosPerCoordinate),
		Lat: int32((c.latOffset + c.granularity*rawLat) / nanosPerCoordinate),
	}
}

// timestamp converts a raw block timestamp into UTC time.
func (c *blockContext) timestamp(raw int64) time.Time {
	return time.UnixMilli(raw * c.dateGranularity).UTC()
}

func (c *blockContext) decodeTags(keys, vals []uint32) (model.Tags, error) {
	if len(keys) != len(vals) {
		return nil, fmt.Errorf("keys/vals length mismatch: %w", pb.ErrMalformed)
	}

	if len(keys) == 0 {
		return nil, nil
	}

	tags := make(model.Tags, 0, len(keys))

	for i, keyID := range keys {
		key, err := c.str(int(keyID))
		if err != nil {
			return nil, err
		}

		value, err := c.str(int(vals[i]))
		if err != nil {
			return nil, err
		}

		tags = append(tags, model.Tag{Key: key, Value: value})
	}

	return tags, nil
}

func (c *blockContext) decodeInfo(info *pb.Info) (*model.Info, error) {
	out := &model.Info{Visible: true}

	if info == nil || !c.readMetadata {
		return out, nil
	}

	out.Version = info.Version
	out.Changeset = info.Changeset
	out.UID = model.UID(info.UID)

	if info.Timestamp != 0 {
		out.Timestamp = c.timestamp(info.Timestamp)
	}

	user, err := c.str(int(info.UserSid))
	if err != nil {
		return nil, err
	}

	out.User = user

	if info.Visible != nil {
		out.Visible = *info.Visible
	}

	return out, nil
}

func (c *blockContext) appendNodes(buf *osmbuf.Buffer, nodes []pb.Node) error {
	for i := range nodes {
		node := &nodes[i]

		tags, err := c.decodeTags(node.Keys, node.Vals)
		if err != nil {
			return err
		}

		info, err := c.decodeInfo(node.Info)
		if err != nil {
			return err
		}

		buf.Append(model.Node{
			ID:       model.ID(node.ID),
			Tags:     tags,
			Info:     info,
			Location: c.location(node.Lon, node.Lat),
		})
	}

	return nil
}

func (c *blockContext) appendDenseNodes(buf *osmbuf.Buffer, dense *pb.DenseNodes) error {
	ids := dense.IDs
	if len(dense.Lats) != len(ids) || len(dense.Lons) != len(ids) {
		return fmt.Errorf("dense node column length mismatch: %w", pb.ErrMalformed)
	}

	dic, err := c.newDenseInfoContext(dense.Info, len(ids))
	if err != nil {
		return err
	}

	kvs := dense.KeysVals
	ki := 0

	var id, lat, lon int64

	for i := range ids {
		id += ids[i]
		lat += dense.Lats[i]
		lon += dense.Lons[i]

		var tags model.Tags

		if len(kvs) > 0 {
			for {
				if ki >= len(kvs) {
					return fmt.Errorf("dense node tags missing terminator: %w", pb.ErrMalformed)
				}

				if kvs[ki] == 0 {
					ki++

					break
				}

				if ki+1 >= len(kvs) {
					return fmt.Errorf("dense node tag value missing: %w", pb.ErrMalformed)
				}

				key, err := c.str(int(kvs[ki]))
				if err != nil {
					return err
				}

				value, err := c.str(int(kvs[ki+1]))
				if err != nil {
					return err
				}

				tags = append(tags, model.Tag{Key: key, Value: value})
				ki += 2
			}
		}

		info, err := dic.decodeInfo(i)
		if err != nil {
			return err
		}

		buf.Append(model.Node{
			ID:       model.ID(id),
			Tags:     tags,
			Info:     info,
			Location: c.location(lon, lat),
		})
	}

	if len(kvs) > 0 && ki != len(kvs) {
		return fmt.Errorf("dense node tags have more terminators than nodes: %w", pb.ErrMalformed)
	}

	return nil
}

func (c *blockContext) appendWays(buf *osmbuf.Buffer, ways []pb.Way) error {
	for i := range ways {
		way := &ways[i]

		tags, err := c.decodeTags(way.Keys, way.Vals)
		if err != nil {
			return err
		}

		info, err := c.decodeInfo(way.Info)
		if err != nil {
			return err
		}

		var nodeIDs []model.ID

		if len(way.Refs) > 0 {
			nodeIDs = make([]model.ID, len(way.Refs))

			var ref int64

			for j, delta := range way.Refs {
				ref += delta
				nodeIDs[j] = model.ID(ref)
			}
		}

		buf.Append(model.Way{
			ID:      model.ID(way.ID),
			Tags:    tags,
			Info:    info,
			NodeIDs: nodeIDs,
		})
	}

	return nil
}

func (c *blockContext) appendRelations(buf *osmbuf.Buffer, relations []pb.Relation) error {
	for i := range relations {
		relation := &relations[i]

		tags, err := c.decodeTags(relation.Keys, relation.Vals)
		if err != nil {
			return err
		}

		info, err := c.decodeInfo(relation.Info)
		if err != nil {
			return err
		}

		if len(relation.RolesSid) != len(relation.MemIDs) || len(relation.Types) != len(relation.MemIDs) {
			return fmt.Errorf("relation member column length mismatch: %w", pb.ErrMalformed)
		}

		var members []model.Member

		if len(relation.MemIDs) > 0 {
			members = make([]model.Member, len(relation.MemIDs))

			var memID int64

			for j := range relation.MemIDs {
				memID += relation.MemIDs[j]

				memberType := relation.Types[j]
				if memberType < 0 || memberType > 2 {
					return fmt.Errorf("member type %d: %w", memberType, errs.ErrUnknownMemberType)
				}

				role, err := c.str(int(relation.RolesSid[j]))
				if err != nil {
					return err
				}

				members[j] = model.Member{
					ID:   model.ID(memID),
					Type: model.EntityType(memberType),
					Role: role,
				}
			}
		}

		buf.Append(model.Relation{
			ID:      model.ID(relation.ID),
			Tags:    tags,
			Info:    info,
			Members: members,
		})
	}

	return nil
}

// denseInfoContext walks the columnar metadata of a dense node group.
// Versions are absolute; the remaining columns are delta coded and
// group-local.
type denseInfoContext struct {
	block *blockContext
	info  *pb.DenseInfo

	timestamp int64
	changeset int64
	uid       int32
	userSid   int32
}

func (c *blockContext) newDenseInfoContext(info *pb.DenseInfo, n int) (*denseInfoContext, error) {
	dic := &denseInfoContext{block: c, info: info}

	if info == nil || !c.readMetadata {
		dic.info = nil

		return dic, nil
	}

	columns := []int{
		len(info.Versions),
		len(info.Timestamps),
		len(info.Changesets),
		len(info.UIDs),
		len(info.UserSids),
	}

	for _, l := range columns {
		if l != 0 && l != n {
			return nil, fmt.Errorf("dense info column length mismatch: %w", pb.ErrMalformed)
		}
	}

	if len(info.Visibles) != 0 && len(info.Visibles) != n {
		return nil, fmt.Errorf("dense info column length mismatch: %w", pb.ErrMalformed)
	}

	return dic, nil
}

func (dic *denseInfoContext) decodeInfo(i int) (*model.Info, error) {
	out := &model.Info{Visible: true}

	info := dic.info
	if info == nil {
		return out, nil
	}

	if len(info.Versions) > 0 {
		out.Version = info.Versions[i]
	}

	if len(info.Timestamps) > 0 {
		dic.timestamp += info.Timestamps[i]
		out.Timestamp = dic.block.timestamp(dic.timestamp)
	}

	if len(info.Changesets) > 0 {
		dic.changeset += info.Changesets[i]
		out.Changeset = dic.changeset
	}

	if len(info.UIDs) > 0 {
		dic.uid += info.UIDs[i]
		out.UID = model.UID(dic.uid)
	}

	if len(info.UserSids) > 0 {
		dic.userSid += info.UserSids[i]

		user, err := dic.block.str(int(dic.userSid))
		if err != nil {
			return nil, err
		}

		out.User = user
	}

	if len(info.Visibles) > 0 {
		out.Visible = info.Visibles[i]
	}

	return out, nil
}
