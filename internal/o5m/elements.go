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

package o5m

import (
	"bytes"
	"fmt"
	"time"

	"m4o.io/osmio/internal/errs"
	"m4o.io/osmio/internal/varint"
	"m4o.io/osmio/model"
)

// decodeString resolves one string-table slot at pos. An inline slot
// (first byte zero) yields the payload from the literal's first byte; a
// reference slot yields the table entry. The returned position points at
// the literal for inline slots and past the index for references; inline
// reports which case applied so the caller can advance past the literal
// and add it to the table.
func (p *Parser) decodeString(payload []byte, pos int) (s []byte, next int, inline bool, err error) {
	if payload[pos] == 0x00 { // get inline string
		pos++
		if pos >= len(payload) {
			return nil, pos, false, fmt.Errorf("string format error: %w", errs.ErrTruncated)
		}

		return payload[pos:], pos, true, nil
	}

	// get from reference table
	index, next, err := varint.Uvarint(payload, pos)
	if err != nil {
		return nil, pos, false, err
	}

	slot, err := p.refs.Get(index)
	if err != nil {
		return nil, pos, false, err
	}

	return slot, next, false, nil
}

// cstr reads a NUL-terminated string from s starting at pos and returns it
// together with the position just past the terminator.
func cstr(s []byte, pos int) (string, int, error) {
	i := bytes.IndexByte(s[pos:], 0x00)
	if i < 0 {
		return "", pos, errs.ErrMissingNul
	}

	return string(s[pos : pos+i]), pos + i + 1, nil
}

// decodeUser reads the uid/user string pair of an info block.
func (p *Parser) decodeUser(payload []byte, pos int) (uid uint64, user string, next int, err error) {
	s, next, inline, err := p.decodeString(payload, pos)
	if err != nil {
		return 0, "", pos, err
	}

	uid, n, err := varint.Uvarint(s, 0)
	if err != nil {
		return 0, "", pos, err
	}

	if n >= len(s) {
		return 0, "", pos, fmt.Errorf("missing user name: %w", errs.ErrMissingNul)
	}

	if uid == 0 && inline {
		// The anonymous user is stored verbatim as two NUL bytes.
		p.refs.Add([]byte{0x00, 0x00})

		return 0, "", next + n + 1, nil
	}

	n++ // the NUL between uid and user name

	user, n, err = cstr(s, n)
	if err != nil {
		return 0, "", pos, fmt.Errorf("no null byte in user name: %w", err)
	}

	if inline {
		p.refs.Add(s[:n])
		next += n
	}

	return uid, user, next, nil
}

// decodeInfo reads the info block of an entity. The delta accumulators and
// the reference table are always kept current; the info fields themselves
// are only populated when metadata is being read.
func (p *Parser) decodeInfo(info *model.Info, payload []byte, pos int) (int, error) {
	if pos >= len(payload) {
		return pos, fmt.Errorf("dataset ends inside info block: %w", errs.ErrTruncated)
	}

	if payload[pos] == 0x00 { // no info section
		return pos + 1, nil
	}

	version, pos, err := varint.Uvarint(payload, pos)
	if err != nil {
		return pos, err
	}

	if p.cfg.ReadMetadata {
		info.Version = int32(version)
	}

	delta, pos, err := varint.Svarint(payload, pos)
	if err != nil {
		return pos, err
	}

	timestamp := p.deltaTimestamp.Update(delta)
	if timestamp == 0 { // no timestamp, rest of the info section is absent
		return pos, nil
	}

	if p.cfg.ReadMetadata {
		info.Timestamp = time.Unix(timestamp, 0).UTC()
	}

	delta, pos, err = varint.Svarint(payload, pos)
	if err != nil {
		return pos, err
	}

	changeset := p.deltaChangeset.Update(delta)
	if p.cfg.ReadMetadata {
		info.Changeset = changeset
	}

	if pos != len(payload) {
		uid, user, next, err := p.decodeUser(payload, pos)
		if err != nil {
			return pos, err
		}

		pos = next

		if p.cfg.ReadMetadata {
			info.UID = model.UID(uid)
			info.User = user
		}
	}

	return pos, nil
}

func (p *Parser) decodeTags(payload []byte, pos int) (model.Tags, error) {
	var tags model.Tags

	for pos < len(payload) {
		s, next, inline, err := p.decodeString(payload, pos)
		if err != nil {
			return nil, err
		}

		key, n, err := cstr(s, 0)
		if err != nil {
			return nil, fmt.Errorf("no null byte in tag key: %w", err)
		}

		value, n, err := cstr(s, n)
		if err != nil {
			return nil, fmt.Errorf("no null byte in tag value: %w", err)
		}

		if inline {
			p.refs.Add(s[:n])
			next += n
		}

		pos = next

		tags = append(tags, model.Tag{Key: key, Value: value})
	}

	return tags, nil
}

func (p *Parser) decodeNode(payload []byte) (model.Node, error) {
	delta, pos, err := varint.Svarint(payload, 0)
	if err != nil {
		return model.Node{}, err
	}

	info := &model.Info{Visible: true}
	node := model.Node{ID: model.ID(p.deltaID.Update(delta)), Info: info}

	pos, err = p.decodeInfo(info, payload, pos)
	if err != nil {
		return model.Node{}, err
	}

	if pos == len(payload) {
		// no location, the node is deleted
		info.Visible = false

		return node, nil
	}

	delta, pos, err = varint.Svarint(payload, pos)
	if err != nil {
		return model.Node{}, err
	}

	lon := p.deltaLon.Update(delta)

	delta, pos, err = varint.Svarint(payload, pos)
	if err != nil {
		return model.Node{}, err
	}

	lat := p.deltaLat.Update(delta)

	node.Location = model.Location{Lon: int32(lon), Lat: int32(lat)}

	if pos != len(payload) {
		node.Tags, err = p.decodeTags(payload, pos)
		if err != nil {
			return model.Node{}, err
		}
	}

	return node, nil
}

func (p *Parser) decodeWay(payload []byte) (model.Way, error) {
	delta, pos, err := varint.Svarint(payload, 0)
	if err != nil {
		return model.Way{}, err
	}

	info := &model.Info{Visible: true}
	way := model.Way{ID: model.ID(p.deltaID.Update(delta)), Info: info}

	pos, err = p.decodeInfo(info, payload, pos)
	if err != nil {
		return model.Way{}, err
	}

	if pos == len(payload) {
		// no reference section, the way is deleted
		info.Visible = false

		return way, nil
	}

	refsLen, pos, err := varint.Uvarint(payload, pos)
	if err != nil {
		return model.Way{}, err
	}

	if refsLen > 0 {
		end := pos + int(refsLen)
		if end > len(payload) {
			return model.Way{}, fmt.Errorf("way nodes ref section too long: %w", errs.ErrTruncated)
		}

		for pos < end {
			delta, pos, err = varint.Svarint(payload, pos)
			if err != nil {
				return model.Way{}, err
			}

			way.NodeIDs = append(way.NodeIDs, model.ID(p.deltaWayNodeID.Update(delta)))
		}
	}

	if pos != len(payload) {
		way.Tags, err = p.decodeTags(payload, pos)
		if err != nil {
			return model.Way{}, err
		}
	}

	return way, nil
}

// decodeRole reads the member type and role string of a relation member.
func (p *Parser) decodeRole(payload []byte, pos int) (model.EntityType, string, int, error) {
	s, next, inline, err := p.decodeString(payload, pos)
	if err != nil {
		return 0, "", pos, err
	}

	c := s[0]
	if c < '0' || c > '2' {
		return 0, "", pos, fmt.Errorf("member type %q: %w", c, errs.ErrUnknownMemberType)
	}

	role, n, err := cstr(s, 1)
	if err != nil {
		return 0, "", pos, fmt.Errorf("no null byte in role: %w", err)
	}

	if inline {
		p.refs.Add(s[:n])
		next += n
	}

	return model.EntityType(c - '0'), role, next, nil
}

func (p *Parser) decodeRelation(payload []byte) (model.Relation, error) {
	delta, pos, err := varint.Svarint(payload, 0)
	if err != nil {
		return model.Relation{}, err
	}

	info := &model.Info{Visible: true}
	relation := model.Relation{ID: model.ID(p.deltaID.Update(delta)), Info: info}

	pos, err = p.decodeInfo(info, payload, pos)
	if err != nil {
		return model.Relation{}, err
	}

	if pos == len(payload) {
		// no reference section, the relation is deleted
		info.Visible = false

		return relation, nil
	}

	memLen, pos, err := varint.Uvarint(payload, pos)
	if err != nil {
		return model.Relation{}, err
	}

	if memLen > 0 {
		end := pos + int(memLen)
		if end > len(payload) {
			return model.Relation{}, fmt.Errorf("relation member section too long: %w", errs.ErrTruncated)
		}

		for pos < end {
			delta, pos, err = varint.Svarint(payload, pos)
			if err != nil {
				return model.Relation{}, err
			}

			if pos >= len(payload) {
				return model.Relation{}, fmt.Errorf("relation member format error: %w", errs.ErrTruncated)
			}

			memberType, role, next, err := p.decodeRole(payload, pos)
			if err != nil {
				return model.Relation{}, err
			}

			pos = next

			ref := p.deltaMemberIDs[memberType].Update(delta)

			relation.Members = append(relation.Members, model.Member{
				ID:   model.ID(ref),
				Type: memberType,
				Role: role,
			})
		}
	}

	if pos != len(payload) {
		relation.Tags, err = p.decodeTags(payload, pos)
		if err != nil {
			return model.Relation{}, err
		}
	}

	return relation, nil
}
