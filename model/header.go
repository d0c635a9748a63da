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

package model

import (
	"time"
)

// Header is the stream-level metadata of an OSM data file. It is published
// exactly once per stream, before the first entity buffer.
type Header struct {
	HasMultipleVersions              bool              `json:"has_multiple_versions,omitempty"`
	Boxes                            []Box             `json:"boxes,omitempty"`
	RequiredFeatures                 []string          `json:"required_features,omitempty"`
	OptionalFeatures                 []string          `json:"optional_features,omitempty"`
	WritingProgram                   string            `json:"writing_program,omitempty"`
	Source                           string            `json:"source,omitempty"`
	OsmosisReplicationTimestamp      time.Time         `json:"osmosis_replication_timestamp,omitempty"`
	OsmosisReplicationSequenceNumber int64             `json:"osmosis_replication_sequence_number,omitempty"`
	OsmosisReplicationBaseURL        string            `json:"osmosis_replication_base_url,omitempty"`
	Metadata                         map[string]string `json:"metadata,omitempty"`
}

// Set records a key/value metadata pair on the header.
func (h *Header) Set(key, value string) {
	if h.Metadata == nil {
		h.Metadata = make(map[string]string)
	}

	h.Metadata[key] = value
}

// Get returns the metadata value for key, or the empty string.
func (h *Header) Get(key string) string {
	return h.Metadata[key]
}

// AddBox appends a bounding box to the header.
func (h *Header) AddBox(box Box) {
	h.Boxes = append(h.Boxes, box)
}

// BoundingBox returns the first bounding box in decimal degrees, if any.
func (h *Header) BoundingBox() (BoundingBox, bool) {
	if len(h.Boxes) == 0 {
		return BoundingBox{}, false
	}

	return h.Boxes[0].Bounds(), true
}
