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
)

// nanosPerCoordinate is the number of nanodegrees per model.Location unit.
const nanosPerCoordinate = 100

const featureHistoricalInformation = "HistoricalInformation"

// supportedFeatures are the required features this parser provides.
var supportedFeatures = map[string]bool{
	"OsmSchema-V0.6":             true,
	"DenseNodes":                 true,
	featureHistoricalInformation: true,
}

// parseHeaderBlock unmarshals the OSMHeader payload into the stream
// header.
func parseHeaderBlock(payload []byte) (model.Header, error) {
	block := pb.HeaderBlock{}
	if err := block.Unmarshal(payload); err != nil {
		return model.Header{}, err
	}

	header := model.Header{
		RequiredFeatures:                 block.RequiredFeatures,
		OptionalFeatures:                 block.OptionalFeatures,
		WritingProgram:                   block.WritingProgram,
		Source:                           block.Source,
		OsmosisReplicationSequenceNumber: block.ReplicationSequenceNumber,
		OsmosisReplicationBaseURL:        block.ReplicationBaseURL,
	}

	for _, feature := range block.RequiredFeatures {
		if !supportedFeatures[feature] {
			return model.Header{}, fmt.Errorf("required feature %q: %w", feature, errs.ErrUnsupportedFeature)
		}

		if feature == featureHistoricalInformation {
			header.HasMultipleVersions = true
		}
	}

	if block.BBox != nil {
		header.AddBox(model.Box{
			SW: model.Location{
				Lon: int32(block.BBox.Left / nanosPerCoordinate),
				Lat: int32(block.BBox.Bottom / nanosPerCoordinate),
			},
			NE: model.Location{
				Lon: int32(block.BBox.Right / nanosPerCoordinate),
				Lat: int32(block.BBox.Top / nanosPerCoordinate),
			},
		})
	}

	if block.ReplicationTimestamp != 0 {
		header.OsmosisReplicationTimestamp = time.Unix(block.ReplicationTimestamp, 0).UTC()
	}

	return header, nil
}
