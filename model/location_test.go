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

package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"m4o.io/osmio/model"
)

func TestLocationDegrees(t *testing.T) {
	loc := model.Location{Lon: 136108997, Lat: 514682630}

	assert.True(t, loc.LonDegrees().EqualWithin(13.6108997, model.E7))
	assert.True(t, loc.LatDegrees().EqualWithin(51.4682630, model.E7))
}

func TestNewLocationRoundTrip(t *testing.T) {
	loc := model.NewLocation(-0.511482, 51.28554)

	assert.Equal(t, int32(-5114820), loc.Lon)
	assert.Equal(t, int32(512855400), loc.Lat)
	assert.True(t, loc.LonDegrees().EqualWithin(-0.511482, model.E7))
	assert.True(t, loc.LatDegrees().EqualWithin(51.28554, model.E7))
}

func TestLocationIsDefined(t *testing.T) {
	assert.False(t, model.Location{}.IsDefined())
	assert.True(t, model.Location{Lon: 1}.IsDefined())
	assert.True(t, model.Location{Lat: -1}.IsDefined())
}

func TestBoxBounds(t *testing.T) {
	box := model.Box{
		SW: model.NewLocation(-0.511482, 51.28554),
		NE: model.NewLocation(0.335437, 51.69344),
	}

	bounds := box.Bounds()
	expected := model.BoundingBox{Top: 51.69344, Left: -0.511482, Bottom: 51.28554, Right: 0.335437}

	assert.True(t, bounds.EqualWithin(expected, model.E7))
	assert.True(t, bounds.Contains(0, 51.5))
	assert.False(t, bounds.Contains(1, 51.5))
}

func TestBoundingBoxString(t *testing.T) {
	bbox := model.BoundingBox{Top: 51.69344, Left: -0.511482, Bottom: 51.28554, Right: 0.335437}
	assert.Equal(t, "[-0.511482, 51.28554, 0.335437, 51.69344]", bbox.String())
}
