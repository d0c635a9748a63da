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
	"fmt"
)

// CoordinateScale is the number of Location units per degree. One unit is
// 100 nanodegrees.
const CoordinateScale = 10_000_000

// Location is a point on the earth's surface in fixed-point coordinates of
// 1e-7 degrees. The zero value marks an undefined location, as carried by
// deleted nodes.
type Location struct {
	Lon int32
	Lat int32
}

// NewLocation creates a Location from decimal degrees.
func NewLocation(lon, lat Degrees) Location {
	return Location{
		Lon: int32(round(float64(lon) * CoordinateScale)),
		Lat: int32(round(float64(lat) * CoordinateScale)),
	}
}

// LonDegrees returns the longitude in decimal degrees.
func (l Location) LonDegrees() Degrees { return Degrees(l.Lon) / CoordinateScale }

// LatDegrees returns the latitude in decimal degrees.
func (l Location) LatDegrees() Degrees { return Degrees(l.Lat) / CoordinateScale }

// IsDefined reports whether the location carries coordinates.
func (l Location) IsDefined() bool { return l != Location{} }

func (l Location) String() string {
	return fmt.Sprintf("(%s, %s)", ftoa(float64(l.LonDegrees())), ftoa(float64(l.LatDegrees())))
}

// Box is a bounding box in fixed-point coordinates, south-west to
// north-east.
type Box struct {
	SW Location
	NE Location
}

func (b Box) String() string {
	return fmt.Sprintf("[%s %s]", b.SW, b.NE)
}

// Bounds converts the box into decimal-degree form.
func (b Box) Bounds() BoundingBox {
	return BoundingBox{
		Top:    b.NE.LatDegrees(),
		Left:   b.SW.LonDegrees(),
		Bottom: b.SW.LatDegrees(),
		Right:  b.NE.LonDegrees(),
	}
}

// BoundingBox is a bounding box in decimal degrees.
type BoundingBox struct {
	Top    Degrees `json:"top"`
	Left   Degrees `json:"left"`
	Bottom Degrees `json:"bottom"`
	Right  Degrees `json:"right"`
}

// EqualWithin checks if two bounding boxes are within a specific epsilon.
func (b BoundingBox) EqualWithin(o BoundingBox, eps Epsilon) bool {
	return b.Left.EqualWithin(o.Left, eps) &&
		b.Right.EqualWithin(o.Right, eps) &&
		b.Top.EqualWithin(o.Top, eps) &&
		b.Bottom.EqualWithin(o.Bottom, eps)
}

// Contains checks if the bounding box contains the lon lat point.
func (b BoundingBox) Contains(lon Degrees, lat Degrees) bool {
	return b.Left <= lon && lon <= b.Right && b.Bottom <= lat && lat <= b.Top
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%s, %s, %s, %s]",
		ftoa(float64(b.Left)), ftoa(float64(b.Bottom)),
		ftoa(float64(b.Right)), ftoa(float64(b.Top)))
}
