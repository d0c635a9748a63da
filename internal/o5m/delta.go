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
	"golang.org/x/exp/constraints"
)

// DeltaDecoder recovers a sequence of absolute values from its
// first-differences. Overflow wraps in two's complement; real-world
// magnitudes stay well inside the 64-bit range.
type DeltaDecoder[T constraints.Signed] struct {
	value T
}

// Update adds the delta to the accumulator and returns the absolute value.
func (d *DeltaDecoder[T]) Update(delta T) T {
	d.value += delta

	return d.value
}

// Clear resets the accumulator to zero.
func (d *DeltaDecoder[T]) Clear() {
	d.value = 0
}

// Value returns the current absolute value.
func (d *DeltaDecoder[T]) Value() T {
	return d.value
}
