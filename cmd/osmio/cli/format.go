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

package cli

import (
	"github.com/spf13/pflag"

	"m4o.io/osmio"
)

// -- osmio.Format Value
type formatValue struct {
	value *osmio.Format
}

// NewFormatValue creates a pflag Value for an osmio.Format. The zero
// value, FormatUnknown, means the format should be sniffed from the
// stream.
func NewFormatValue(def osmio.Format, p *osmio.Format) pflag.Value {
	fv := &formatValue{value: p}
	*fv.value = def

	return fv
}

func (f *formatValue) Set(val string) error {
	format, err := osmio.ParseFormat(val)
	if err != nil {
		return err
	}

	*f.value = format

	return nil
}

func (f *formatValue) Type() string {
	return "format"
}

func (f *formatValue) String() string {
	if *f.value == osmio.FormatUnknown {
		return ""
	}

	return (*f.value).String()
}
