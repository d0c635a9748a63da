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

package osmio

import (
	"context"

	"m4o.io/osmio/internal/o5m"
	"m4o.io/osmio/internal/pbf"
)

// The parsers known at build time. Keeping the table in one place avoids
// any dependence on initialization order across files.
func init() {
	for _, format := range []Format{O5M, O5C} {
		if err := RegisterParser(format, newO5mParser); err != nil {
			panic(err)
		}
	}

	if err := RegisterParser(PBF, newPbfParser); err != nil {
		panic(err)
	}
}

func newO5mParser(ctx context.Context, cfg ParserConfig) Parser {
	return o5m.NewParser(ctx, o5m.Config{
		Input:        cfg.Input,
		Output:       cfg.Output,
		Header:       cfg.Header,
		ReadTypes:    cfg.ReadTypes,
		ReadMetadata: cfg.ReadMetadata,
		BufferSize:   cfg.BufferSize,
	})
}

func newPbfParser(ctx context.Context, cfg ParserConfig) Parser {
	return pbf.NewParser(ctx, pbf.Config{
		Input:                   cfg.Input,
		Output:                  cfg.Output,
		Header:                  cfg.Header,
		ReadTypes:               cfg.ReadTypes,
		ReadMetadata:            cfg.ReadMetadata,
		PoolSize:                cfg.PoolSize,
		MaxBlobHeaderSize:       cfg.MaxBlobHeaderSize,
		MaxUncompressedBlobSize: cfg.MaxUncompressedBlobSize,
	})
}
