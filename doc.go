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

// Package osmio provides streaming decoders for the OpenStreetMap o5m,
// o5c, and PBF binary formats.
//
// A parser consumes byte chunks off a bounded input queue, decodes the
// stream's framing, and emits buffers of entities onto a bounded output
// queue; the stream header is handed over through a single-shot promise
// before the first buffer. Both queues carry rill.Try values, so a failure
// travels the same path as the data. Parsers are obtained from a factory
// keyed on the format tag:
//
//	input := make(chan rill.Try[[]byte], 8)
//	output := make(chan rill.Try[*osmbuf.Buffer], 8)
//	header := future.NewPromise[model.Header]()
//
//	parser, err := osmio.OpenParser(ctx, osmio.PBF, input, output, header)
//	...
//	go parser.Run()
//
// For the common case of decoding from an io.Reader, Reader wires the
// queues up itself:
//
//	rdr, err := osmio.NewReader(ctx, in, osmio.PBF)
//	...
//	for {
//		entities, err := rdr.Decode()
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		...
//	}
//
// PBF data blobs are decoded on a bounded worker pool; results reach the
// output queue in submission order, so entities are observed in input
// order regardless of which worker finishes first. The o5m decoder is
// serial, as the format's delta coding and string reference table demand.
package osmio
