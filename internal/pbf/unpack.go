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
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/ulikunitz/xz/lzma"

	"m4o.io/osmio/internal/errs"
	"m4o.io/osmio/internal/pbf/pb"
)

// unpackBlob unmarshals a raw Blob message and returns its uncompressed
// payload. Compressed payloads must inflate to exactly their declared raw
// size.
func unpackBlob(raw []byte, maxSize int) ([]byte, error) {
	blob := pb.Blob{}
	if err := blob.Unmarshal(raw); err != nil {
		return nil, err
	}

	if blob.Kind == pb.KindRaw {
		return blob.Data, nil
	}

	var factory func(b *pb.Blob) (io.Reader, error)

	switch blob.Kind {
	case pb.KindZlib:
		factory = func(b *pb.Blob) (io.Reader, error) {
			return zlib.NewReader(bytes.NewReader(b.Data))
		}
	case pb.KindLzma:
		factory = func(b *pb.Blob) (io.Reader, error) {
			return lzma.NewReader(bytes.NewReader(b.Data))
		}
	case pb.KindLz4:
		factory = func(b *pb.Blob) (io.Reader, error) {
			return lz4.NewReader(bytes.NewReader(b.Data)), nil
		}
	case pb.KindZstd:
		factory = func(b *pb.Blob) (io.Reader, error) {
			return zstd.NewReader(bytes.NewReader(b.Data))
		}
	default:
		return nil, fmt.Errorf("%s blob: %w", blob.Kind, errs.ErrUnsupportedCompression)
	}

	rawSize := int(blob.RawSize)
	if rawSize > maxSize {
		return nil, fmt.Errorf("invalid blob size %d: %w", rawSize, errs.ErrSizeLimitExceeded)
	}

	rdr, err := factory(&blob)
	if err != nil {
		return nil, fmt.Errorf("unpacker factory error: %w", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, rawSize+bytes.MinRead))

	n, err := buf.ReadFrom(io.LimitReader(rdr, int64(rawSize)+1))
	if err != nil {
		return nil, fmt.Errorf("unpacker read error: %w", err)
	}

	if n != int64(rawSize) {
		return nil, fmt.Errorf("raw blob data size %d but expected %d: %w", n, rawSize, errs.ErrSizeMismatch)
	}

	return buf.Bytes(), nil
}
