/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package driver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"sherpack.sh/sherpack/pkg/release"
)

// maxObjectSize bounds a single backing object's payload, after which a
// record is split into content-addressed chunks. Conservative relative
// to the ~1MiB Secret/ConfigMap limit
// to leave room for the index record and label overhead.
const maxObjectSize = 900 * 1024

// chunkIndex lists the compressed chunks a record was split into, by
// content-addressed digest, in reassembly order.
type chunkIndex struct {
	Digests []string `json:"digests"`
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// encodeRelease serializes and zstd-compresses a release, returning the
// whole blob plus, only if it still exceeds maxObjectSize, the set of
// content-addressed chunks the blob was split into. Stable hashing (the
// digest is purely a function of chunk bytes) means re-storing an
// unchanged record reproduces the same chunk set, enabling dedup.
func encodeRelease(rls *release.Release) (blob []byte, chunks map[string][]byte, idx *chunkIndex, err error) {
	data, err := json.Marshal(rls)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling release: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, nil, nil, err
	}
	defer enc.Close()
	compressed := enc.EncodeAll(data, nil)

	if len(compressed) <= maxObjectSize {
		return compressed, nil, nil, nil
	}

	chunks = map[string][]byte{}
	var digests []string
	for off := 0; off < len(compressed); off += maxObjectSize {
		end := off + maxObjectSize
		if end > len(compressed) {
			end = len(compressed)
		}
		chunk := compressed[off:end]
		digest := sha256Hex(chunk)
		chunks[digest] = chunk
		digests = append(digests, digest)
	}
	return nil, chunks, &chunkIndex{Digests: digests}, nil
}

// decodeRelease reverses encodeRelease: if idx is non-nil the blob is
// reassembled from chunks (any missing chunk means the record is treated
// as not present; a chunk whose bytes no longer hash to its digest is
// ErrChunkIntegrity), otherwise blob is decoded directly.
func decodeRelease(blob []byte, idx *chunkIndex, lookupChunk func(digest string) ([]byte, bool)) (*release.Release, error) {
	var compressed []byte
	if idx != nil {
		var buf bytes.Buffer
		for _, d := range idx.Digests {
			chunk, ok := lookupChunk(d)
			if !ok {
				return nil, fmt.Errorf("%w: missing chunk %s", ErrReleaseNotFound, d)
			}
			if got := sha256Hex(chunk); got != d {
				return nil, fmt.Errorf("%w: chunk %s reads back as %s", ErrChunkIntegrity, d, got)
			}
			buf.Write(chunk)
		}
		compressed = buf.Bytes()
	} else {
		compressed = blob
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing release: %w", err)
	}
	rls := &release.Release{}
	if err := json.Unmarshal(data, rls); err != nil {
		return nil, fmt.Errorf("unmarshaling release: %w", err)
	}
	return rls, nil
}
