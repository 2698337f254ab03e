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

// Package archive implements the Pack Store's canonical archive format:
// deterministic tar+gzip production with a content-addressed MANIFEST,
// and integrity verification.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"sherpack.sh/sherpack/pkg/pack"
)

// gzipCompressionLevel is pinned so two builds of the same tree produce a
// byte-identical gzip stream.
const gzipCompressionLevel = gzip.DefaultCompression // level 6

const (
	fileMode = 0644
	dirMode  = 0755
	ownerName = "sherpack"
	groupName = "sherpack"
)

// Digest is a SHA-256 hex digest, always written as "sha256:<hex>".
type Digest string

func sha256Hex(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest("sha256:" + hex.EncodeToString(sum[:]))
}

// entry is one file destined for the archive, in its sorted emission order.
type entry struct {
	path string
	data []byte
}

// collect walks pack.Raw (the flat file list captured by the loader) into
// a byte-wise sorted entry list. Raw already excludes ignored files.
func collect(p *pack.Pack) []entry {
	entries := make([]entry, 0, len(p.Raw))
	for _, f := range p.Raw {
		entries = append(entries, entry{path: f.Name, data: f.Data})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })
	return entries
}

// CanonicalArchive produces the deterministic gzipped tar for a pack and
// its SHA-256 archive digest:
//   - files are walked in sorted, byte-wise path order
//   - every tar entry has mode 0644 (0755 for dirs), uid/gid 0, mtime 0,
//     and a constant owner/group name, no extended attributes
//   - a MANIFEST entry (sorted "path  sha256:hex" lines) is written first
//   - the gzip stream carries no filename and uses a fixed compression level
func CanonicalArchive(p *pack.Pack) ([]byte, Digest, error) {
	entries := collect(p)

	var manifest strings.Builder
	digests := make([]Digest, len(entries))
	for i, e := range entries {
		digests[i] = sha256Hex(e.data)
		fmt.Fprintf(&manifest, "%s  %s\n", e.path, digests[i])
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzipCompressionLevel)
	if err != nil {
		return nil, "", err
	}
	// gzip.Writer emits no Name/Comment/ModTime unless explicitly set on
	// gz.Header, which we deliberately never touch.
	tw := tar.NewWriter(gz)

	writeEntry := func(name string, data []byte) error {
		hdr := &tar.Header{
			Name:     name,
			Mode:     fileMode,
			Size:     int64(len(data)),
			ModTime:  epoch,
			Uname:    ownerName,
			Gname:    groupName,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := tw.Write(data)
		return err
	}

	if err := writeEntry("MANIFEST", []byte(manifest.String())); err != nil {
		return nil, "", err
	}
	for _, e := range entries {
		if err := writeEntry(e.path, e.data); err != nil {
			return nil, "", err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, "", err
	}
	if err := gz.Close(); err != nil {
		return nil, "", err
	}

	out := buf.Bytes()
	digest := sha256Hex(out)
	return out, digest, nil
}

var epoch = time.Unix(0, 0).UTC()
