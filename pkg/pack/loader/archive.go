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

package loader

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"sherpack.sh/sherpack/pkg/pack"
)

// MaxDecompressedPackSize bounds total decompressed archive size, a
// safeguard against archive bombs.
var MaxDecompressedPackSize int64 = 100 * 1024 * 1024

// MaxDecompressedFileSize bounds any single file within an archive.
var MaxDecompressedFileSize int64 = 5 * 1024 * 1024

// LoadArchive reads a gzipped tar stream produced by pkg/archive's
// CanonicalArchive and returns the loaded Pack. It does not verify the
// MANIFEST; use pkg/archive.Verify beforehand when integrity matters.
func LoadArchive(r io.Reader) (*pack.Pack, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		if err == gzip.ErrHeader {
			return nil, fmt.Errorf("not a valid gzip archive: %w", err)
		}
		return nil, err
	}
	defer gz.Close()

	var files []*BufferedFile
	var total int64
	tr := tar.NewReader(gz)
	for {
		hd, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "corrupt archive")
		}
		if hd.Typeflag != tar.TypeReg {
			continue
		}
		if hd.Size > MaxDecompressedFileSize {
			return nil, fmt.Errorf("file %q exceeds maximum decompressed size", hd.Name)
		}
		total += hd.Size
		if total > MaxDecompressedPackSize {
			return nil, fmt.Errorf("archive exceeds maximum decompressed size")
		}
		name := hd.Name
		if name == "MANIFEST" {
			// MANIFEST is consumed by pkg/archive.Verify, not the pack model.
			if _, err := io.Copy(io.Discard, tr); err != nil {
				return nil, err
			}
			continue
		}
		data := make([]byte, hd.Size)
		if _, err := io.ReadFull(tr, data); err != nil {
			return nil, err
		}
		files = append(files, &BufferedFile{Name: name, Data: data})
	}
	return LoadFiles(files)
}
