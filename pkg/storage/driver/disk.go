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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"sherpack.sh/sherpack/pkg/release"
)

// DiskDriverName is returned by (*Disk).Name().
const DiskDriverName = "Disk"

// Disk stores one JSON-encoded (zstd-compressed, chunked as needed) record
// per file in a directory; Create, Update and Delete hold a gofrs/flock
// advisory lock on the directory while they run.
type Disk struct {
	dir  string
	lock *flock.Flock
}

func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Disk{dir: dir, lock: flock.New(filepath.Join(dir, ".lock"))}, nil
}

func (d *Disk) Name() string { return DiskDriverName }

func (d *Disk) path(key string) string { return filepath.Join(d.dir, key+".json") }

type diskRecord struct {
	Blob   []byte      `json:"blob,omitempty"`
	Chunks [][]byte    `json:"chunks,omitempty"`
	Index  *chunkIndex `json:"index,omitempty"`
}

func (d *Disk) Get(key string) (*release.Release, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrReleaseNotFound, key)
		}
		return nil, err
	}
	var rec diskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Index == nil {
		return decodeRelease(rec.Blob, nil, nil)
	}
	chunksByDigest := map[string][]byte{}
	for i, digest := range rec.Index.Digests {
		if i < len(rec.Chunks) {
			chunksByDigest[digest] = rec.Chunks[i]
		}
	}
	return decodeRelease(nil, rec.Index, func(digest string) ([]byte, bool) {
		c, ok := chunksByDigest[digest]
		return c, ok
	})
}

func (d *Disk) List(filter func(*release.Release) bool) ([]*release.Release, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	var out []*release.Release
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		key := e.Name()[:len(e.Name())-len(".json")]
		rls, err := d.Get(key)
		if err != nil {
			continue
		}
		if filter == nil || filter(rls) {
			out = append(out, rls)
		}
	}
	return out, nil
}

func (d *Disk) Query(lbs map[string]string) ([]*release.Release, error) {
	sel := labels(lbs)
	all, err := d.List(nil)
	if err != nil {
		return nil, err
	}
	var out []*release.Release
	for _, rls := range all {
		if labelsOf(rls).match(sel) {
			out = append(out, rls)
		}
	}
	return out, nil
}

func (d *Disk) write(key string, rls *release.Release) error {
	blob, chunks, idx, err := encodeRelease(rls)
	if err != nil {
		return err
	}
	rec := diskRecord{Blob: blob, Index: idx}
	if idx != nil {
		for _, digest := range idx.Digests {
			rec.Chunks = append(rec.Chunks, chunks[digest])
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(d.path(key), data, 0o644)
}

func (d *Disk) Create(key string, rls *release.Release) error {
	if err := d.lock.Lock(); err != nil {
		return err
	}
	defer d.lock.Unlock()
	if _, err := os.Stat(d.path(key)); err == nil {
		return fmt.Errorf("%w: %q", ErrReleaseExists, key)
	}
	return d.write(key, rls)
}

func (d *Disk) Update(key string, rls *release.Release) error {
	if err := d.lock.Lock(); err != nil {
		return err
	}
	defer d.lock.Unlock()
	if _, err := os.Stat(d.path(key)); err != nil {
		return fmt.Errorf("%w: %q", ErrReleaseNotFound, key)
	}
	return d.write(key, rls)
}

func (d *Disk) Delete(key string) (*release.Release, error) {
	if err := d.lock.Lock(); err != nil {
		return nil, err
	}
	defer d.lock.Unlock()
	rls, err := d.Get(key)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(d.path(key)); err != nil {
		return nil, err
	}
	return rls, nil
}
