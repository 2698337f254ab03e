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
	"fmt"

	"sherpack.sh/sherpack/pkg/release"
)

// record associates a release with the key it is stored under (the
// in-memory driver's analogue of a Secret/ConfigMap name).
type record struct {
	key string
	rls *release.Release
}

func newRecord(key string, rls *release.Release) *record {
	return &record{key: key, rls: rls}
}

// records is a list of records in insertion order, searched linearly by key.
type records []*record

func (rs records) Len() int { return len(rs) }

// index returns the position of key in rs, or -1.
func (rs records) index(key string) int {
	for i, r := range rs {
		if r.key == key {
			return i
		}
	}
	return -1
}

// Get returns the record at key, or nil.
func (rs records) Get(key string) *record {
	if i := rs.index(key); i != -1 {
		return rs[i]
	}
	return nil
}

// Add appends r to the list; it refuses to overwrite an
// existing key (mirrors the underlying stores' create-only-once semantics).
func (rs *records) Add(r *record) error {
	if rs.index(r.key) != -1 {
		return fmt.Errorf("%w: key %q", ErrReleaseExists, r.key)
	}
	*rs = append(*rs, r)
	return nil
}

// Replace overwrites the record at key, returning the prior value.
func (rs records) Replace(key string, r *record) *record {
	if i := rs.index(key); i != -1 {
		old := rs[i]
		rs[i] = r
		return old
	}
	return nil
}

// Remove deletes the record at key, returning it, or nil if absent.
func (rs *records) Remove(key string) *record {
	i := rs.index(key)
	if i == -1 {
		return nil
	}
	r := (*rs)[i]
	*rs = append((*rs)[:i], (*rs)[i+1:]...)
	return r
}
