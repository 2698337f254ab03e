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
	"sync"

	"sherpack.sh/sherpack/pkg/release"
)

// MemoryDriverName is returned by (*Memory).Name().
const MemoryDriverName = "Memory"

// Memory is an in-process Driver backed by a plain map, for tests and for
// `--dry-run` style evaluation that should never touch the cluster.
type Memory struct {
	mu   sync.RWMutex
	recs records
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return MemoryDriverName }

func (m *Memory) Get(key string) (*release.Release, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.recs.Get(key)
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrReleaseNotFound, key)
	}
	return r.rls, nil
}

func (m *Memory) List(filter func(*release.Release) bool) ([]*release.Release, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*release.Release
	for _, r := range m.recs {
		if filter == nil || filter(r.rls) {
			out = append(out, r.rls)
		}
	}
	return out, nil
}

func (m *Memory) Query(lbs map[string]string) ([]*release.Release, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := labels(lbs)
	var out []*release.Release
	for _, r := range m.recs {
		if labelsOf(r.rls).match(want) {
			out = append(out, r.rls)
		}
	}
	return out, nil
}

func (m *Memory) Create(key string, rls *release.Release) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs.Add(newRecord(key, rls))
}

func (m *Memory) Update(key string, rls *release.Release) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recs.Get(key) == nil {
		return fmt.Errorf("%w: %q", ErrReleaseNotFound, key)
	}
	m.recs.Replace(key, newRecord(key, rls))
	return nil
}

func (m *Memory) Delete(key string) (*release.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.recs.Remove(key)
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrReleaseNotFound, key)
	}
	return r.rls, nil
}

// labelsOf mirrors the label set every backend stamps onto its backing
// object, so Query behaves identically across drivers.
func labelsOf(rls *release.Release) labels {
	return labels{
		"name":    rls.Name,
		"owner":   "sherpack",
		"status":  string(rls.State),
		"version": itoa(int(rls.Revision)),
	}
}
