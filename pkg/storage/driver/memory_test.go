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
	"testing"

	"sherpack.sh/sherpack/pkg/release"
)

func fixtureMemory(t *testing.T) *Memory {
	t.Helper()
	mem := NewMemory()
	for _, rls := range []*release.Release{
		stubRelease("rls-a", 1, release.StatusSuperseded),
		stubRelease("rls-a", 2, release.StatusSuperseded),
		stubRelease("rls-a", 3, release.StatusDeployed),
		stubRelease("rls-b", 1, release.StatusDeployed),
	} {
		if err := mem.Create(releaseKey(rls.Name, rls.Revision), rls); err != nil {
			t.Fatalf("setup: %s", err)
		}
	}
	return mem
}

func TestMemoryCreateAndGet(t *testing.T) {
	mem := fixtureMemory(t)
	rls, err := mem.Get(releaseKey("rls-a", 3))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if rls.Revision != 3 || rls.State != release.StatusDeployed {
		t.Errorf("unexpected release: %+v", rls)
	}
}

func TestMemoryCreateDuplicate(t *testing.T) {
	mem := fixtureMemory(t)
	if err := mem.Create(releaseKey("rls-a", 3), stubRelease("rls-a", 3, release.StatusDeployed)); err == nil {
		t.Fatal("expected error creating a duplicate key")
	}
}

func TestMemoryUpdate(t *testing.T) {
	mem := fixtureMemory(t)
	updated := stubRelease("rls-a", 3, release.StatusSuperseded)
	if err := mem.Update(releaseKey("rls-a", 3), updated); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	got, _ := mem.Get(releaseKey("rls-a", 3))
	if got.State != release.StatusSuperseded {
		t.Errorf("expected updated state, got %s", got.State)
	}
}

func TestMemoryDelete(t *testing.T) {
	mem := fixtureMemory(t)
	if _, err := mem.Delete(releaseKey("rls-a", 1)); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := mem.Get(releaseKey("rls-a", 1)); err == nil {
		t.Fatal("expected not-found after delete")
	}
}

func TestMemoryList(t *testing.T) {
	mem := fixtureMemory(t)
	all, err := mem.List(nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 records, got %d", len(all))
	}
}

func TestMemoryQueryByName(t *testing.T) {
	mem := fixtureMemory(t)
	got, err := mem.Query(map[string]string{"name": "rls-a"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 records for rls-a, got %d", len(got))
	}
}
