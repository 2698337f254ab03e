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

func TestDiskName(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if d.Name() != DiskDriverName {
		t.Errorf("expected name %q, got %q", DiskDriverName, d.Name())
	}
}

func TestDiskCreateGetDelete(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	rls := stubRelease("rls-a", 1, release.StatusDeployed)
	if err := d.Create(releaseKey(rls.Name, rls.Revision), rls); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	got, err := d.Get(releaseKey(rls.Name, rls.Revision))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got.Name != rls.Name {
		t.Errorf("expected %q, got %q", rls.Name, got.Name)
	}
	if _, err := d.Delete(releaseKey(rls.Name, rls.Revision)); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := d.Get(releaseKey(rls.Name, rls.Revision)); err == nil {
		t.Fatal("expected not-found after delete")
	}
}

func TestDiskListAcrossNames(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for _, rls := range []*release.Release{
		stubRelease("rls-a", 1, release.StatusSuperseded),
		stubRelease("rls-b", 1, release.StatusDeployed),
	} {
		if err := d.Create(releaseKey(rls.Name, rls.Revision), rls); err != nil {
			t.Fatalf("setup: %s", err)
		}
	}
	all, err := d.List(nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 records, got %d", len(all))
	}
}
