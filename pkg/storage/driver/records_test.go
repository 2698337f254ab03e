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

func stubRelease(name string, revision uint32, state release.Status) *release.Release {
	return &release.Release{Name: name, Revision: revision, State: state}
}

func TestRecordsAdd(t *testing.T) {
	rs := records{
		newRecord("rls-a.v1", stubRelease("rls-a", 1, release.StatusSuperseded)),
		newRecord("rls-a.v2", stubRelease("rls-a", 2, release.StatusDeployed)),
	}

	if err := rs.Add(newRecord("rls-a.v3", stubRelease("rls-a", 3, release.StatusSuperseded))); err != nil {
		t.Fatalf("unexpected error adding new key: %s", err)
	}
	if err := rs.Add(newRecord("rls-a.v1", stubRelease("rls-a", 1, release.StatusDeployed))); err == nil {
		t.Fatal("expected error adding already-existing key")
	}
}

func TestRecordsRemove(t *testing.T) {
	rs := records{
		newRecord("rls-a.v1", stubRelease("rls-a", 1, release.StatusSuperseded)),
		newRecord("rls-a.v2", stubRelease("rls-a", 2, release.StatusDeployed)),
	}
	start := rs.Len()
	if r := rs.Remove("rls-a.v1"); r == nil {
		t.Fatal("expected to remove rls-a.v1")
	}
	if rs.Remove("rls-z.v1") != nil {
		t.Fatal("expected nil removing a non-existent key")
	}
	if rs.Len() >= start {
		t.Errorf("expected ending length %d to be less than starting length %d", rs.Len(), start)
	}
}

func TestRecordsGetAndReplace(t *testing.T) {
	rs := records{newRecord("rls-a.v1", stubRelease("rls-a", 1, release.StatusSuperseded))}
	if rs.Get("rls-a.v1") == nil {
		t.Fatal("expected to find rls-a.v1")
	}
	rs.Replace("rls-a.v1", newRecord("rls-a.v1", stubRelease("rls-a", 1, release.StatusDeployed)))
	if rs.Get("rls-a.v1").rls.State != release.StatusDeployed {
		t.Errorf("expected replaced record to have Deployed state")
	}
}
