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

package releaseutil

import (
	"testing"

	"sherpack.sh/sherpack/pkg/release"
)

func testReleases() []*release.Release {
	return []*release.Release{
		{Name: "quiet-bear", Revision: 2, State: release.StatusSuperseded},
		{Name: "angry-bird", Revision: 4, State: release.StatusDeployed},
		{Name: "happy-cats", Revision: 1, State: release.StatusUninstalled},
		{Name: "vocal-dogs", Revision: 3, State: release.StatusUninstalled},
	}
}

func TestFilterAny(t *testing.T) {
	rels := Any(StatusFilter(release.StatusUninstalled)).Filter(testReleases())
	if len(rels) != 2 {
		t.Fatalf("expected 2 results, got %d", len(rels))
	}
	for _, r := range rels {
		if r.State != release.StatusUninstalled {
			t.Errorf("expected uninstalled result, got %s", r.State)
		}
	}
}

func TestFilterAll(t *testing.T) {
	notUninstalled := FilterFunc(func(r *release.Release) bool {
		return r.State != release.StatusUninstalled && r.Revision < 4
	})
	rels := All(notUninstalled).Filter(testReleases())
	if len(rels) != 1 {
		t.Fatalf("expected 1 result, got %d", len(rels))
	}
	if rels[0].Name != "quiet-bear" {
		t.Errorf("expected quiet-bear, got %s", rels[0].Name)
	}
}
