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
	"reflect"
	"testing"
)

const manifestFile = `

---
apiVersion: v1
kind: Pod
metadata:
  name: finding-nemo
  annotations:
    "sherpack.sh/hook": test
spec:
  containers:
  - name: nemo-test
    image: fake-image
    cmd: fake-command
`

const expectedManifest = `apiVersion: v1
kind: Pod
metadata:
  name: finding-nemo
  annotations:
    "sherpack.sh/hook": test
spec:
  containers:
  - name: nemo-test
    image: fake-image
    cmd: fake-command`

func TestSplitManifest(t *testing.T) {
	manifests := SplitManifests(manifestFile)
	if len(manifests) != 1 {
		t.Fatalf("Expected 1 manifest, got %v", len(manifests))
	}
	expected := map[string]string{"manifest-0": expectedManifest}
	if !reflect.DeepEqual(manifests, expected) {
		t.Errorf("Expected %v, got %v", expected, manifests)
	}
}

func TestSplitManifestMultipleDocs(t *testing.T) {
	doc := "first: doc\n---\nsecond: doc\n---\nthird: doc"
	manifests := SplitManifests(doc)
	if len(manifests) != 3 {
		t.Fatalf("Expected 3 manifests, got %v", len(manifests))
	}
	if manifests["manifest-0"] != "first: doc" {
		t.Errorf("unexpected manifest-0: %q", manifests["manifest-0"])
	}
	if manifests["manifest-2"] != "third: doc" {
		t.Errorf("unexpected manifest-2: %q", manifests["manifest-2"])
	}
}

func TestSplitManifestSkipsEmptyDocs(t *testing.T) {
	doc := "---\n---\nonly: doc\n---\n\n"
	manifests := SplitManifests(doc)
	if len(manifests) != 1 {
		t.Fatalf("Expected 1 manifest, got %v", len(manifests))
	}
}

func TestBySplitManifestsOrder(t *testing.T) {
	keys := []string{"manifest-10", "manifest-2", "manifest-1"}
	sortedKeys := make([]string, len(keys))
	copy(sortedKeys, keys)
	bs := BySplitManifestsOrder(sortedKeys)
	if bs.Len() != 3 {
		t.Fatalf("expected len 3, got %d", bs.Len())
	}
	for i := 0; i < len(sortedKeys)-1; i++ {
		for j := i + 1; j < len(sortedKeys); j++ {
			if bs.Less(j, i) {
				bs.Swap(i, j)
			}
		}
	}
	want := []string{"manifest-1", "manifest-2", "manifest-10"}
	if !reflect.DeepEqual(sortedKeys, want) {
		t.Errorf("expected %v, got %v", want, sortedKeys)
	}
}
