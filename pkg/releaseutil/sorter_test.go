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

import "testing"

func TestSortManifestsSeparatesHooksFromGeneric(t *testing.T) {
	files := map[string]string{
		"one": `apiVersion: v1
kind: Job
metadata:
  name: first
  annotations:
    "sherpack.sh/hook": pre-install
`,
		"two": `kind: ReplicaSet
apiVersion: v1
metadata:
  name: second
  annotations:
    "sherpack.sh/hook": post-install,post-delete
`,
		"three": `kind: ReplicaSet
apiVersion: v1
metadata:
  name: third
  annotations:
    "sherpack.sh/hook": no-such-hook
`,
		"four": `kind: Pod
apiVersion: v1
metadata:
  name: fourth
  annotations:
    nothing: here
`,
		"_partial": `invalid manifest`,
		"empty":    "",
	}

	hooks, generic, err := SortManifests(files, InstallOrder)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(generic) != 1 {
		t.Fatalf("expected 1 generic manifest, got %d", len(generic))
	}
	if generic[0].Name != "four" {
		t.Errorf("expected generic manifest 'four', got %q", generic[0].Name)
	}
	if len(hooks) != 2 {
		t.Fatalf("expected 2 hooks (unrecognized hook type dropped), got %d", len(hooks))
	}
	byName := map[string][]string{}
	for _, h := range hooks {
		var names []string
		for _, e := range h.Events {
			names = append(names, string(e))
		}
		byName[h.Name] = names
	}
	if len(byName["second"]) != 2 {
		t.Errorf("expected two events on 'second', got %v", byName["second"])
	}
}

func TestSortManifestsMultiDocFile(t *testing.T) {
	files := map[string]string{
		"multi": `kind: ConfigMap
apiVersion: v1
metadata:
  name: eighth
---
apiVersion: v1
kind: Pod
metadata:
  name: example-test
  annotations:
    "sherpack.sh/hook": test
`,
	}
	hooks, generic, err := SortManifests(files, InstallOrder)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(generic) != 1 || generic[0].Head.Metadata.Name != "eighth" {
		t.Fatalf("expected one generic manifest named eighth, got %+v", generic)
	}
	if len(hooks) != 1 || hooks[0].Name != "example-test" {
		t.Fatalf("expected one hook named example-test, got %+v", hooks)
	}
}

func TestSortManifestsDeletePolicyAndLogPolicy(t *testing.T) {
	files := map[string]string{
		"one": `kind: Job
apiVersion: batch/v1
metadata:
  name: migrate
  annotations:
    "sherpack.sh/hook": pre-upgrade
    "sherpack.sh/hook-delete-policy": hook-succeeded, before-hook-creation
    "sherpack.sh/hook-weight": "-5"
`,
	}
	hooks, _, err := SortManifests(files, InstallOrder)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(hooks))
	}
	h := hooks[0]
	if h.Weight != -5 {
		t.Errorf("expected weight -5, got %d", h.Weight)
	}
	if len(h.DeletePolicies) != 2 {
		t.Errorf("expected 2 delete policies, got %v", h.DeletePolicies)
	}
}
