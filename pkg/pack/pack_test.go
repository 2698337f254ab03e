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

package pack

import "testing"

func TestRoleOf(t *testing.T) {
	cases := map[string]Role{
		"templates/deployment.yaml": RoleManifest,
		"templates/_helpers.tpl":    RoleHelper,
		"templates/NOTES.txt":       RoleNotes,
	}
	for path, want := range cases {
		if got := RoleOf(path); got != want {
			t.Errorf("RoleOf(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestEffectiveName(t *testing.T) {
	d := &DependencySpec{Name: "postgresql"}
	if got := d.EffectiveName(); got != "postgresql" {
		t.Errorf("EffectiveName() = %q, want postgresql", got)
	}
	d.Alias = "db"
	if got := d.EffectiveName(); got != "db" {
		t.Errorf("EffectiveName() with alias = %q, want db", got)
	}
}

func TestValidateRequiresMetadata(t *testing.T) {
	c := &Pack{}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing metadata")
	}
}

func TestValidateRejectsBadName(t *testing.T) {
	c := &Pack{Metadata: &Metadata{Name: "Not_Valid", Version: "1.0.0"}}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for invalid DNS label name")
	}
}

func TestValidateRequiresVersion(t *testing.T) {
	c := &Pack{Metadata: &Metadata{Name: "demo"}}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing version")
	}
}

func TestValidateAccepts(t *testing.T) {
	c := &Pack{Metadata: &Metadata{Name: "demo-1", Version: "1.0.0"}}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAddDependencyStampsParent(t *testing.T) {
	parent := &Pack{Metadata: &Metadata{Name: "parent", Version: "1.0.0"}}
	child := &Pack{Metadata: &Metadata{Name: "child", Version: "1.0.0"}}
	parent.AddDependency(child)

	if child.Parent() != parent {
		t.Fatal("child.Parent() should be parent")
	}
	if parent.IsRoot() != true {
		t.Fatal("parent should be root")
	}
	if child.IsRoot() {
		t.Fatal("child should not be root")
	}
	if len(parent.Dependencies()) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(parent.Dependencies()))
	}
}

func TestIsLibrary(t *testing.T) {
	app := &Pack{Metadata: &Metadata{Kind: KindApplication}}
	lib := &Pack{Metadata: &Metadata{Kind: KindLibrary}}
	if app.IsLibrary() {
		t.Error("application pack reported as library")
	}
	if !lib.IsLibrary() {
		t.Error("library pack not reported as library")
	}
}

func TestCRDObjectsOrdersDependenciesBeforeSelf(t *testing.T) {
	grandchild := &Pack{
		Metadata: &Metadata{Name: "grandchild", Version: "1.0.0"},
		CRDs:     []*File{{Name: "crds/gc.yaml"}},
	}
	child := &Pack{
		Metadata: &Metadata{Name: "child", Version: "1.0.0"},
		CRDs:     []*File{{Name: "crds/c.yaml"}},
	}
	child.AddDependency(grandchild)
	root := &Pack{
		Metadata: &Metadata{Name: "root", Version: "1.0.0"},
		CRDs:     []*File{{Name: "crds/r.yaml"}},
	}
	root.AddDependency(child)

	got := root.CRDObjects()
	if len(got) != 3 {
		t.Fatalf("expected 3 CRD files, got %d", len(got))
	}
	if got[0].Name != "crds/gc.yaml" || got[1].Name != "crds/c.yaml" || got[2].Name != "crds/r.yaml" {
		t.Fatalf("unexpected CRD order: %v", []string{got[0].Name, got[1].Name, got[2].Name})
	}
}
