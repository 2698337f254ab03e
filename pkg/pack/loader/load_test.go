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

package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherpack.sh/sherpack/pkg/pack"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestDirLoaderLoadsMetadataValuesAndTemplates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Pack.yaml", "apiVersion: sherpack/v1\nkind: application\nmetadata:\n  name: demo\n  version: 1.0.0\n")
	writeFile(t, root, "values.yaml", "suffix: x\n")
	writeFile(t, root, "templates/deployment.yaml", "kind: Deployment\n")
	writeFile(t, root, "templates/_helpers.tpl", "{% macro noop() %}{% endmacro %}")
	writeFile(t, root, "templates/NOTES.txt", "installed")
	writeFile(t, root, "files/config.txt", "hello")

	p, err := Load(root)
	require.NoError(t, err)
	require.NotNil(t, p.Metadata)
	assert.Equal(t, "demo", p.Metadata.Name)
	assert.Equal(t, "1.0.0", p.Metadata.Version)
	assert.Equal(t, "x", p.Values["suffix"])

	var names []string
	for _, tpl := range p.Templates {
		names = append(names, tpl.Name)
	}
	assert.Contains(t, names, "templates/deployment.yaml")
	assert.Contains(t, names, "templates/_helpers.tpl")
	assert.Contains(t, names, "templates/NOTES.txt")

	require.Len(t, p.Files, 1)
	assert.Equal(t, "files/config.txt", p.Files[0].Name)
}

func TestDirLoaderRejectsMissingMetadata(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "values.yaml", "a: 1\n")

	_, err := Load(root)
	require.Error(t, err)
	var le *pack.LoadError
	assert.ErrorAs(t, err, &le)
}

func TestDirLoaderRejectsNotesInSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Pack.yaml", "apiVersion: sherpack/v1\nmetadata:\n  name: demo\n  version: 1.0.0\n")
	writeFile(t, root, "templates/partials/NOTES.txt", "nope")

	_, err := Load(root)
	require.Error(t, err)
}

func TestDirLoaderRecursesIntoSubpacksInOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Pack.yaml", "apiVersion: sherpack/v1\nmetadata:\n  name: parent\n  version: 1.0.0\n")
	writeFile(t, root, "packs/zeta/Pack.yaml", "apiVersion: sherpack/v1\nmetadata:\n  name: zeta\n  version: 1.0.0\n")
	writeFile(t, root, "packs/alpha/Pack.yaml", "apiVersion: sherpack/v1\nmetadata:\n  name: alpha\n  version: 1.0.0\n")

	p, err := Load(root)
	require.NoError(t, err)
	require.Len(t, p.Dependencies(), 2)
	assert.Equal(t, "alpha", p.Dependencies()[0].Name())
	assert.Equal(t, "zeta", p.Dependencies()[1].Name())
	for _, dep := range p.Dependencies() {
		assert.Same(t, p, dep.Parent())
	}
}

func TestDirLoaderRejectsInvalidPackName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Pack.yaml", "apiVersion: sherpack/v1\nmetadata:\n  name: Not_Valid_DNS\n  version: 1.0.0\n")

	_, err := Load(root)
	require.Error(t, err)
}
