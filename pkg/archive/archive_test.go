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

package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherpack.sh/sherpack/internal/test"
	"sherpack.sh/sherpack/pkg/pack"
)

func samplePack() *pack.Pack {
	return &pack.Pack{
		Metadata: &pack.Metadata{Name: "demo", Version: "1.0.0"},
		Raw: []*pack.File{
			{Name: "Pack.yaml", Data: []byte("apiVersion: sherpack/v1\nname: demo\nversion: 1.0.0\n")},
			{Name: "values.yaml", Data: []byte("suffix: x\n")},
			{Name: "templates/deployment.yaml", Data: []byte("kind: Deployment\n")},
			{Name: "templates/_helpers.yaml", Data: []byte("{% macro x() %}{% endmacro %}")},
		},
	}
}

func TestCanonicalArchiveIsDeterministic(t *testing.T) {
	p1 := samplePack()
	p2 := samplePack()

	b1, d1, err := CanonicalArchive(p1)
	require.NoError(t, err)
	b2, d2, err := CanonicalArchive(p2)
	require.NoError(t, err)

	assert.Equal(t, d1, d2, "archive digests for identical trees must match")
	assert.Equal(t, b1, b2, "archive bytes for identical trees must be byte-identical")
}

func TestCanonicalArchiveDiffersOnContentChange(t *testing.T) {
	p1 := samplePack()
	p2 := samplePack()
	p2.Raw[1].Data = []byte("suffix: y\n")

	_, d1, err := CanonicalArchive(p1)
	require.NoError(t, err)
	_, d2, err := CanonicalArchive(p2)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestCanonicalArchiveOrdersFilesLexicographically(t *testing.T) {
	p := &pack.Pack{
		Metadata: &pack.Metadata{Name: "demo", Version: "1.0.0"},
		Raw: []*pack.File{
			{Name: "z.txt", Data: []byte("z")},
			{Name: "a.txt", Data: []byte("a")},
			{Name: "m.txt", Data: []byte("m")},
		},
	}
	entries := collect(p)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a.txt", "m.txt", "z.txt"}, []string{entries[0].path, entries[1].path, entries[2].path})
}

func TestVerifyRoundTrip(t *testing.T) {
	p := samplePack()
	b, digest, err := CanonicalArchive(p)
	require.NoError(t, err)

	got, err := Verify(b)
	require.NoError(t, err)
	assert.Equal(t, digest, got)
}

func TestVerifyDetectsTamperedContent(t *testing.T) {
	p := samplePack()
	b, _, err := CanonicalArchive(p)
	require.NoError(t, err)

	tampered := make([]byte, len(b))
	copy(tampered, b)
	// Flip a byte well inside the gzip stream; gzip/tar framing should
	// either fail to decode or the content digest should no longer match.
	tampered[len(tampered)-5] ^= 0xFF

	_, err = Verify(tampered)
	assert.Error(t, err)
}

func TestCanonicalArchiveManifestMatchesGolden(t *testing.T) {
	b, _, err := CanonicalArchive(samplePack())
	require.NoError(t, err)

	gz, err := gzip.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	hdr, err := tr.Next()
	require.NoError(t, err)
	require.Equal(t, "MANIFEST", hdr.Name, "MANIFEST must be the first tar entry")

	content, err := io.ReadAll(tr)
	require.NoError(t, err)
	test.AssertGoldenString(t, string(content), "manifest.golden")
}
