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

package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherpack.sh/sherpack/pkg/pack"
)

func TestFileOverlayParsesYAML(t *testing.T) {
	o, err := FileOverlay("values.yaml", []byte("replicas: 3\nimage:\n  tag: v1\n"))
	require.NoError(t, err)
	assert.Equal(t, "values.yaml", o.Source)
	assert.Equal(t, float64(3), o.Values["replicas"])
}

func TestFileOverlayEmptyDocumentYieldsEmptyMap(t *testing.T) {
	o, err := FileOverlay("empty.yaml", []byte(""))
	require.NoError(t, err)
	assert.Empty(t, o.Values)
}

func TestFileOverlayRejectsInvalidYAML(t *testing.T) {
	_, err := FileOverlay("bad.yaml", []byte("not: [valid"))
	require.Error(t, err)
}

func TestSetOverlayParsesScalarsAndNesting(t *testing.T) {
	o, err := SetOverlay("--set", "replicas=3,enabled=true,name=demo,nothing=null,image.tag=v2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), o.Values["replicas"])
	assert.Equal(t, true, o.Values["enabled"])
	assert.Equal(t, "demo", o.Values["name"])
	assert.Nil(t, o.Values["nothing"])
	assert.Equal(t, "v2", o.Values["image"].(map[string]interface{})["tag"])
}

func TestSetOverlayRejectsMissingEquals(t *testing.T) {
	_, err := SetOverlay("--set", "replicas")
	require.Error(t, err)
}

func TestSetOverlayRespectsBracketDepthWhenSplitting(t *testing.T) {
	o, err := SetOverlay("--set", "list=[a,b,c]")
	require.NoError(t, err)
	assert.Equal(t, "[a,b,c]", o.Values["list"])
}

func TestComposeValuesLayersInOrder(t *testing.T) {
	p := &pack.Pack{
		Values: map[string]interface{}{
			"replicas": float64(1),
			"image":    map[string]interface{}{"tag": "base"},
		},
	}
	overlay, err := FileOverlay("override.yaml", []byte("image:\n  tag: override\n"))
	require.NoError(t, err)

	merged, provenance, err := ComposeValues(p, []ValueOverlay{overlay})
	require.NoError(t, err)
	assert.Equal(t, float64(1), merged["replicas"])
	assert.Equal(t, "override", merged["image"].(map[string]interface{})["tag"])

	require.Len(t, provenance, 2)
	assert.Equal(t, "pack-defaults", provenance[0].Source)
	assert.Equal(t, "override.yaml", provenance[1].Source)
}

func TestComposeValuesAppliesSchemaDefaultsFirst(t *testing.T) {
	schema := []byte(`{
		"properties": {
			"replicas": {"default": 2},
			"name": {"default": "from-schema"}
		}
	}`)
	p := &pack.Pack{
		Schema: schema,
		Values: map[string]interface{}{"name": "from-values"},
	}

	merged, provenance, err := ComposeValues(p, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(2), merged["replicas"])
	assert.Equal(t, "from-values", merged["name"], "pack defaults must override schema defaults")
	assert.Equal(t, "schema-defaults", provenance[0].Source)
}

func TestValidateAgainstSchemaAcceptsValidValues(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {"replicas": {"type": "integer", "minimum": 1}},
		"required": ["replicas"]
	}`)
	err := ValidateAgainstSchema(schema, map[string]interface{}{"replicas": float64(2)})
	require.NoError(t, err)
}

func TestValidateAgainstSchemaRejectsInvalidValues(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {"replicas": {"type": "integer", "minimum": 1}},
		"required": ["replicas"]
	}`)
	err := ValidateAgainstSchema(schema, map[string]interface{}{"replicas": float64(0)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestValidateAgainstSchemaSkipsWhenNoSchema(t *testing.T) {
	err := ValidateAgainstSchema(nil, map[string]interface{}{"anything": "goes"})
	require.NoError(t, err)
}
