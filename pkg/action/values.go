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
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"

	"sherpack.sh/sherpack/pkg/pack"
)

// ValueOverlay is one layer of the values composition stack:
// "schema-defaults < pack-defaults < -f files in order <
// --set overrides". Source is carried into release.ValuesProvenance.
type ValueOverlay struct {
	Source string
	Values map[string]interface{}
}

// FileOverlay parses one -f/--values YAML document into an overlay.
func FileOverlay(source string, raw []byte) (ValueOverlay, error) {
	var v map[string]interface{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return ValueOverlay{}, fmt.Errorf("parsing %s: %w", source, err)
		}
	}
	if v == nil {
		v = map[string]interface{}{}
	}
	return ValueOverlay{Source: source, Values: v}, nil
}

// SetOverlay parses a comma-separated list of dotted-path=value pairs, the
// --set flag's grammar. Values are parsed as scalars (bool, null, integer,
// float, string); a bracketed list such as [a,b] is kept whole as one
// string value. Nested maps are created as needed. Escaping of literal '.', ',' or '='
// within a key is not supported; a front-end that needs the full escaping
// grammar can parse it and hand this package a plain overlay.
func SetOverlay(source, expr string) (ValueOverlay, error) {
	out := map[string]interface{}{}
	for _, pair := range splitTopLevel(expr, ',') {
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return ValueOverlay{}, fmt.Errorf("invalid --set entry %q: missing '='", pair)
		}
		out = pack.SetPath(out, k, parseScalar(v)).(map[string]interface{})
	}
	return ValueOverlay{Source: source, Values: out}, nil
}

func splitTopLevel(s string, sep rune) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func parseScalar(s string) interface{} {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null", "~":
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// ComposeValues builds the final values tree for a render: a pack's
// schema defaults (if any), merged under its Values.yaml defaults, then
// every overlay in order. The returned
// provenance records, in overlay order, which top-level keys each layer
// touched — enough to answer "where did this value come from" without
// re-deriving it from the merged result.
func ComposeValues(p *pack.Pack, overlays []ValueOverlay) (map[string]interface{}, []Provenance, error) {
	merged := map[string]interface{}{}
	var provenance []Provenance

	if len(p.Schema) > 0 {
		defaults, err := schemaDefaults(p.Schema)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		merged = pack.DeepMerge(merged, defaults)
		provenance = append(provenance, Provenance{Source: "schema-defaults", Keys: topLevelKeys(defaults)})
	}

	merged = pack.DeepMerge(merged, p.Values)
	provenance = append(provenance, Provenance{Source: "pack-defaults", Keys: topLevelKeys(p.Values)})

	for _, o := range overlays {
		merged = pack.DeepMerge(merged, o.Values)
		provenance = append(provenance, Provenance{Source: o.Source, Keys: topLevelKeys(o.Values)})
	}

	return merged, provenance, nil
}

// Provenance mirrors release.ValuesProvenance; kept as a distinct type so
// this package doesn't need to import pkg/release just to build one.
type Provenance struct {
	Source string
	Keys   []string
}

func topLevelKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// schemaDefaults extracts the "default" keyword at each property of a JSON
// Schema document into a values tree, the minimal subset of schema-driven
// defaulting the pack model supports.
func schemaDefaults(schema []byte) (map[string]interface{}, error) {
	var doc map[string]interface{}
	jsonBytes, err := yaml.YAMLToJSON(schema)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	props, _ := doc["properties"].(map[string]interface{})
	for name, raw := range props {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if d, ok := prop["default"]; ok {
			out[name] = d
		}
	}
	return out, nil
}

// ValidateAgainstSchema checks values against a pack's optional JSON
// Schema, returning an ErrSchema-wrapped error listing every violation
//.
func ValidateAgainstSchema(schema []byte, values map[string]interface{}) error {
	if len(schema) == 0 {
		return nil
	}
	jsonSchema, err := yaml.YAMLToJSON(schema)
	if err != nil {
		return fmt.Errorf("%w: invalid schema: %v", ErrSchema, err)
	}
	jsonValues, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	jsonValuesJSON, err := yaml.YAMLToJSON(jsonValues)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(jsonSchema),
		gojsonschema.NewBytesLoader(jsonValuesJSON),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if result.Valid() {
		return nil
	}
	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
}
