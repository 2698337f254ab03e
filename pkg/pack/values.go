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

import "strings"

// DeepMerge performs the canonical Values merge: maps are
// merged recursively, scalars and lists are replaced wholesale by the
// right-hand side. Neither input is mutated.
func DeepMerge(base, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		bv, exists := out[k]
		if !exists {
			out[k] = v
			continue
		}
		bm, bok := bv.(map[string]interface{})
		vm, vok := v.(map[string]interface{})
		if bok && vok {
			out[k] = DeepMerge(bm, vm)
			continue
		}
		out[k] = v
	}
	return out
}

// GetPath resolves a dotted path ("a.b.c") against a Values document,
// returning (value, true) if every segment exists, or (nil, false)
// otherwise. A missing intermediate segment is not an error: it is simply
// "not found", the way dependency condition evaluation expects.
func GetPath(values map[string]interface{}, dotted string) (interface{}, bool) {
	if dotted == "" {
		return values, true
	}
	segs := strings.Split(dotted, ".")
	var cur interface{} = values
	for _, s := range segs {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[s]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// SetPath sets a dotted path in values, creating intermediate maps as
// needed. It mutates and returns values for convenience.
func SetPath(values map[string]interface{}, dotted string, val interface{}) map[string]interface{} {
	if values == nil {
		values = map[string]interface{}{}
	}
	segs := strings.Split(dotted, ".")
	cur := values
	for i, s := range segs {
		if i == len(segs)-1 {
			cur[s] = val
			return values
		}
		next, ok := cur[s].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[s] = next
		}
		cur = next
	}
	return values
}

// Truthy implements the single definition of "falsy" used by both
// condition evaluation and the `default` filter (Helm-compatible
// semantics): undefined, nil, empty string, empty list/map, and boolean
// false are all falsy.
func Truthy(v interface{}, found bool) bool {
	if !found || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}
