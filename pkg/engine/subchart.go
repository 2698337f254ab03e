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

package engine

import "sherpack.sh/sherpack/pkg/pack"

// scopedValues computes a subchart's view of `values`:
// parent.values.<effective-name> merged over the subchart's own defaults,
// with `global` passed through unchanged and explicit nulls propagating as
// absent keys rather than empty objects.
func scopedValues(parentValues map[string]interface{}, sub *pack.Pack, dep *pack.DependencySpec) map[string]interface{} {
	section, _ := parentValues[dep.EffectiveName()].(map[string]interface{})
	raw := parentValues[dep.EffectiveName()]

	base := cloneMap(sub.Values)
	var merged map[string]interface{}
	if raw == nil {
		if _, present := parentValues[dep.EffectiveName()]; present {
			// Explicit nullification of the whole section: the subchart
			// sees no key at all, not its own defaults.
			merged = map[string]interface{}{}
		} else {
			merged = base
		}
	} else {
		merged = deepMergeWithNullify(base, section)
	}

	if g, ok := parentValues["global"]; ok {
		merged["global"] = g
	}
	return merged
}

// deepMergeWithNullify merges src over dst. A key present in src with a
// literal null value is removed from the result entirely, at any nesting depth.
func deepMergeWithNullify(dst, src map[string]interface{}) map[string]interface{} {
	out := cloneMap(dst)
	for k, sv := range src {
		if sv == nil {
			delete(out, k)
			continue
		}
		if dm, ok := out[k].(map[string]interface{}); ok {
			if sm, ok := sv.(map[string]interface{}); ok {
				out[k] = deepMergeWithNullify(dm, sm)
				continue
			}
		}
		out[k] = sv
	}
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]interface{}); ok {
			out[k] = cloneMap(sub)
			continue
		}
		out[k] = v
	}
	return out
}
