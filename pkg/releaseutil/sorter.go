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
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"sherpack.sh/sherpack/pkg/release"
)

// events maps the lowercased annotation value to a HookEvent, keeping the
// Helm 2 "test-success" spelling alive for packs migrated from it.
var events = map[string]release.HookEvent{
	release.HookPreInstall.String():   release.HookPreInstall,
	release.HookPostInstall.String():  release.HookPostInstall,
	release.HookPreDelete.String():    release.HookPreDelete,
	release.HookPostDelete.String():   release.HookPostDelete,
	release.HookPreUpgrade.String():   release.HookPreUpgrade,
	release.HookPostUpgrade.String():  release.HookPostUpgrade,
	release.HookPreRollback.String():  release.HookPreRollback,
	release.HookPostRollback.String(): release.HookPostRollback,
	release.HookTest.String():         release.HookTest,
	"test-success":                    release.HookTest,
}

type sortResult struct {
	hooks   []*release.Hook
	generic []Manifest
}

// SortManifests takes a map of path -> rendered content (as the Template
// Engine produces per-template output), splits each into its constituent
// documents, and separates hooks from the normal apply set: a hook
// annotation removes the manifest from the apply set and routes it into
// the hook list. Hooks are ordered by hook weight and then by the
// creation-order table; the apply set by wave and then by the table.
func SortManifests(files map[string]string, order KindSortOrder) ([]*release.Hook, []Manifest, error) {
	result := &sortResult{}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		content := files[p]
		if isPartial(p) {
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		entries := SplitManifests(content)
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Sort(BySplitManifestsOrder(keys))

		for _, k := range keys {
			doc := entries[k]
			var head SimpleHead
			if err := yaml.Unmarshal([]byte(doc), &head); err != nil {
				return nil, nil, fmt.Errorf("parsing %s: %w", p, err)
			}
			if head.Metadata == nil || len(head.Metadata.Annotations) == 0 {
				result.generic = append(result.generic, Manifest{Name: p, Content: doc, Head: &head})
				continue
			}
			hookTypes, ok := head.Metadata.Annotations[release.HookAnnotation]
			if !ok {
				result.generic = append(result.generic, Manifest{Name: p, Content: doc, Head: &head})
				continue
			}

			h := &release.Hook{
				Name:     head.Metadata.Name,
				Kind:     head.Kind,
				Path:     p,
				Manifest: doc,
				Weight:   hookWeight(head),
			}

			unknown := false
			for _, t := range strings.Split(hookTypes, ",") {
				e, ok := events[strings.ToLower(strings.TrimSpace(t))]
				if !ok {
					unknown = true
					break
				}
				h.Events = append(h.Events, e)
			}
			if unknown {
				slog.Warn("skipping manifest with unrecognized hook annotation", "path", p, "hookTypes", hookTypes)
				continue
			}

			forEachValue(head, release.HookDeleteAnnotation, func(v string) {
				h.DeletePolicies = append(h.DeletePolicies, release.HookDeletePolicy(v))
			})
			forEachValue(head, release.HookOutputLogAnnotation, func(v string) {
				h.OutputLogPolicies = append(h.OutputLogPolicies, release.HookOutputLogPolicy(v))
			})

			result.hooks = append(result.hooks, h)
		}
	}

	return sortHooksByKind(result.hooks, order), sortManifestsByKind(result.generic, order), nil
}

func hookWeight(h SimpleHead) int {
	if h.Metadata == nil {
		return 0
	}
	var w int
	_, err := fmt.Sscanf(h.Metadata.Annotations[release.HookWeightAnnotation], "%d", &w)
	if err != nil {
		return 0
	}
	return w
}

func forEachValue(h SimpleHead, annotation string, f func(string)) {
	if h.Metadata == nil {
		return
	}
	v, ok := h.Metadata.Annotations[annotation]
	if !ok {
		return
	}
	for _, part := range strings.Split(v, ",") {
		f(strings.ToLower(strings.TrimSpace(part)))
	}
}
