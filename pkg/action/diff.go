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
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"sherpack.sh/sherpack/pkg/releaseutil"
)

// ManifestDiff is the structural diff of one rendered file between two
// renders, computed against the last successful render without applying.
type ManifestDiff struct {
	Path    string
	Added   bool
	Removed bool
	Changed bool
	Unified string
}

// DiffManifests compares the generic apply set of two RenderResults,
// file-by-file, using a unified diff over each file's YAML text. Hook
// manifests are intentionally excluded: hooks are not part of the normal
// apply set
//.
func DiffManifests(previous, next []releaseutil.Manifest) []ManifestDiff {
	prevByPath := manifestsByPath(previous)
	nextByPath := manifestsByPath(next)

	paths := map[string]struct{}{}
	for p := range prevByPath {
		paths[p] = struct{}{}
	}
	for p := range nextByPath {
		paths[p] = struct{}{}
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var diffs []ManifestDiff
	for _, p := range sorted {
		before, hadBefore := prevByPath[p]
		after, hadAfter := nextByPath[p]

		switch {
		case !hadBefore:
			diffs = append(diffs, ManifestDiff{Path: p, Added: true, Unified: unified(p, "", after)})
		case !hadAfter:
			diffs = append(diffs, ManifestDiff{Path: p, Removed: true, Unified: unified(p, before, "")})
		case before != after:
			diffs = append(diffs, ManifestDiff{Path: p, Changed: true, Unified: unified(p, before, after)})
		}
	}
	return diffs
}

func manifestsByPath(manifests []releaseutil.Manifest) map[string]string {
	out := make(map[string]string, len(manifests))
	for _, m := range manifests {
		out[m.Name] = m.Content
	}
	return out
}

func unified(path, before, after string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: fmt.Sprintf("a/%s", path),
		ToFile:   fmt.Sprintf("b/%s", path),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return strings.TrimRight(text, "\n")
}
