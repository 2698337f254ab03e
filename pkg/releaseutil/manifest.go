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

// Package releaseutil splits and orders rendered manifests: pulling hook
// resources out of the normal apply set, and sorting both by the
// creation-order table.
package releaseutil

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"sherpack.sh/sherpack/pkg/release"
)

// SimpleHead is the minimal decode of a rendered manifest needed to route
// and order it: kind, name, and annotations.
type SimpleHead struct {
	Version  string `json:"apiVersion"`
	Kind     string `json:"kind,omitempty"`
	Metadata *struct {
		Name        string            `json:"name"`
		Namespace   string            `json:"namespace"`
		Annotations map[string]string `json:"annotations"`
	} `json:"metadata,omitempty"`
}

// Manifest pairs a rendered document with its parsed head.
type Manifest struct {
	Name    string
	Content string
	Head    *SimpleHead
}

var sep = "\n---"

// SplitManifests takes a string of form
//
//	---
//	# Source: first.yaml
//	metadata:
//	...
//	---
//	# Source: second.yaml
//	...
//
// and returns a map of filename -> content, keyed "manifest-<N>" in document
// order, so downstream tooling that greps for "# Source:" comments keeps
// working.
func SplitManifests(bigFile string) map[string]string {
	bigFileTmp := strings.TrimSpace(bigFile)
	docs := strings.Split(bigFileTmp, sep)
	res := map[string]string{}
	n := 0
	for _, d := range docs {
		d = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(d), "---"))
		if d == "" {
			continue
		}
		res[fmt.Sprintf("manifest-%d", n)] = d
		n++
	}
	return res
}

// BySplitManifestsOrder sorts the "manifest-%d" keys SplitManifests produces
// by their numeric suffix rather than lexically ("manifest-10" < "manifest-2").
type BySplitManifestsOrder []string

func (b BySplitManifestsOrder) Len() int      { return len(b) }
func (b BySplitManifestsOrder) Swap(i, j int) { b[i], b[j] = b[j], b[i] }
func (b BySplitManifestsOrder) Less(i, j int) bool {
	a, _ := strconv.Atoi(strings.TrimPrefix(b[i], "manifest-"))
	c, _ := strconv.Atoi(strings.TrimPrefix(b[j], "manifest-"))
	return a < c
}

var _ sort.Interface = BySplitManifestsOrder(nil)

// isPartial reports whether a source path names a partial, per convention
// a leading underscore in the base filename.
func isPartial(p string) bool { return strings.HasPrefix(path.Base(p), "_") }

// waveOf reads the wave annotation, defaulting to 0.
func waveOf(h *SimpleHead) int {
	if h.Metadata == nil {
		return 0
	}
	w, err := strconv.Atoi(h.Metadata.Annotations[release.WaveAnnotation])
	if err != nil {
		return 0
	}
	return w
}

func nameOf(h *SimpleHead) string {
	if h.Metadata == nil {
		return ""
	}
	return h.Metadata.Name
}
