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

package kube

import (
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/cli-runtime/pkg/resource"
	"k8s.io/client-go/discovery"

	"sherpack.sh/sherpack/pkg/releaseutil"
)

// ResourceList is an ordered collection of the resources produced by
// Build. Order matters: callers rely on it to reflect wave and
// creation-order placement rather than manifest input order.
type ResourceList []*resource.Info

// Append adds an Info, preserving existing order.
func (r *ResourceList) Append(i *resource.Info) {
	*r = append(*r, i)
}

// Visit calls fn once for every Info in the list, stopping at the first
// error returned.
func (r ResourceList) Visit(fn resource.VisitorFunc) error {
	for _, i := range r {
		if err := fn(i, nil); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the Info in the list matching the name, namespace and
// GroupVersionKind of needle, or nil if none is found.
func (r ResourceList) Get(needle *resource.Info) *resource.Info {
	for _, i := range r {
		if r.objectsMatch(i, needle) {
			return i
		}
	}
	return nil
}

func (r ResourceList) objectsMatch(a, b *resource.Info) bool {
	return a.Name == b.Name && a.Namespace == b.Namespace && a.Mapping.GroupVersionKind == b.Mapping.GroupVersionKind
}

// Contains reports whether needle is present in the list.
func (r ResourceList) Contains(needle *resource.Info) bool {
	return r.Get(needle) != nil
}

// Difference returns the subset of r whose members are not present in o.
func (r ResourceList) Difference(o ResourceList) ResourceList {
	var out ResourceList
	for _, i := range r {
		if !o.Contains(i) {
			out = append(out, i)
		}
	}
	return out
}

// Intersect returns the subset of r whose members are also present in o.
func (r ResourceList) Intersect(o ResourceList) ResourceList {
	var out ResourceList
	for _, i := range r {
		if o.Contains(i) {
			out = append(out, i)
		}
	}
	return out
}

// Filter keeps only the Infos for which fn returns true.
func (r ResourceList) Filter(fn func(*resource.Info) bool) ResourceList {
	var out ResourceList
	for _, i := range r {
		if fn(i) {
			out = append(out, i)
		}
	}
	return out
}

// SortByCreationOrder orders the list ascending using the same
// kind-and-wave table applied to pre-install manifests.
func (r ResourceList) SortByCreationOrder() ResourceList {
	return sortResourceList(r, false)
}

// SortByDeletionOrder orders the list descending using the same table,
// used when tearing down a release.
func (r ResourceList) SortByDeletionOrder() ResourceList {
	return sortResourceList(r, true)
}

func sortResourceList(r ResourceList, reverse bool) ResourceList {
	type pair struct {
		info *resource.Info
		kind string
		wave int
	}
	pairs := make([]pair, len(r))
	for idx, i := range r {
		wave := 0
		if i.Object != nil {
			if acc, err := meta.Accessor(i.Object); err == nil {
				if w, ok := acc.GetAnnotations()["sherpack.sh/wave"]; ok {
					fmt.Sscanf(w, "%d", &wave)
				}
			}
		}
		pairs[idx] = pair{info: i, kind: i.Mapping.GroupVersionKind.Kind, wave: wave}
	}
	less := func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.wave != b.wave {
			if reverse {
				return a.wave > b.wave
			}
			return a.wave < b.wave
		}
		wa, wb := releaseutil.KindWeight(a.kind), releaseutil.KindWeight(b.kind)
		if wa != wb {
			if reverse {
				return wa > wb
			}
			return wa < wb
		}
		return false
	}
	sort.SliceStable(pairs, less)
	out := make(ResourceList, len(pairs))
	for idx, p := range pairs {
		out[idx] = p.info
	}
	return out
}

// GroupVersionKinds returns the distinct GVKs present in the list.
func (r ResourceList) GroupVersionKinds() []schema.GroupVersionKind {
	seen := map[schema.GroupVersionKind]bool{}
	var out []schema.GroupVersionKind
	for _, i := range r {
		gvk := i.Mapping.GroupVersionKind
		if !seen[gvk] {
			seen[gvk] = true
			out = append(out, gvk)
		}
	}
	return out
}

// Result tracks the resources affected by a Create, Update or Delete call,
// mirroring the wave-ordered categories the lifecycle engine reports back
// to the user.
type Result struct {
	Created ResourceList
	Updated ResourceList
	Deleted ResourceList
}

// MissingGetHeader is a table header for resources missing from the live
// cluster. Nothing in this module prints it.
const MissingGetHeader = "==> MISSING\nKIND\t\tNAME\n"

// discoveryClient is an alias for discovery.DiscoveryInterface.
type discoveryClient = discovery.DiscoveryInterface
