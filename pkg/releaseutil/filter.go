/*
Copyright 2016 The Kubernetes Authors All rights reserved.

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

import "sherpack.sh/sherpack/pkg/release"

// Filter returns a list of releases that satisfy the predicate.
type Filter interface {
	Check(r *release.Release) bool
	Filter(rels []*release.Release) []*release.Release
}

// FilterFunc adapts a plain function into a Filter.
type FilterFunc func(r *release.Release) bool

func (fn FilterFunc) Check(r *release.Release) bool { return fn(r) }

func (fn FilterFunc) Filter(rels []*release.Release) []*release.Release {
	var out []*release.Release
	for _, r := range rels {
		if fn(r) {
			out = append(out, r)
		}
	}
	return out
}

// Any combines filters with a logical OR.
func Any(filters ...Filter) Filter {
	return FilterFunc(func(r *release.Release) bool {
		for _, f := range filters {
			if f.Check(r) {
				return true
			}
		}
		return false
	})
}

// All combines filters with a logical AND.
func All(filters ...Filter) Filter {
	return FilterFunc(func(r *release.Release) bool {
		for _, f := range filters {
			if !f.Check(r) {
				return false
			}
		}
		return true
	})
}

// StatusFilter filters by release state.
func StatusFilter(status release.Status) Filter {
	return FilterFunc(func(r *release.Release) bool { return r.State == status })
}
