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

package driver

// labels is a map of Secret/ConfigMap label values used for selection.
type labels map[string]string

func (lbs labels) match(set labels) bool {
	for k, v := range set {
		if value, ok := lbs[k]; !ok || value != v {
			return false
		}
	}
	return true
}
