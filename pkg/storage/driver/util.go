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

package driver

import "strings"

// systemLabels are the label keys reserved by the storage layer (not
// configurable by the caller): name, owner, status and version are
// stamped onto every Secret/ConfigMap; createdAt and modifiedAt are
// reserved but not stamped.
var systemLabels = map[string]bool{
	"name":       true,
	"owner":      true,
	"status":     true,
	"version":    true,
	"createdAt":  true,
	"modifiedAt": true,
}

// GetSystemLabels returns the set of label keys reserved by the storage
// layer itself.
func GetSystemLabels() map[string]bool {
	return systemLabels
}

// isSystemLabel reports whether label is one of the reserved keys,
// case-sensitively (mixed case, e.g. "NaMe", is not reserved).
func isSystemLabel(label string) bool {
	return systemLabels[label]
}

// filterSystemLabels strips any reserved keys out of a caller-supplied
// label set before it is merged onto a stored object.
func filterSystemLabels(lbs map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range lbs {
		if !isSystemLabel(k) {
			out[k] = v
		}
	}
	return out
}

// ContainsSystemLabels reports whether lbs includes any reserved key.
func ContainsSystemLabels(lbs map[string]string) bool {
	for k := range lbs {
		if isSystemLabel(k) {
			return true
		}
	}
	return false
}

func releaseKey(name string, revision uint32) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(".v")
	b.WriteString(itoa(int(revision)))
	return b.String()
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}
