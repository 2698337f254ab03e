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

import "fmt"

// LoadError reports why a pack failed to load.
type LoadError struct {
	Reason string
	Path   string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("pack load error: %s (%s)", e.Reason, e.Path)
	}
	return fmt.Sprintf("pack load error: %s", e.Reason)
}

// NewLoadError builds a LoadError for a given offending path.
func NewLoadError(reason, path string) *LoadError {
	return &LoadError{Reason: reason, Path: path}
}
