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

	"k8s.io/apimachinery/pkg/runtime"

	"sherpack.sh/sherpack/pkg/kube"
	"sherpack.sh/sherpack/pkg/release"
)

// Status returns the current Deployed release record for name, or the
// named revision when revision is non-zero.
func (c *Configuration) Status(name string, revision uint32) (*release.Release, error) {
	if revision != 0 {
		rel, err := c.Storage.Get(name, revision)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRevisionNotFound, err)
		}
		return rel, nil
	}
	rel, err := c.Storage.Deployed(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}
	return rel, nil
}

// LiveResources returns the live cluster objects backing rel's recorded
// manifest, keyed by kind, for a status call that wants to show drift
// rather than only the stored record. Returns nil if the configured
// KubeClient cannot report live resources.
func (c *Configuration) LiveResources(rel *release.Release) (map[string][]runtime.Object, error) {
	related, ok := c.KubeClient.(kube.InterfaceResources)
	if !ok {
		return nil, nil
	}
	resources, err := c.rebuildPrevious(rel)
	if err != nil {
		return nil, err
	}
	return related.Get(resources, true)
}

// History returns every revision of name, oldest first.
func (c *Configuration) History(name string) ([]*release.Release, error) {
	hist, err := c.Storage.History(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}
	return hist, nil
}

// List returns every release record matching filter, across all names,
// the backing call behind a `list` surface.
func (c *Configuration) List(filter func(*release.Release) bool) ([]*release.Release, error) {
	all, err := c.Storage.List(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}
	return all, nil
}
