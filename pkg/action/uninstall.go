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
	"time"

	"sherpack.sh/sherpack/pkg/release"
)

// UninstallOptions parameterizes an uninstall transaction.
type UninstallOptions struct {
	Timeout time.Duration
	// KeepHistory, when true, leaves every revision record in Storage
	// instead of purging them; only the current one is marked Uninstalled.
	KeepHistory bool
}

// Uninstall runs pre-delete hooks, deletes the current Deployed release's
// resources in reverse creation-order (honoring ResourceKeepPolicy), runs
// post-delete hooks, and marks the release Uninstalled.
func (c *Configuration) Uninstall(releaseName string, opts UninstallOptions) (*release.Release, error) {
	if err := ValidateReleaseName(releaseName); err != nil {
		return nil, err
	}
	c.init()

	unlock := c.namespacedLock(releaseName)
	defer unlock()

	current, err := c.Storage.Deployed(releaseName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}

	current.State = release.StatusUninstalling
	current.UpdatedAt = time.Now()
	if err := c.Storage.Update(current); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}

	if err := c.ExecHooks(current.Hooks, release.HookPreDelete, opts.Timeout); err != nil {
		return current, err
	}

	resources, err := c.rebuildPrevious(current)
	if err != nil {
		return current, err
	}
	if _, errs := c.UninstallWaves(resources); len(errs) > 0 {
		return current, fmt.Errorf("%w: %v", ErrApply, errs)
	}

	if err := c.ExecHooks(current.Hooks, release.HookPostDelete, opts.Timeout); err != nil {
		return current, err
	}

	current.State = release.StatusUninstalled
	current.UpdatedAt = time.Now()
	if err := c.Storage.Update(current); err != nil {
		return current, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}

	if !opts.KeepHistory {
		hist, err := c.Storage.History(releaseName)
		if err != nil {
			return current, fmt.Errorf("%w: %v", ErrLifecycle, err)
		}
		for _, r := range hist {
			if _, err := c.Storage.Delete(releaseName, r.Revision); err != nil {
				c.logger().Warn("failed to purge release revision", "release", releaseName, "revision", r.Revision, "error", err)
			}
		}
	}

	return current, nil
}
