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
	"time"
)

// GetWaiter returns a Waiter implementing the requested strategy. The
// status-watcher strategy requires live discovery against the target
// cluster, so constructing it can itself fail.
func (c *Client) GetWaiter(strategy WaitStrategy) (Waiter, error) {
	switch strategy {
	case "", LegacyStrategy:
		return newLegacyWaiter(c), nil
	case StatusWatcherStrategy, HookOnlyStrategy:
		return newStatusWaiter(c)
	default:
		return nil, fmt.Errorf("unknown wait strategy %q", strategy)
	}
}

// Wait implements Interface.Wait using the legacy polling strategy; callers
// wanting the status-watcher strategy should use GetWaiter directly via
// InterfaceWaitOptions.
func (c *Client) Wait(resources ResourceList, timeout time.Duration) error {
	w, err := c.GetWaiter(LegacyStrategy)
	if err != nil {
		return err
	}
	return w.Wait(resources, timeout)
}

// WaitWithJobs implements Interface.WaitWithJobs using the legacy polling
// strategy.
func (c *Client) WaitWithJobs(resources ResourceList, timeout time.Duration) error {
	w, err := c.GetWaiter(LegacyStrategy)
	if err != nil {
		return err
	}
	return w.WaitWithJobs(resources, timeout)
}

// WatchUntilReady blocks on hook resources completing, always via the
// status-watcher strategy since hook completion (Job/Pod terminal phase)
// is a kstatus-native concept the legacy waiter does not model.
func (c *Client) WatchUntilReady(resources ResourceList, timeout time.Duration) error {
	w, err := newStatusWaiter(c)
	if err != nil {
		return err
	}
	return w.WatchUntilReady(resources, timeout)
}
