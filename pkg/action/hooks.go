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
	"strings"
	"time"

	"sherpack.sh/sherpack/pkg/kube"
	"sherpack.sh/sherpack/pkg/release"
)

// defaultHookTimeout bounds how long a single hook Job is awaited before
// it is considered failed.
const defaultHookTimeout = 5 * time.Minute

// ExecHooks runs every hook attached to event in ascending weight order
// (ties broken by the creation-order table), deleting each hook's resource
// according to its HookDeletePolicy before and after it runs.
//
// A hook whose Job does not reach Succeeded within timeout is reported as
// ErrHook; the caller (Install/Upgrade/Rollback) decides whether that
// aborts the transaction.
func (c *Configuration) ExecHooks(hooks []*release.Hook, event release.HookEvent, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultHookTimeout
	}
	for _, h := range hooks {
		if !h.HasEvent(event) {
			continue
		}
		if err := c.execOneHook(h, timeout); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrHook, event, h.Name, err)
		}
	}
	return nil
}

func (c *Configuration) execOneHook(h *release.Hook, timeout time.Duration) error {
	if h.ShouldDeleteOn(release.HookBeforeCreation) {
		if err := c.deleteHookResource(h); err != nil {
			return fmt.Errorf("deleting prior hook resource: %w", err)
		}
	}

	resources, err := c.KubeClient.Build(strings.NewReader(h.Manifest), true)
	if err != nil {
		return fmt.Errorf("building hook manifest: %w", err)
	}

	h.LastRun = release.HookExecution{StartedAt: time.Now(), Phase: release.HookPhaseRunning}

	if _, err := c.KubeClient.Create(resources, kube.ClientCreateOptionServerSideApply(true, false)); err != nil {
		h.LastRun.Phase = release.HookPhaseFailed
		h.LastRun.CompletedAt = time.Now()
		c.cleanupHook(h, resources, release.HookFailed)
		return err
	}

	if err := c.KubeClient.WatchUntilReady(resources, timeout); err != nil {
		h.LastRun.Phase = release.HookPhaseFailed
		h.LastRun.CompletedAt = time.Now()
		c.cleanupHook(h, resources, release.HookFailed)
		return err
	}

	h.LastRun.Phase = release.HookPhaseSucceeded
	h.LastRun.CompletedAt = time.Now()
	c.cleanupHook(h, resources, release.HookSucceeded)
	return nil
}

// cleanupHook deletes resources if h's delete policy calls for it given
// outcome, logging but not failing the transaction on a delete error —
// a leftover hook resource is recoverable by the next transaction's
// before-hook-creation policy, while failing here would mask the real
// outcome.
func (c *Configuration) cleanupHook(h *release.Hook, resources kube.ResourceList, outcome release.HookDeletePolicy) {
	if !h.ShouldDeleteOn(outcome) {
		return
	}
	if _, errs := c.KubeClient.Delete(resources); len(errs) > 0 {
		c.logger().Warn("failed to delete hook resource", "hook", h.Name, "errors", errs)
	}
}

func (c *Configuration) deleteHookResource(h *release.Hook) error {
	resources, err := c.KubeClient.Build(strings.NewReader(h.Manifest), false)
	if err != nil {
		return err
	}
	if _, errs := c.KubeClient.Delete(resources); len(errs) > 0 {
		return fmt.Errorf("%v", errs)
	}
	return nil
}
