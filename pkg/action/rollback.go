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

// RollbackOptions parameterizes a rollback transaction.
type RollbackOptions struct {
	// ToRevision selects the target revision explicitly. Zero means "the
	// revision immediately before the current Deployed one".
	ToRevision uint32

	Wait           bool
	Timeout        time.Duration
	Force          bool
	ForceConflicts bool
}

// Rollback reconciles the cluster from the current Deployed release to a
// prior revision's recorded manifest, creating a new revision whose
// content matches the target revision's.
func (c *Configuration) Rollback(releaseName string, opts RollbackOptions) (*release.Release, error) {
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

	target, err := c.resolveRollbackTarget(releaseName, current, opts.ToRevision)
	if err != nil {
		return nil, err
	}

	newRel := &release.Release{
		Name:             releaseName,
		Namespace:        current.Namespace,
		Revision:         current.Revision + 1,
		State:            release.StatusPendingRollback,
		Hooks:            target.Hooks,
		RenderedManifest: target.RenderedManifest,
		AppliedValues:    target.AppliedValues,
		ValuesProvenance: target.ValuesProvenance,
		PackMetadata:     target.PackMetadata,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
		Description:      fmt.Sprintf("Rollback to %d", target.Revision),
	}
	if err := c.Storage.Create(newRel); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}

	if err := c.rollbackResources(current, newRel, opts); err != nil {
		newRel.State = release.StatusFailed
		newRel.UpdatedAt = time.Now()
		_ = c.Storage.Update(newRel)
		return newRel, err
	}

	newRel.State = release.StatusDeployed
	newRel.UpdatedAt = time.Now()
	if err := c.Storage.Update(newRel); err != nil {
		return newRel, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}

	current.State = release.StatusSuperseded
	current.UpdatedAt = time.Now()
	if err := c.Storage.Update(current); err != nil {
		c.logger().Warn("failed to mark rolled-back-from revision superseded", "release", releaseName, "error", err)
	}

	return newRel, nil
}

func (c *Configuration) resolveRollbackTarget(releaseName string, current *release.Release, toRevision uint32) (*release.Release, error) {
	if toRevision != 0 {
		target, err := c.Storage.Get(releaseName, toRevision)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRevisionNotFound, err)
		}
		return target, nil
	}

	hist, err := c.Storage.History(releaseName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}
	var best *release.Release
	for _, r := range hist {
		if r.Revision >= current.Revision {
			continue
		}
		if best == nil || r.Revision > best.Revision {
			best = r
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no revision before %d", ErrRevisionNotFound, current.Revision)
	}
	return best, nil
}

func (c *Configuration) rollbackResources(current, target *release.Release, opts RollbackOptions) error {
	if err := c.ExecHooks(target.Hooks, release.HookPreRollback, opts.Timeout); err != nil {
		return err
	}

	original, err := c.rebuildPrevious(current)
	if err != nil {
		return err
	}
	targetResources, err := c.rebuildPrevious(target)
	if err != nil {
		return err
	}
	if _, err := c.UpdateWaves(original, targetResources, ApplyOptions{Wait: opts.Wait, Timeout: opts.Timeout, ForceConflicts: opts.ForceConflicts}); err != nil {
		return err
	}

	return c.ExecHooks(target.Hooks, release.HookPostRollback, opts.Timeout)
}

// rollbackToRevision is the internal counterpart Upgrade's atomic failure
// path calls: it reconciles the cluster back to previous's manifest
// without recording a new revision, since the failed upgrade's own
// revision already captures the attempt.
func (c *Configuration) rollbackToRevision(previous, failed *release.Release) error {
	target, err := c.rebuildPrevious(previous)
	if err != nil {
		return err
	}
	current, err := c.rebuildPrevious(failed)
	if err != nil {
		return err
	}
	_, err = c.UpdateWaves(current, target, ApplyOptions{Wait: true})
	return err
}
