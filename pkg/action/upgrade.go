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
	"context"
	"fmt"
	"strings"
	"time"

	"sherpack.sh/sherpack/pkg/kube"
	"sherpack.sh/sherpack/pkg/pack"
	"sherpack.sh/sherpack/pkg/release"
	"sherpack.sh/sherpack/pkg/releaseutil"
	"sherpack.sh/sherpack/pkg/resolver"
)

// ValuesMode selects how Upgrade seeds the values composition stack from
// the currently deployed revision: reuse-values starts from the prior
// applied values,
// reset-values (ignore prior)."
type ValuesMode int

const (
	// ResetValues ignores the prior revision's applied values entirely;
	// the new revision's values come only from the pack's own defaults
	// plus opts.Overlays, same as Install.
	ResetValues ValuesMode = iota
	// ReuseValues seeds the composition with the prior revision's applied
	// values as a base layer, with opts.Overlays merged on top.
	ReuseValues
)

// UpgradeOptions parameterizes one upgrade transaction.
type UpgradeOptions struct {
	Namespace string
	Overlays  []ValueOverlay
	Values    ValuesMode

	Wait           bool
	Timeout        time.Duration
	Atomic         bool
	ForceCRDUpdate bool
	SkipCRDs       bool
	ForceConflicts bool
	MaxHistory     int
	DryRun         DryRunStrategy
}

// Upgrade renders root against the current Deployed release's successor
// revision, reconciles the cluster from the previous revision's resources
// to the new ones wave by wave, and on any failure while upgrading
// resources (CRD install, hooks or the wave apply) with opts.Atomic set,
// captures diagnostics *before* rolling back to the
// previous revision. Rollback deletes may destroy the evidence, so the
// capture must come first.
func (c *Configuration) Upgrade(ctx context.Context, releaseName string, root *pack.Pack, lock *resolver.LockFile, opts UpgradeOptions) (*release.Release, error) {
	if err := ValidateReleaseName(releaseName); err != nil {
		return nil, err
	}
	c.init()

	unlock := c.namespacedLock(releaseName)
	defer unlock()

	previous, err := c.Storage.Deployed(releaseName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}

	if lock != nil {
		if err := c.MaterializeDependencies(ctx, root, lock); err != nil {
			return nil, err
		}
	}

	rendered, err := c.Render(root, RenderOptions{
		ReleaseName: releaseName,
		Namespace:   opts.Namespace,
		Revision:    int(previous.Revision) + 1,
		IsUpgrade:   true,
		Overlays:    upgradeOverlays(previous, opts),
	})
	if err != nil {
		return nil, err
	}

	rel := &release.Release{
		Name:             releaseName,
		Namespace:        opts.Namespace,
		Revision:         previous.Revision + 1,
		State:            release.StatusPendingUpgrade,
		Hooks:            rendered.Hooks,
		RenderedManifest: joinGeneric(rendered.Generic),
		AppliedValues:    rendered.Values,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if root.Metadata != nil {
		rel.PackMetadata = *root.Metadata
	}
	for _, p := range rendered.Provenance {
		rel.ValuesProvenance = append(rel.ValuesProvenance, release.ValuesProvenance{Source: p.Source, Keys: p.Keys})
	}

	if opts.DryRun != DryRunNone {
		return rel, nil
	}

	if err := c.Storage.Create(rel); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}

	start := time.Now()
	if err := c.upgradeResources(root, previous, rendered, rel, opts); err != nil {
		rel.State = release.StatusFailed
		rel.UpdatedAt = time.Now()
		_ = c.Storage.Update(rel)

		if !opts.Atomic {
			return rel, err
		}

		originalResources, buildErr := c.rebuildPrevious(previous)
		var diagnostics *DiagnosticBundle
		if buildErr == nil {
			diagnostics = c.CaptureDiagnostics(originalResources)
		}

		rollbackErr := c.rollbackToRevision(previous, rel)

		return rel, &AtomicUpgradeFailedError{
			OriginalError: err,
			Diagnostics:   diagnostics,
			RollbackError: rollbackErr,
			Elapsed:       time.Since(start),
		}
	}

	rel.State = release.StatusDeployed
	rel.UpdatedAt = time.Now()
	if err := c.Storage.Update(rel); err != nil {
		return rel, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}

	previous.State = release.StatusSuperseded
	previous.UpdatedAt = time.Now()
	if err := c.Storage.Update(previous); err != nil {
		c.logger().Warn("failed to mark previous revision superseded", "release", releaseName, "error", err)
	}

	if opts.MaxHistory > 0 {
		if err := c.Storage.RemoveLeastRecent(releaseName, opts.MaxHistory); err != nil {
			c.logger().Warn("failed to prune release history", "release", releaseName, "error", err)
		}
	}

	return rel, nil
}

// upgradeResources installs any new/changed CRDs, runs pre-upgrade hooks,
// reconciles the generic manifest set against the previous revision's, and
// runs post-upgrade hooks.
func (c *Configuration) upgradeResources(root *pack.Pack, previous *release.Release, rendered *RenderResult, rel *release.Release, opts UpgradeOptions) error {
	if !opts.SkipCRDs {
		crds := root.CRDObjects()
		if len(crds) > 0 {
			diffs, err := c.DiffCRDs(crds)
			if err != nil {
				return err
			}
			if err := c.InstallCRDs(diffs, crds, opts.ForceCRDUpdate); err != nil {
				return err
			}
		}
	}

	if err := c.ExecHooks(rendered.Hooks, release.HookPreUpgrade, opts.Timeout); err != nil {
		return err
	}

	original, err := c.rebuildPrevious(previous)
	if err != nil {
		return err
	}
	target, err := c.buildGeneric(rendered.Generic)
	if err != nil {
		return err
	}
	if _, err := c.UpdateWaves(original, target, ApplyOptions{Wait: opts.Wait, Timeout: opts.Timeout, ForceConflicts: opts.ForceConflicts}); err != nil {
		return err
	}

	return c.ExecHooks(rendered.Hooks, release.HookPostUpgrade, opts.Timeout)
}

// rebuildPrevious re-parses a previously-recorded release's stored
// manifest into a ResourceList, the form UpdateWaves needs as its
// reconciliation baseline. Hook manifests are excluded from
// Release.RenderedManifest at render time — only the generic apply set
// persists cluster state that upgrade reconciles against.
func (c *Configuration) rebuildPrevious(previous *release.Release) (kube.ResourceList, error) {
	resources, err := c.KubeClient.Build(strings.NewReader(previous.RenderedManifest), false)
	if err != nil {
		return nil, fmt.Errorf("%w: rebuilding revision %d: %v", ErrApply, previous.Revision, err)
	}
	return resources.SortByCreationOrder(), nil
}

// upgradeOverlays prepends the prior revision's applied values as the base
// overlay when opts.Values is ReuseValues, so ComposeValues merges it over
// the pack's own defaults and under opts.Overlays. ResetValues (the default) leaves the
// composition identical to Install's.
func upgradeOverlays(previous *release.Release, opts UpgradeOptions) []ValueOverlay {
	if opts.Values != ReuseValues || len(previous.AppliedValues) == 0 {
		return opts.Overlays
	}
	base := ValueOverlay{Source: "reuse-values", Values: previous.AppliedValues}
	return append([]ValueOverlay{base}, opts.Overlays...)
}

// Diff renders root as the candidate next revision for releaseName and
// returns its structural diff against the currently deployed revision's
// stored manifest, touching neither the cluster nor Storage.
func (c *Configuration) Diff(ctx context.Context, releaseName string, root *pack.Pack, lock *resolver.LockFile, opts UpgradeOptions) ([]ManifestDiff, error) {
	if err := ValidateReleaseName(releaseName); err != nil {
		return nil, err
	}
	c.init()

	previous, err := c.Storage.Deployed(releaseName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}

	if lock != nil {
		if err := c.MaterializeDependencies(ctx, root, lock); err != nil {
			return nil, err
		}
	}

	rendered, err := c.Render(root, RenderOptions{
		ReleaseName: releaseName,
		Namespace:   opts.Namespace,
		Revision:    int(previous.Revision) + 1,
		IsUpgrade:   true,
		Overlays:    upgradeOverlays(previous, opts),
	})
	if err != nil {
		return nil, err
	}

	_, previousGeneric, err := releaseutil.SortManifests(releaseutil.SplitManifests(previous.RenderedManifest), releaseutil.InstallOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing revision %d: %v", ErrApply, previous.Revision, err)
	}

	return DiffManifests(previousGeneric, rendered.Generic), nil
}
