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
	"errors"
	"fmt"
	"strings"
	"time"

	"sherpack.sh/sherpack/pkg/pack"
	"sherpack.sh/sherpack/pkg/release"
	"sherpack.sh/sherpack/pkg/releaseutil"
	"sherpack.sh/sherpack/pkg/resolver"
	"sherpack.sh/sherpack/pkg/storage/driver"
)

// InstallOptions parameterizes one install transaction.
type InstallOptions struct {
	ReleaseName string
	Namespace   string
	Overlays    []ValueOverlay

	Wait           bool
	Timeout        time.Duration
	Atomic         bool
	ForceCRDUpdate bool
	SkipCRDs       bool
	DryRun         DryRunStrategy
}

// Install runs one install transaction end to end: validate the name, materialize
// the locked dependency tree, compose and validate values, render, install
// CRDs, run pre-install hooks, apply the generic manifest set in wave
// order, run post-install hooks, and persist the resulting Release as
// Deployed (or Failed, on any error along the way).
//
// root must already have its metadata and templates loaded (via
// c.PackStore); lock is the Resolver's output for root's dependency
// graph, or nil for a pack with no dependencies. When opts.Atomic is set,
// a failure while installing resources also deletes the generic resources
// of the render (in reverse creation-order); the release record itself
// stays in Failed state.
func (c *Configuration) Install(ctx context.Context, root *pack.Pack, lock *resolver.LockFile, opts InstallOptions) (*release.Release, error) {
	if err := ValidateReleaseName(opts.ReleaseName); err != nil {
		return nil, err
	}
	c.init()

	unlock := c.namespacedLock(opts.ReleaseName)
	defer unlock()

	hist, err := c.Storage.History(opts.ReleaseName)
	if err != nil && !errors.Is(err, driver.ErrReleaseNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}
	for _, r := range hist {
		if r.State == release.StatusDeployed || r.State.IsPending() {
			return nil, ErrReleaseExists
		}
	}

	if lock != nil {
		if err := c.MaterializeDependencies(ctx, root, lock); err != nil {
			return nil, err
		}
	}

	rendered, err := c.Render(root, RenderOptions{
		ReleaseName: opts.ReleaseName,
		Namespace:   opts.Namespace,
		Revision:    1,
		IsInstall:   true,
		Overlays:    opts.Overlays,
	})
	if err != nil {
		return nil, err
	}

	rel := &release.Release{
		Name:             opts.ReleaseName,
		Namespace:        opts.Namespace,
		Revision:         1,
		State:            release.StatusPendingInstall,
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

	if err := c.installResources(root, rendered, opts); err != nil {
		rel.State = release.StatusFailed
		rel.UpdatedAt = time.Now()
		_ = c.Storage.Update(rel)

		if opts.Atomic {
			resources, buildErr := c.buildGeneric(rendered.Generic)
			var rollbackErr error
			if buildErr == nil {
				_, errs := c.UninstallWaves(resources)
				if len(errs) > 0 {
					rollbackErr = fmt.Errorf("%v", errs)
				}
			} else {
				rollbackErr = buildErr
			}
			return rel, &AtomicUpgradeFailedError{OriginalError: err, RollbackError: rollbackErr}
		}
		return rel, err
	}

	rel.State = release.StatusDeployed
	rel.UpdatedAt = time.Now()
	if err := c.Storage.Update(rel); err != nil {
		return rel, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}
	return rel, nil
}

// installResources installs CRDs, runs pre-install hooks, applies the
// generic manifest set wave by wave, and runs post-install hooks.
func (c *Configuration) installResources(root *pack.Pack, rendered *RenderResult, opts InstallOptions) error {
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

	if err := c.ExecHooks(rendered.Hooks, release.HookPreInstall, opts.Timeout); err != nil {
		return err
	}

	resources, err := c.buildGeneric(rendered.Generic)
	if err != nil {
		return err
	}
	if _, err := c.ApplyWaves(resources, ApplyOptions{Wait: opts.Wait, Timeout: opts.Timeout}); err != nil {
		return err
	}

	return c.ExecHooks(rendered.Hooks, release.HookPostInstall, opts.Timeout)
}

// joinGeneric reassembles a RenderResult's generic manifest set into the
// single document stream returned as Release.RenderedManifest (and shown
// verbatim for dry-run installs).
func joinGeneric(generic []releaseutil.Manifest) string {
	var b strings.Builder
	for _, m := range generic {
		b.WriteString("---\n")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
