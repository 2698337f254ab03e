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
	"bytes"
	"context"
	"fmt"

	"sherpack.sh/sherpack/pkg/engine"
	"sherpack.sh/sherpack/pkg/pack"
	"sherpack.sh/sherpack/pkg/release"
	"sherpack.sh/sherpack/pkg/releaseutil"
	"sherpack.sh/sherpack/pkg/resolver"
)

// RenderResult is the output of a full resolve+render pass: the manifest
// stream already split into hooks and the generic apply set and ordered by
// the creation-order table, plus the root pack's notes.
type RenderResult struct {
	Hooks    []*release.Hook
	Generic  []releaseutil.Manifest
	Notes    string
	Values   map[string]interface{}
	Provenance []Provenance
}

// MaterializeDependencies fetches and attaches every dependency a LockFile
// names to root, so the Template Engine sees the same subchart tree the
// Resolver locked. Skipped dependencies are
// left unattached; their values section is still scoped out by the Engine
// because no pack.Pack exists to receive it.
func (c *Configuration) MaterializeDependencies(ctx context.Context, root *pack.Pack, lock *resolver.LockFile) error {
	for _, dep := range lock.Dependencies {
		if dep.Skipped() {
			continue
		}
		backend, err := c.resolveBackend(dep.Repository)
		if err != nil {
			return fmt.Errorf("materializing %q: %w", dep.Name, err)
		}
		sub, err := resolver.LoadLockedPack(ctx, backend, dep)
		if err != nil {
			return fmt.Errorf("materializing %q: %w", dep.Name, err)
		}
		root.AddDependency(sub)
	}
	return nil
}

// RenderOptions carries the render-time context that isn't part of the
// pack tree: the release identity, the transaction's install/upgrade flag,
// and the value overlays. The target cluster's Capabilities come from the
// Configuration, not from here.
type RenderOptions struct {
	ReleaseName      string
	Namespace        string
	Revision         int
	IsInstall        bool
	IsUpgrade        bool
	Overlays         []ValueOverlay
}

// Render composes values, validates them against root's schema, runs the
// Template Engine, and splits the resulting manifest stream into hooks and
// the ordered apply set.
func (c *Configuration) Render(root *pack.Pack, opts RenderOptions) (*RenderResult, error) {
	values, provenance, err := ComposeValues(root, opts.Overlays)
	if err != nil {
		return nil, err
	}
	if err := ValidateAgainstSchema(root.Schema, values); err != nil {
		return nil, err
	}

	report, err := c.Engine.Render(root, values, engine.Options{
		Release: engine.ReleaseContext{
			Name:      opts.ReleaseName,
			Namespace: opts.Namespace,
			Revision:  opts.Revision,
			IsInstall: opts.IsInstall,
			IsUpgrade: opts.IsUpgrade,
			Service:   "sherpack",
		},
		Capabilities:  c.Capabilities,
		Deterministic: true,
	})
	if err != nil {
		return nil, err
	}

	if c.PostRenderer != nil {
		rendered, err := c.PostRenderer.Run(joinManifests(report.Manifests))
		if err != nil {
			return nil, fmt.Errorf("post-render: %w", err)
		}
		report.Manifests = releaseutil.SplitManifests(rendered.String())
	}

	hooks, generic, err := releaseutil.SortManifests(report.Manifests, releaseutil.InstallOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApply, err)
	}

	return &RenderResult{
		Hooks:      hooks,
		Generic:    generic,
		Notes:      rootNotes(report.Notes),
		Values:     values,
		Provenance: provenance,
	}, nil
}

// joinManifests reassembles a Render report's per-template output into the
// single "---"-joined document stream a PostRenderer expects, mirroring the
// form SplitManifests parses back out of.
func joinManifests(manifests map[string]string) *bytes.Buffer {
	var b bytes.Buffer
	for path, content := range manifests {
		b.WriteString("---\n# Source: ")
		b.WriteString(path)
		b.WriteString("\n")
		b.WriteString(content)
		b.WriteString("\n")
	}
	return &b
}

// rootNotes returns the root pack's own NOTES.txt output, the only notes
// template sherpack surfaces to the caller; subchart notes stay internal.
func rootNotes(notes map[string]string) string {
	if n, ok := notes["NOTES.txt"]; ok {
		return n
	}
	return ""
}
