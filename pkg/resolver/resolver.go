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

// Package resolver implements the Dependency Resolver:
// breadth-first version constraint solving over a pluggable Repository
// Backend, diamond and cycle detection, and deterministic lockfile
// generation. The walk is transitive, alias-aware, and refuses to pick a
// winner silently when two paths demand different versions of one name.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-multierror"

	"sherpack.sh/sherpack/pkg/archive"
	"sherpack.sh/sherpack/pkg/pack"
	"sherpack.sh/sherpack/pkg/pack/loader"
	"sherpack.sh/sherpack/pkg/repo"
)

// SkipReason records why a dependency was filtered out of resolution.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipStaticDisabled SkipReason = "StaticDisabled"
	SkipPolicyNever    SkipReason = "PolicyNever"
	SkipCondition      SkipReason = "ConditionFalsy"
)

// ResolvedDependency is one entry of a lockfile.
type ResolvedDependency struct {
	Name               string
	Alias              string
	ConcreteVersion    string
	Repository         string
	ArchiveDigest      archive.Digest
	SourceType         pack.ResolveType
	ConditionEvaluated bool
	SkipReason         SkipReason
}

// nodeKey disambiguates two dependencies with the same Name but different
// Alias: each alias is an independent node and may hold its own version.
func (r ResolvedDependency) nodeKey() string {
	if r.Alias != "" {
		return r.Name + "#" + r.Alias
	}
	return r.Name
}

// Skipped reports whether this node was filtered rather than resolved.
func (r ResolvedDependency) Skipped() bool { return r.SkipReason != SkipNone }

// Policy controls what Verify tolerates between a lockfile and a re-fetch.
type Policy string

const (
	PolicyStrict      Policy = "Strict"
	PolicyVersionOnly Policy = "VersionOnly"
	PolicySemverPatch Policy = "SemverPatch"
	PolicySemverMinor Policy = "SemverMinor"
)

// LockFile is the deterministic record of a resolution.
type LockFile struct {
	PackYAMLDigest string
	Policy         Policy
	Dependencies   []ResolvedDependency
}

// ResolutionContext parameterizes a resolve: the values tree conditions
// are evaluated against, whether to evaluate conditions at all, and the
// tolerance policy stamped into the resulting lock.
type ResolutionContext struct {
	Values            map[string]interface{}
	EvaluateConditions bool
	Policy            Policy
}

// BackendResolver looks up the Backend to use for a given repository
// reference string (a URL, an "oci://" reference, or a named alias
// resolved through process-wide repository configuration).
type BackendResolver func(repository string) (repo.Backend, error)

// DiamondConflictError is returned when the same dependency name resolves
// to two different concrete versions on two different paths through the
// graph.
type DiamondConflictError struct {
	Name     string
	Versions []string
	Paths    [][]string
}

func (e *DiamondConflictError) Error() string {
	return fmt.Sprintf("diamond conflict on %q: versions %v", e.Name, e.Versions)
}

// CycleDetectedError is returned when the dependency graph contains a cycle.
type CycleDetectedError struct {
	Path []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %v", e.Path)
}

// Resolver resolves a root pack's dependency tree against a pluggable
// repository backend.
type Resolver struct {
	Backend BackendResolver
}

func New(backend BackendResolver) *Resolver {
	return &Resolver{Backend: backend}
}

type pendingNode struct {
	spec        pack.DependencySpec
	constraints []string   // distinct version constraints, one per path that named this node
	provenance  [][]string // each path that contributed a constraint
}

// addConstraint records a constraint if an identical one is not already
// held; the set stays small so a linear scan is fine.
func (n *pendingNode) addConstraint(c string) {
	for _, have := range n.constraints {
		if have == c {
			return
		}
	}
	n.constraints = append(n.constraints, c)
}

// unionConstraint joins a constraint set into a single expression.
// Comma-separated constraints are ANDed by the semver parser, so the
// joined string matches exactly the versions satisfying every member.
func unionConstraint(constraints []string) string {
	return strings.Join(constraints, ", ")
}

// resolvePassLimit bounds the restart loop in Resolve. Each restart pins
// at least one node to a strictly lower version, so any real graph
// converges far earlier; the bound only guards against a misbehaving
// backend.
const resolvePassLimit = 10

// Resolve locks the dependency graph: filter, walk breadth-first
// maintaining a constraint-set-per-name map, select the highest version
// satisfying the union of each name's constraints, detect diamonds and
// cycles, fetch transitively, and lock.
//
// A constraint discovered late in the walk can narrow the union for a
// node whose archive was already fetched under a looser pick. When that
// happens the pass restarts with the accumulated constraint sets carried
// over, so the next pass selects the narrowed version from the start.
// DiamondConflict is reserved for constraint sets no version satisfies
// together even though each path's own constraint is satisfiable.
func (r *Resolver) Resolve(ctx context.Context, root *pack.Pack, rc ResolutionContext) (*LockFile, error) {
	carry := map[string][]string{}
	for pass := 0; pass < resolvePassLimit; pass++ {
		lock, again, err := r.resolvePass(ctx, root, rc, carry)
		if err != nil {
			return nil, err
		}
		if !again {
			return lock, nil
		}
	}
	return nil, fmt.Errorf("resolution did not converge after %d passes", resolvePassLimit)
}

func (r *Resolver) resolvePass(ctx context.Context, root *pack.Pack, rc ResolutionContext, carry map[string][]string) (*LockFile, bool, error) {
	type frame struct {
		p    *pack.Pack
		path []string // pack names from root to p, inclusive, for cycle reporting
	}

	nodes := map[string]*pendingNode{}
	resolvedVersion := map[string]string{}
	resolvedDigest := map[string]archive.Digest{}
	resolvedRepo := map[string]string{}
	resolvedType := map[string]pack.ResolveType{}
	order := []string{}
	skipped := map[string]SkipReason{}
	skippedSpec := map[string]pack.DependencySpec{}
	fetchedOnce := map[string]bool{} // nodeKey -> already walked its own dependencies

	var errs *multierror.Error

	// mergeCarry folds this pass's constraint sets into carry before a
	// restart, so the next pass starts from the narrowed unions.
	mergeCarry := func() {
		for key, n := range nodes {
			kept := append([]string{}, carry[key]...)
			for _, c := range n.constraints {
				dup := false
				for _, have := range kept {
					if have == c {
						dup = true
						break
					}
				}
				if !dup {
					kept = append(kept, c)
				}
			}
			carry[key] = kept
		}
	}

	queue := []frame{{p: root, path: []string{root.Name()}}}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]

		for _, dep := range f.p.Metadata.Dependencies {
			key := dep.Name
			if dep.Alias != "" {
				key = dep.Name + "#" + dep.Alias
			}
			reason := r.filter(dep, rc)
			if reason != SkipNone {
				skipped[key] = reason
				skippedSpec[key] = dep
				continue
			}
			for _, ancestor := range f.path {
				if ancestor == dep.Name {
					return nil, false, &CycleDetectedError{Path: append(append([]string{}, f.path...), dep.Name)}
				}
			}

			n, ok := nodes[key]
			if !ok {
				n = &pendingNode{spec: dep}
				for _, c := range carry[key] {
					n.addConstraint(c)
				}
				nodes[key] = n
				order = append(order, key)
			}
			path := append(append([]string{}, f.path...), dep.EffectiveName())
			n.addConstraint(dep.Version)
			n.provenance = append(n.provenance, path)

			backend, err := r.Backend(dep.Repository)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("repository %q: %w", dep.Repository, err))
				continue
			}
			entry, ref, err := backend.Find(ctx, dep.Name, unionConstraint(n.constraints))
			if err != nil {
				if conflict := r.diamondIn(ctx, backend, dep.Name, n); conflict != nil {
					return nil, false, conflict
				}
				errs = multierror.Append(errs, err)
				continue
			}
			if prior, ok := resolvedVersion[key]; ok && prior != entry.Version {
				// A constraint discovered after the fetch narrowed the
				// union; re-run the walk with the full set carried over.
				mergeCarry()
				return nil, true, nil
			}
			if fetchedOnce[key] {
				continue // already walked this node's own dependencies
			}
			fetchedOnce[key] = true

			data, err := backend.Fetch(ctx, ref)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			digest, err := archive.Verify(data)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			resolvedVersion[key] = entry.Version
			resolvedDigest[key] = digest
			resolvedRepo[key] = dep.Repository
			resolvedType[key] = dep.Type

			if !dep.Enabled || f.p.IsLibrary() {
				continue // library/disabled nodes contribute no further walk
			}
			subPack, _, err := repo.LoadArchiveBytes(data)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			queue = append(queue, frame{p: subPack, path: path})
		}
	}

	if errs.ErrorOrNil() != nil {
		return nil, false, errs.ErrorOrNil()
	}

	digest, err := PackDigest(root)
	if err != nil {
		return nil, false, err
	}

	lock := &LockFile{PackYAMLDigest: digest, Policy: rc.Policy}
	for _, key := range order {
		spec := nodes[key].spec
		rd := ResolvedDependency{
			Name:               spec.Name,
			Alias:              spec.Alias,
			ConcreteVersion:    resolvedVersion[key],
			Repository:         resolvedRepo[key],
			ArchiveDigest:      resolvedDigest[key],
			SourceType:         resolvedType[key],
			ConditionEvaluated: rc.EvaluateConditions && spec.Condition != "",
		}
		lock.Dependencies = append(lock.Dependencies, rd)
	}
	for key, reason := range skipped {
		spec := skippedSpec[key]
		lock.Dependencies = append(lock.Dependencies, ResolvedDependency{
			Name:       spec.Name,
			Alias:      spec.Alias,
			Repository: spec.Repository,
			SourceType: spec.Type,
			SkipReason: reason,
		})
	}
	sort.Slice(lock.Dependencies, func(i, j int) bool {
		return lock.Dependencies[i].nodeKey() < lock.Dependencies[j].nodeKey()
	})
	return lock, false, nil
}

// diamondIn reports whether a failed union lookup is a genuine diamond:
// every accumulated constraint is satisfiable on its own, but at least two
// of them pick different concrete versions, so no single version can serve
// all paths. Any individually unsatisfiable constraint means the failure
// is an ordinary no-matching-version error instead, and nil is returned.
func (r *Resolver) diamondIn(ctx context.Context, backend repo.Backend, name string, n *pendingNode) error {
	if len(n.constraints) < 2 {
		return nil
	}
	var picks []string
	for _, c := range n.constraints {
		entry, _, err := backend.Find(ctx, name, c)
		if err != nil {
			return nil
		}
		dup := false
		for _, v := range picks {
			if v == entry.Version {
				dup = true
				break
			}
		}
		if !dup {
			picks = append(picks, entry.Version)
		}
	}
	if len(picks) < 2 {
		return nil
	}
	return &DiamondConflictError{Name: name, Versions: picks, Paths: n.provenance}
}

// filter applies the static skip rules before the walk.
func (r *Resolver) filter(dep pack.DependencySpec, rc ResolutionContext) SkipReason {
	if !dep.Enabled {
		return SkipStaticDisabled
	}
	if dep.Resolve == pack.ResolveNever {
		return SkipPolicyNever
	}
	if dep.Resolve == pack.ResolveWhenEnabled && dep.Condition != "" {
		if !rc.EvaluateConditions {
			return SkipNone
		}
		v, found := pack.GetPath(rc.Values, dep.Condition)
		if !pack.Truthy(v, found) {
			return SkipCondition
		}
	}
	return SkipNone
}

// PackDigest computes a stable digest of a pack's declared metadata, used
// to detect Pack.yaml drift against a lockfile.
func PackDigest(p *pack.Pack) (string, error) {
	data, err := json.Marshal(p.Metadata)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the root's pack-yaml digest and, per entry, the
// archive digest after a fresh fetch, comparing per lock.Policy
//.
func (r *Resolver) Verify(ctx context.Context, root *pack.Pack, lock *LockFile) error {
	digest, err := PackDigest(root)
	if err != nil {
		return err
	}
	if digest != lock.PackYAMLDigest {
		return fmt.Errorf("pack-yaml digest mismatch: lockfile is stale, re-run resolve")
	}

	for _, dep := range lock.Dependencies {
		if dep.Skipped() {
			continue
		}
		backend, err := r.Backend(dep.Repository)
		if err != nil {
			return err
		}
		constraint := versionConstraintFor(dep, lock.Policy)
		entry, ref, err := backend.Find(ctx, dep.Name, constraint)
		if err != nil {
			return fmt.Errorf("verifying %q: %w", dep.Name, err)
		}
		switch lock.Policy {
		case PolicyStrict:
			if entry.Version != dep.ConcreteVersion {
				return fmt.Errorf("%q: version mismatch: locked %s, found %s", dep.Name, dep.ConcreteVersion, entry.Version)
			}
			data, err := backend.Fetch(ctx, ref)
			if err != nil {
				return err
			}
			gotDigest, err := archive.Verify(data)
			if err != nil {
				return err
			}
			if gotDigest != dep.ArchiveDigest {
				return fmt.Errorf("%q: archive digest mismatch under Strict policy", dep.Name)
			}
		case PolicyVersionOnly:
			if entry.Version != dep.ConcreteVersion {
				return fmt.Errorf("%q: version mismatch: locked %s, found %s", dep.Name, dep.ConcreteVersion, entry.Version)
			}
			// digest mismatch is only a warning under VersionOnly, so it
			// is logged and does not fail verification.
			data, err := backend.Fetch(ctx, ref)
			if err != nil {
				return err
			}
			gotDigest, err := archive.Verify(data)
			if err != nil {
				return err
			}
			if gotDigest != dep.ArchiveDigest {
				slog.Warn("archive digest mismatch under VersionOnly policy", "dependency", dep.Name, "locked", dep.ArchiveDigest, "found", gotDigest)
			}
		case PolicySemverPatch, PolicySemverMinor:
			// constraint already widened by versionConstraintFor; any
			// satisfying version is acceptable, digest is refetched fresh.
		}
	}
	return nil
}

func versionConstraintFor(dep ResolvedDependency, policy Policy) string {
	v, err := semver.NewVersion(dep.ConcreteVersion)
	if err != nil {
		return dep.ConcreteVersion
	}
	switch policy {
	case PolicySemverPatch:
		return fmt.Sprintf("~%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	case PolicySemverMinor:
		return fmt.Sprintf("^%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	default:
		return fmt.Sprintf("=%s", dep.ConcreteVersion)
	}
}

// LoadLockedPack fetches and loads a single resolved dependency's pack,
// for the Lifecycle Engine to assemble the full subchart tree after the
// resolver has produced a LockFile.
func LoadLockedPack(ctx context.Context, backend repo.Backend, dep ResolvedDependency) (*pack.Pack, error) {
	_, ref, err := backend.Find(ctx, dep.Name, fmt.Sprintf("=%s", dep.ConcreteVersion))
	if err != nil {
		return nil, err
	}
	data, err := backend.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	tmp, err := writeTempArchive(data)
	if err != nil {
		return nil, err
	}
	defer removeTemp(tmp)
	return loader.Load(tmp)
}
