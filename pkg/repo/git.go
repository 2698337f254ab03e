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

package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/Masterminds/vcs"

	"sherpack.sh/sherpack/pkg/archive"
	"sherpack.sh/sherpack/pkg/pack/loader"
)

// GitBackend implements Backend over a plain version-control checkout,
// for dependencies addressed by repository URL rather than an index.yaml
// or an OCI registry. Version constraints are resolved against the
// repository's tags.
//
// One GitBackend serves one repository; Subdir locates the pack within
// it for the monorepo case (Pack.yaml not at the repository root).
type GitBackend struct {
	Remote   string
	CacheDir string
	Subdir   string
}

// NewGitBackend builds a GitBackend. CacheDir is where the repository is
// cloned; an empty CacheDir uses a deterministic path under the OS temp
// directory keyed on remote, so repeated resolutions of the same
// dependency reuse one clone instead of cloning fresh each time.
func NewGitBackend(remote, cacheDir, subdir string) *GitBackend {
	return &GitBackend{Remote: remote, CacheDir: cacheDir, Subdir: subdir}
}

func (b *GitBackend) repo() (vcs.Repo, error) {
	local := b.CacheDir
	if local == "" {
		sum := sha256.Sum256([]byte(b.Remote))
		local = filepath.Join(os.TempDir(), "sherpack-git-"+hex.EncodeToString(sum[:])[:16])
	}
	return vcs.NewRepo(b.Remote, local)
}

// sync clones the repository on first use and pulls otherwise.
func (b *GitBackend) sync(r vcs.Repo) error {
	if _, err := os.Stat(r.LocalPath()); os.IsNotExist(err) {
		return r.Get()
	}
	return r.Update()
}

func (b *GitBackend) packRoot(r vcs.Repo) string {
	if b.Subdir == "" {
		return r.LocalPath()
	}
	return filepath.Join(r.LocalPath(), b.Subdir)
}

// Index lists every semver-parseable tag in the repository against the
// pack name found at the current checkout (HEAD, or whatever ref the
// last sync left checked out). Only one name is ever returned: a
// GitBackend serves a single pack, unlike HTTPBackend's multi-pack index.
func (b *GitBackend) Index(_ context.Context) ([]Entry, error) {
	r, err := b.repo()
	if err != nil {
		return nil, err
	}
	if err := b.sync(r); err != nil {
		return nil, fmt.Errorf("syncing %s: %w", b.Remote, err)
	}
	p, err := loader.Load(b.packRoot(r))
	if err != nil {
		return nil, err
	}
	tags, err := r.Tags()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, t := range tags {
		if v, err := semver.NewVersion(t); err == nil {
			out = append(out, Entry{Name: p.Name(), Version: v.Original()})
		}
	}
	return out, nil
}

// Find resolves constraint against the repository's tags without
// checking any of them out: resolution must not mutate the clone's
// working tree until Fetch actually needs it.
func (b *GitBackend) Find(_ context.Context, name, constraint string) (Entry, ArchiveRef, error) {
	r, err := b.repo()
	if err != nil {
		return Entry{}, ArchiveRef{}, err
	}
	if err := b.sync(r); err != nil {
		return Entry{}, ArchiveRef{}, fmt.Errorf("syncing %s: %w", b.Remote, err)
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return Entry{}, ArchiveRef{}, fmt.Errorf("invalid constraint %q: %w", constraint, err)
	}
	tags, err := r.Tags()
	if err != nil {
		return Entry{}, ArchiveRef{}, err
	}

	var best *semver.Version
	for _, t := range tags {
		v, err := semver.NewVersion(t)
		if err != nil || !c.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if best == nil {
		return Entry{}, ArchiveRef{}, fmt.Errorf("no tag of %q satisfies %q", b.Remote, constraint)
	}
	return Entry{Name: name, Version: best.Original()},
		ArchiveRef{Repository: b.Remote, Name: name, Version: best.Original(), location: best.Original()}, nil
}

// Fetch checks out ref.location and packages the resulting tree with the
// canonical archive format, so the resolver sees the same bytes it would
// get from an HTTPBackend or LocalBackend regardless of the transport.
func (b *GitBackend) Fetch(_ context.Context, ref ArchiveRef) ([]byte, error) {
	r, err := b.repo()
	if err != nil {
		return nil, err
	}
	if err := b.sync(r); err != nil {
		return nil, fmt.Errorf("syncing %s: %w", b.Remote, err)
	}
	if err := r.UpdateVersion(ref.location); err != nil {
		return nil, fmt.Errorf("checking out %s@%s: %w", b.Remote, ref.location, err)
	}
	p, err := loader.Load(b.packRoot(r))
	if err != nil {
		return nil, err
	}
	data, _, err := archive.CanonicalArchive(p)
	return data, err
}

var _ Backend = (*GitBackend)(nil)
