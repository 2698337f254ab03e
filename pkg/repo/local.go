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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"sherpack.sh/sherpack/pkg/archive"
	"sherpack.sh/sherpack/pkg/pack"
	"sherpack.sh/sherpack/pkg/pack/loader"
)

// LocalBackend serves packs out of a directory of pre-built .tgz archives
// (or unpacked pack directories), for vendoring and air-gapped use, and
// for the "file://" dependency form.
type LocalBackend struct {
	Dir string
}

func NewLocalBackend(dir string) *LocalBackend { return &LocalBackend{Dir: dir} }

func (b *LocalBackend) Index(_ context.Context) ([]Entry, error) {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tgz") {
			continue
		}
		p, err := loader.Load(filepath.Join(b.Dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: p.Name(), Version: p.Metadata.Version})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (b *LocalBackend) Find(ctx context.Context, name, constraint string) (Entry, ArchiveRef, error) {
	entries, err := b.Index(ctx)
	if err != nil {
		return Entry{}, ArchiveRef{}, err
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return Entry{}, ArchiveRef{}, fmt.Errorf("invalid constraint %q: %w", constraint, err)
	}

	var best *semver.Version
	var bestEntry Entry
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		v, err := semver.NewVersion(e.Version)
		if err != nil || !c.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestEntry = e
		}
	}
	if best == nil {
		return Entry{}, ArchiveRef{}, fmt.Errorf("no version of %q satisfies %q", name, constraint)
	}
	return bestEntry, ArchiveRef{
		Repository: b.Dir,
		Name:       name,
		Version:    bestEntry.Version,
		location:   filepath.Join(b.Dir, fmt.Sprintf("%s-%s.tgz", name, bestEntry.Version)),
	}, nil
}

func (b *LocalBackend) Fetch(_ context.Context, ref ArchiveRef) ([]byte, error) {
	return os.ReadFile(ref.location)
}

// LoadArchiveBytes is a helper for the resolver to reparse a dependency's
// Pack.yaml after fetching, without caring which backend produced the bytes.
func LoadArchiveBytes(data []byte) (*pack.Pack, archive.Digest, error) {
	digest, err := archive.Verify(data)
	if err != nil {
		return nil, "", err
	}
	tmp, err := os.CreateTemp("", "sherpack-dep-*.tgz")
	if err != nil {
		return nil, "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, "", err
	}
	tmp.Close()
	p, err := loader.Load(tmp.Name())
	return p, digest, err
}
