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
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	orasregistry "oras.land/oras-go/v2/registry"
	orasremote "oras.land/oras-go/v2/registry/remote"
	orasauth "oras.land/oras-go/v2/registry/remote/auth"
)

// OCIBackend implements Backend over an OCI registry, storing each pack
// version as an artifact tagged with its (sanitized) semver, over the
// oras.land/oras-go registry/remote client.
type OCIBackend struct {
	Reference string // e.g. "registry.example.com/packs/demo"
	Client    *orasauth.Client
}

func NewOCIBackend(reference string) *OCIBackend {
	return &OCIBackend{
		Reference: reference,
		Client: &orasauth.Client{
			Header: http.Header{"User-Agent": {"sherpack/oras-go"}},
			Cache:  orasauth.DefaultCache,
		},
	}
}

func (b *OCIBackend) repository() (orasremote.Repository, error) {
	ref, err := orasregistry.ParseReference(b.Reference)
	if err != nil {
		return orasremote.Repository{}, err
	}
	return orasremote.Repository{Reference: ref, Client: b.Client}, nil
}

func (b *OCIBackend) Index(ctx context.Context) ([]Entry, error) {
	repository, err := b.repository()
	if err != nil {
		return nil, err
	}
	tags, err := orasregistry.Tags(ctx, &repository)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(tags))
	name := lastSegment(b.Reference)
	for _, tag := range tags {
		out = append(out, Entry{Name: name, Version: ociTagToVersion(tag)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (b *OCIBackend) Find(ctx context.Context, name, constraint string) (Entry, ArchiveRef, error) {
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
		return Entry{}, ArchiveRef{}, fmt.Errorf("no version of %q satisfies %q in %s", name, constraint, b.Reference)
	}
	return bestEntry, ArchiveRef{
		Repository: b.Reference,
		Name:       name,
		Version:    bestEntry.Version,
		location:   versionToOCITag(bestEntry.Version),
	}, nil
}

func (b *OCIBackend) Fetch(ctx context.Context, ref ArchiveRef) ([]byte, error) {
	repository, err := b.repository()
	if err != nil {
		return nil, err
	}
	taggedRef := repository.Reference
	taggedRef.Reference = ref.location
	desc, rc, err := repository.Blobs().FetchReference(ctx, taggedRef.String())
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref.location, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, desc.Size))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ociTagToVersion undoes the "+" -> "_" substitution OCI tags require
// (OCI tags forbid "+").
func ociTagToVersion(tag string) string { return strings.ReplaceAll(tag, "_", "+") }
func versionToOCITag(v string) string   { return strings.ReplaceAll(v, "+", "_") }

func lastSegment(ref string) string {
	idx := strings.LastIndex(ref, "/")
	if idx < 0 {
		return ref
	}
	return ref[idx+1:]
}
