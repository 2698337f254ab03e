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
	"net/url"
	"sort"

	"github.com/Masterminds/semver/v3"
	"sigs.k8s.io/yaml"
)

// indexFile is the decoded "index.yaml" document served by HTTP backends.
type indexFile struct {
	APIVersion string                    `json:"apiVersion"`
	Entries    map[string][]indexVersion `json:"entries"`
}

type indexVersion struct {
	Version string   `json:"version"`
	Digest  string   `json:"digest,omitempty"`
	URLs    []string `json:"urls"`
}

// HTTPBackend implements Backend over a classic "index.yaml + tarballs"
// HTTP repository.
type HTTPBackend struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPBackend builds an HTTPBackend whose client never forwards the
// Authorization header across a change of (scheme, host, port) on a
// redirect.
func NewHTTPBackend(baseURL string) *HTTPBackend {
	return &HTTPBackend{BaseURL: baseURL, Client: &http.Client{CheckRedirect: dropCrossOriginAuth}}
}

func dropCrossOriginAuth(req *http.Request, via []*http.Request) error {
	if len(via) == 0 {
		return nil
	}
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	prev := via[0]
	if req.URL.Scheme != prev.URL.Scheme || req.URL.Host != prev.URL.Host {
		req.Header.Del("Authorization")
	}
	return nil
}

func (b *HTTPBackend) fetchIndex(ctx context.Context) (*indexFile, error) {
	u, err := url.JoinPath(b.BaseURL, "index.yaml")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching index.yaml: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	idx := &indexFile{}
	if err := yaml.Unmarshal(body, idx); err != nil {
		return nil, fmt.Errorf("parsing index.yaml: %w", err)
	}
	return idx, nil
}

func (b *HTTPBackend) client() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return http.DefaultClient
}

func (b *HTTPBackend) Index(ctx context.Context) ([]Entry, error) {
	idx, err := b.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for name, versions := range idx.Entries {
		for _, v := range versions {
			out = append(out, Entry{Name: name, Version: v.Version, Digest: v.Digest})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (b *HTTPBackend) Find(ctx context.Context, name, constraint string) (Entry, ArchiveRef, error) {
	idx, err := b.fetchIndex(ctx)
	if err != nil {
		return Entry{}, ArchiveRef{}, err
	}
	versions, ok := idx.Entries[name]
	if !ok {
		return Entry{}, ArchiveRef{}, fmt.Errorf("%q not found in repository %s", name, b.BaseURL)
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return Entry{}, ArchiveRef{}, fmt.Errorf("invalid constraint %q: %w", constraint, err)
	}

	var best *semver.Version
	var bestIdx int
	for i, v := range versions {
		ver, err := semver.NewVersion(v.Version)
		if err != nil || len(v.URLs) == 0 || !c.Check(ver) {
			continue
		}
		if best == nil || ver.GreaterThan(best) {
			best = ver
			bestIdx = i
		}
	}
	if best == nil {
		return Entry{}, ArchiveRef{}, fmt.Errorf("no version of %q satisfies %q", name, constraint)
	}
	chosen := versions[bestIdx]
	loc := chosen.URLs[0]
	if resolved, err := url.Parse(loc); err == nil && !resolved.IsAbs() {
		if u, err := url.JoinPath(b.BaseURL, loc); err == nil {
			loc = u
		}
	}
	return Entry{Name: name, Version: chosen.Version, Digest: chosen.Digest},
		ArchiveRef{Repository: b.BaseURL, Name: name, Version: chosen.Version, location: loc}, nil
}

func (b *HTTPBackend) Fetch(ctx context.Context, ref ArchiveRef) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", ref.location, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
