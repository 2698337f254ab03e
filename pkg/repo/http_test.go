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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherpack.sh/sherpack/pkg/archive"
	"sherpack.sh/sherpack/pkg/pack"
)

func TestHTTPBackendIndexFindFetch(t *testing.T) {
	p := &pack.Pack{
		Metadata: &pack.Metadata{Name: "demo", Version: "1.2.0"},
		Raw: []*pack.File{
			{Name: "Pack.yaml", Data: []byte("apiVersion: sherpack/v1\nmetadata:\n  name: demo\n  version: 1.2.0\n")},
		},
	}
	data, digest, err := archive.CanonicalArchive(p)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/index.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("apiVersion: sherpack/v1\n" +
			"entries:\n" +
			"  demo:\n" +
			"    - version: 1.2.0\n" +
			"      digest: " + string(digest) + "\n" +
			"      urls:\n" +
			"        - demo-1.2.0.tgz\n"))
	})
	mux.HandleFunc("/demo-1.2.0.tgz", func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := NewHTTPBackend(srv.URL)
	ctx := context.Background()

	entries, err := b.Index(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "demo", entries[0].Name)

	entry, ref, err := b.Find(ctx, "demo", "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, string(digest), entry.Digest)

	fetched, err := b.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)
}

func TestHTTPBackendDropsAuthHeaderCrossOrigin(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer other.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, other.URL+"/dest", http.StatusFound)
	}))
	defer redirector.Close()

	b := NewHTTPBackend(redirector.URL)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, redirector.URL+"/x", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := b.client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "Authorization must be dropped before following a cross-origin redirect")
}
