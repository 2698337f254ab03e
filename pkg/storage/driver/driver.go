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

// Package driver implements release record persistence: a uniform
// contract over wherever Release records live (Kubernetes Secrets,
// ConfigMaps, a local directory, or an in-memory store for tests), with
// content-addressed chunking for records that exceed a single object's
// size limit.
package driver

import (
	"errors"

	"sherpack.sh/sherpack/pkg/release"
)

// Driver errors, wrapped with %w by every backend so callers can match
// them with errors.Is regardless of which Driver is in use.
var (
	ErrReleaseNotFound  = errors.New("release: not found")
	ErrChunkIntegrity   = errors.New("release: chunk integrity")
	ErrReleaseExists    = errors.New("release: already exists")
	ErrInvalidKey       = errors.New("release: invalid key")
	ErrNoDeployedReleases = errors.New("release: no deployed releases")
)

// Driver is the storage contract for release records: create, update,
// get, list, query by label, and delete. Finding the current (highest
// Deployed) revision is done by pkg/storage on top of Query.
// Implementations own no business logic beyond encode/decode and the
// underlying store's CRUD semantics; revision bookkeeping lives in
// pkg/storage.
type Driver interface {
	Name() string
	Get(key string) (*release.Release, error)
	List(filter func(*release.Release) bool) ([]*release.Release, error)
	Query(labels map[string]string) ([]*release.Release, error)
	Create(key string, rls *release.Release) error
	Update(key string, rls *release.Release) error
	Delete(key string) (*release.Release, error)
}
