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

// Package storage wraps a driver.Driver with the revision bookkeeping,
// per-release-name advisory locking, and history queries the Lifecycle
// Engine needs.
package storage

import (
	"fmt"
	"sort"
	"sync"

	"sherpack.sh/sherpack/pkg/release"
	"sherpack.sh/sherpack/pkg/storage/driver"
)

// Storage is the release record store: a thin, locking wrapper over a
// driver.Driver keyed by "<name>.v<revision>".
type Storage struct {
	Driver driver.Driver

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func Init(d driver.Driver) *Storage {
	return &Storage{Driver: d, locks: map[string]*sync.Mutex{}}
}

func key(name string, revision uint32) string { return fmt.Sprintf("%s.v%d", name, revision) }

// lockFor returns the advisory lock guarding name: at most one writer
// per release name. Within one process this is a
// plain mutex. Across processes the only guard is that a driver's Create
// refuses an existing key; the Kubernetes-backed drivers send updates
// without a resource version, so concurrent updates are not detected and
// nothing is retried.
func (s *Storage) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Guard releases the advisory lock on name when the caller is done with a
// transaction.
type Guard func()

// Lock acquires the advisory lock for a release name and returns the
// function that releases it.
func (s *Storage) Lock(name string) Guard {
	l := s.lockFor(name)
	l.Lock()
	return Guard(l.Unlock)
}

func (s *Storage) Get(name string, revision uint32) (*release.Release, error) {
	return s.Driver.Get(key(name, revision))
}

func (s *Storage) Create(rls *release.Release) error {
	return s.Driver.Create(key(rls.Name, rls.Revision), rls)
}

func (s *Storage) Update(rls *release.Release) error {
	return s.Driver.Update(key(rls.Name, rls.Revision), rls)
}

func (s *Storage) Delete(name string, revision uint32) (*release.Release, error) {
	return s.Driver.Delete(key(name, revision))
}

// History returns every revision of name, oldest first.
func (s *Storage) History(name string) ([]*release.Release, error) {
	all, err := s.Driver.Query(map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Revision < all[j].Revision })
	return all, nil
}

// Deployed returns the current release: the highest revision in state
// Deployed.
func (s *Storage) Deployed(name string) (*release.Release, error) {
	deployed, err := s.Driver.Query(map[string]string{"name": name, "status": string(release.StatusDeployed)})
	if err != nil {
		return nil, err
	}
	if len(deployed) == 0 {
		return nil, fmt.Errorf("%w: %q", driver.ErrNoDeployedReleases, name)
	}
	sort.Slice(deployed, func(i, j int) bool { return deployed[i].Revision > deployed[j].Revision })
	return deployed[0], nil
}

// Last returns the highest-revision record of name regardless of state,
// used to compute the next revision number for a new transaction.
func (s *Storage) Last(name string) (*release.Release, error) {
	hist, err := s.History(name)
	if err != nil {
		return nil, err
	}
	if len(hist) == 0 {
		return nil, fmt.Errorf("%w: %q", driver.ErrReleaseNotFound, name)
	}
	return hist[len(hist)-1], nil
}

// List returns every release record the filter accepts, across all names.
func (s *Storage) List(filter func(*release.Release) bool) ([]*release.Release, error) {
	return s.Driver.List(filter)
}

// RemoveLeastRecent enforces a caller-chosen retention limit, deleting the
// oldest non-deployed revisions of name until at most max remain.
func (s *Storage) RemoveLeastRecent(name string, max int) error {
	if max <= 0 {
		return nil
	}
	hist, err := s.History(name)
	if err != nil {
		return err
	}
	excess := len(hist) - max
	for i := 0; excess > 0 && i < len(hist); i++ {
		if hist[i].State == release.StatusDeployed {
			continue
		}
		if _, err := s.Delete(name, hist[i].Revision); err != nil {
			return err
		}
		excess--
	}
	return nil
}
