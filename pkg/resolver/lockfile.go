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

package resolver

import (
	"time"

	"sigs.k8s.io/yaml"

	"sherpack.sh/sherpack/pkg/archive"
	"sherpack.sh/sherpack/pkg/pack"
)

// lockFileYAML is the Pack.lock.yaml wire format.
// LockFile/ResolvedDependency stay the in-memory shape the rest
// of the package works with; this is the one seam that marshals between
// them.
type lockFileYAML struct {
	Version        int                  `json:"version"`
	Generated      string               `json:"generated"`
	PackYAMLDigest string               `json:"packYamlDigest"`
	Policy         Policy               `json:"policy"`
	Dependencies   []lockDependencyYAML `json:"dependencies"`
}

type lockDependencyYAML struct {
	Name       string             `json:"name"`
	Version    string             `json:"version,omitempty"`
	Repository string             `json:"repository,omitempty"`
	Digest     string             `json:"digest,omitempty"`
	Alias      string             `json:"alias,omitempty"`
	Source     lockSourceYAML     `json:"source"`
	Resolution lockResolutionYAML `json:"resolution"`
}

type lockSourceYAML struct {
	Type string `json:"type,omitempty"`
}

type lockResolutionYAML struct {
	Enabled            bool   `json:"enabled"`
	ConditionEvaluated bool   `json:"conditionEvaluated,omitempty"`
	Skipped            bool   `json:"skipped,omitempty"`
	Reason             string `json:"reason,omitempty"`
}

// MarshalLockFile renders lock as a Pack.lock.yaml document, stamping
// generatedAt as the "generated" timestamp.
func MarshalLockFile(lock *LockFile, generatedAt time.Time) ([]byte, error) {
	w := lockFileYAML{
		Version:        2,
		Generated:      generatedAt.UTC().Format(time.RFC3339),
		PackYAMLDigest: lock.PackYAMLDigest,
		Policy:         lock.Policy,
	}
	for _, d := range lock.Dependencies {
		w.Dependencies = append(w.Dependencies, lockDependencyYAML{
			Name:       d.Name,
			Version:    d.ConcreteVersion,
			Repository: d.Repository,
			Digest:     string(d.ArchiveDigest),
			Alias:      d.Alias,
			Source:     lockSourceYAML{Type: string(d.SourceType)},
			Resolution: lockResolutionYAML{
				Enabled:            !d.Skipped(),
				ConditionEvaluated: d.ConditionEvaluated,
				Skipped:            d.Skipped(),
				Reason:             string(d.SkipReason),
			},
		})
	}
	return yaml.Marshal(w)
}

// UnmarshalLockFile parses a Pack.lock.yaml document back into a LockFile.
func UnmarshalLockFile(data []byte) (*LockFile, error) {
	var w lockFileYAML
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	lock := &LockFile{PackYAMLDigest: w.PackYAMLDigest, Policy: w.Policy}
	for _, d := range w.Dependencies {
		rd := ResolvedDependency{
			Name:               d.Name,
			Alias:              d.Alias,
			ConcreteVersion:    d.Version,
			Repository:         d.Repository,
			ArchiveDigest:      archive.Digest(d.Digest),
			SourceType:         pack.ResolveType(d.Source.Type),
			ConditionEvaluated: d.Resolution.ConditionEvaluated,
		}
		if d.Resolution.Skipped {
			rd.SkipReason = SkipReason(d.Resolution.Reason)
		}
		lock.Dependencies = append(lock.Dependencies, rd)
	}
	return lock, nil
}
