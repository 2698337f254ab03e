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

// Package release describes the Release record the Storage Driver owns:
// a single revision of a pack applied to a cluster, its rendered output,
// and its lifecycle state.
package release

import (
	"time"

	"sherpack.sh/sherpack/pkg/pack"
)

// Status is a Release's position in its lifecycle state machine.
//
//	Pending{Install,Upgrade,Rollback} -> Deployed | Failed
//	Deployed -> Superseded | Uninstalling -> Uninstalled
type Status string

const (
	StatusUnknown          Status = "unknown"
	StatusPendingInstall   Status = "pending-install"
	StatusPendingUpgrade   Status = "pending-upgrade"
	StatusPendingRollback  Status = "pending-rollback"
	StatusDeployed         Status = "deployed"
	StatusFailed           Status = "failed"
	StatusSuperseded       Status = "superseded"
	StatusUninstalling     Status = "uninstalling"
	StatusUninstalled      Status = "uninstalled"
)

// IsPending reports whether a release name is reserved by this status: a
// release name stays reserved for its namespace while any non-terminal
// state exists.
func (s Status) IsPending() bool {
	switch s {
	case StatusPendingInstall, StatusPendingUpgrade, StatusPendingRollback, StatusUninstalling:
		return true
	}
	return false
}

// ValuesProvenance records where each top-level value came from, for
// diagnostics: the pack's own defaults, a parent pack's exported values, or
// a caller-supplied overlay, in overlay order.
type ValuesProvenance struct {
	Source string // e.g. "pack-defaults", "values-file:prod.yaml", "--set"
	Keys   []string
}

// Release is one revision of a pack installed into a cluster namespace.
type Release struct {
	Name      string
	Namespace string
	Revision  uint32
	State     Status

	RenderedManifest string
	Hooks            []*Hook

	AppliedValues     map[string]interface{}
	ValuesProvenance  []ValuesProvenance
	PackMetadata      pack.Metadata

	CreatedAt time.Time
	UpdatedAt time.Time

	Description string
}

// Key uniquely identifies a release revision: (namespace, name, revision).
type Key struct {
	Namespace string
	Name      string
	Revision  uint32
}

func (r *Release) Key() Key {
	return Key{Namespace: r.Namespace, Name: r.Name, Revision: r.Revision}
}
