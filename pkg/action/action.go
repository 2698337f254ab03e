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

// Package action is the release lifecycle engine: it composes the
// Pack Store, the Dependency Resolver, the Template Engine, the Storage
// Driver and a Kubernetes client wrapper into install/upgrade/rollback/
// uninstall/recover transactions, hook execution, health waiting and
// atomic rollback with pre-rollback diagnostic capture.
package action

import (
	"fmt"
	"regexp"

	"sherpack.sh/sherpack/internal/log"
	"sherpack.sh/sherpack/pkg/engine"
	"sherpack.sh/sherpack/pkg/kube"
	"sherpack.sh/sherpack/pkg/packstore"
	"sherpack.sh/sherpack/pkg/postrender"
	"sherpack.sh/sherpack/pkg/repo"
	"sherpack.sh/sherpack/pkg/resolver"
	"sherpack.sh/sherpack/pkg/storage"
)

// FieldManager is the fixed field-manager name every server-side apply in
// this module is performed under.
const FieldManager = "sherpack"

var releaseNameRE = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateReleaseName enforces the DNS-label-safe naming required of pack
// names and, by extension, release names.
func ValidateReleaseName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: release name is required", ErrLifecycle)
	}
	if len(name) > 53 {
		return fmt.Errorf("%w: release name %q exceeds 53 characters", ErrLifecycle, name)
	}
	if !releaseNameRE.MatchString(name) {
		return fmt.Errorf("%w: release name %q is not DNS-label-safe", ErrLifecycle, name)
	}
	return nil
}

// Configuration is the explicit, process-wide structure the Lifecycle
// Engine is constructed from: no ambient singletons during rendering or
// apply.
//
// Every cooperating component is injected rather than looked up, so tests
// can swap a fake KubeClient or an in-memory Storage driver without
// touching the engine's control flow.
type Configuration struct {
	// Storage owns every Release record this engine reads or writes.
	Storage *storage.Storage

	// KubeClient applies, waits on and deletes the resources a render
	// produces. Construction (kubeconfig, context, impersonation) is the
	// caller's responsibility; this package only ever programs against
	// kube.Interface.
	KubeClient kube.Interface

	// PackStore loads and verifies packs from disk or archive.
	PackStore *packstore.Store

	// Engine renders a loaded pack tree into manifests.
	Engine *engine.Engine

	// Resolver locks a pack's dependency graph against a Repository
	// Backend. May be nil for packs with no dependencies.
	Resolver *resolver.Resolver

	// Backend resolves a repository reference string to a Backend, used
	// to materialize the subchart tree a lockfile names. May be nil if
	// Resolver is nil.
	Backend resolver.BackendResolver

	// Capabilities describes the target cluster surface visible to
	// templates.
	Capabilities engine.Capabilities

	// PostRenderer optionally filters the rendered manifest stream before
	// it is split into hooks and the apply set.
	PostRenderer postrender.PostRenderer

	// Log receives structured diagnostic output. Defaults to a no-op
	// logger when left nil.
	Log log.Logger
}

func (c *Configuration) logger() log.Logger {
	if c.Log == nil {
		return log.DefaultLogger
	}
	return c.Log
}

// init wires a no-op logger if the caller left Log nil. Other fields,
// Capabilities included, are left as the caller set them.
func (c *Configuration) init() {
	if c.Log == nil {
		c.Log = log.DefaultLogger
	}
}

// namespacedLock acquires the per-release-name advisory lock and returns
// the function that releases it. Every action
// that mutates a release's state must hold this for the duration of its
// transaction.
func (c *Configuration) namespacedLock(name string) storage.Guard {
	return c.Storage.Lock(name)
}

// resolveBackend is the single call site every action uses to turn a
// pack's recorded dependency repository string into a repo.Backend; it
// exists so Install/Upgrade/Recover share one nil-Backend error message
// instead of each open-coding the check.
func (c *Configuration) resolveBackend(repository string) (repo.Backend, error) {
	if c.Backend == nil {
		return nil, fmt.Errorf("%w: no repository backend configured", ErrLifecycle)
	}
	return c.Backend(repository)
}

// ChartPathOptions is retained for callers that need to resolve a pack
// reference (local path, repository name/version, or OCI reference)
// before calling Install/Upgrade; resolution itself is delegated to the
// configured repo.Backend and is out of this package's scope beyond the
// Backend contract.
type ChartPathOptions struct {
	RepositoryURL string
	Version       string
}

// DryRunStrategy controls how far Install/Upgrade carry a transaction
// without touching the cluster or the Storage Driver.
type DryRunStrategy int

const (
	// DryRunNone runs the transaction to completion: apply and commit.
	DryRunNone DryRunStrategy = iota
	// DryRunClient renders and validates locally without any API calls.
	DryRunClient
	// DryRunServer additionally round-trips a server-side dry-run apply,
	// surfacing admission-webhook and validation errors without persisting
	// anything.
	DryRunServer
)
