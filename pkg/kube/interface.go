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

package kube

import (
	"context"
	"io"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
)

// WaitStrategy selects the mechanism a Waiter uses to decide that a set of
// applied resources has become ready.
type WaitStrategy string

const (
	// LegacyStrategy polls a small, kind-specific set of readiness checks
	// (Deployment/StatefulSet/DaemonSet/Job/PVC/Pod) on a fixed interval.
	LegacyStrategy WaitStrategy = "legacy"

	// StatusWatcherStrategy delegates readiness to a kstatus aggregated
	// status watch and understands a much broader set of kinds, including
	// CRDs that expose standard conditions.
	StatusWatcherStrategy WaitStrategy = "watcher"

	// HookOnlyStrategy is served by the status-watcher waiter; it waits on
	// every resource passed to it and does not tell hooks from other
	// resources.
	HookOnlyStrategy WaitStrategy = "hook-only"
)

// WaitOption configures a Waiter before it is used to watch a ResourceList.
type WaitOption func(*waitConfig)

type waitConfig struct {
	statusOnly bool
}

// StatusOnly sets the statusOnly flag of a waitConfig. No Waiter in this
// package reads the flag, so it does not change how a waiter behaves.
func StatusOnly() WaitOption {
	return func(c *waitConfig) { c.statusOnly = true }
}

// Waiter knows how to block until a ResourceList is healthy, or until it is
// removed from the cluster.
type Waiter interface {
	Wait(resources ResourceList, timeout time.Duration) error
	WaitWithJobs(resources ResourceList, timeout time.Duration) error
	WaitForDelete(resources ResourceList, timeout time.Duration) error
}

// Interface abstracts the subset of cluster operations the lifecycle engine
// needs: building manifests into typed resources, and creating, updating and
// deleting them as a unit.
type Interface interface {
	// Create applies resources that do not yet exist in the cluster.
	Create(resources ResourceList, opts ...ClientCreateOption) (*Result, error)

	// Wait blocks until all resources in the list report ready, or until
	// timeout elapses.
	Wait(resources ResourceList, timeout time.Duration) error

	// WaitWithJobs is like Wait but additionally blocks on Job completion.
	WaitWithJobs(resources ResourceList, timeout time.Duration) error

	// Delete destroys the supplied resources, waiting for their removal to
	// be acknowledged by the API server.
	Delete(resources ResourceList) (*Result, []error)

	// WatchUntilReady watches hook resources until they either complete or
	// time out; it is the hook-specific counterpart to Wait.
	WatchUntilReady(resources ResourceList, timeout time.Duration) error

	// Update patches each target resource that is also in original (JSON
	// merge patch, or server-side apply when selected), creates the target
	// resources not in original, and deletes the original resources that
	// are not in target.
	Update(original, target ResourceList, opts ...ClientUpdateOption) (*Result, error)

	// Build parses raw manifests into typed resources. The validate
	// argument is not used by the cluster client.
	Build(reader io.Reader, validate bool) (ResourceList, error)

	// IsReachable checks that the configured cluster can be contacted.
	IsReachable() error
}

// InterfaceExt is implemented by clients that offer BuildTable alongside
// Build; it takes no namespace argument.
type InterfaceExt interface {
	BuildTable(reader io.Reader, validate bool) (ResourceList, error)
}

// InterfaceDeletionPropagation is implemented by clients whose Delete
// understands Kubernetes deletion propagation policies.
type InterfaceDeletionPropagation interface {
	DeleteWithPropagationPolicy(resources ResourceList, policy DeletionPropagation) (*Result, []error)
}

// DeletionPropagation mirrors metav1.DeletionPropagation without requiring
// callers outside this package to import apimachinery directly.
type DeletionPropagation string

const (
	PropagationBackground DeletionPropagation = "Background"
	PropagationForeground DeletionPropagation = "Foreground"
	PropagationOrphan     DeletionPropagation = "Orphan"
)

// InterfaceResources is implemented by clients that can fetch the live
// objects for a ResourceList, grouped by kind, adding the related Pods and
// Events when related is true.
type InterfaceResources interface {
	Get(resources ResourceList, related bool) (map[string][]runtime.Object, error)
}

// InterfaceWaitOptions is implemented by clients whose waiter is
// strategy-selectable at call time.
type InterfaceWaitOptions interface {
	GetWaiter(strategy WaitStrategy) (Waiter, error)
}

// UpdateWithTimeout is implemented by clients whose Update honors a
// deadline independent of the configured Waiter's timeout.
type UpdateWithTimeout interface {
	UpdateWithTimeout(original, target ResourceList, force bool, timeout time.Duration) (*Result, error)
}

// KubernetesClient is the minimal read surface used to print adopted or
// orphaned resources back to the user.
type KubernetesClient interface {
	Get(resource string, namespaced bool) (string, error)
}

// contextWithTimeout is a small helper shared by the waiters below.
func contextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
