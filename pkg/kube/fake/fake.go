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

// Package fake provides fake implementations of kube.Interface used by
// dry-run installs/upgrades and by tests elsewhere in the module.
package fake

import (
	"fmt"
	"io"
	"time"

	"sherpack.sh/sherpack/pkg/kube"
)

// PrintingKubeClient does nothing but print information given to it. It
// implements kube.Interface and is the client dry-run installs hand to the
// lifecycle engine instead of a real cluster connection.
type PrintingKubeClient struct {
	Out io.Writer
}

var _ kube.Interface = (*PrintingKubeClient)(nil)
var _ kube.InterfaceExt = (*PrintingKubeClient)(nil)
var _ kube.InterfaceDeletionPropagation = (*PrintingKubeClient)(nil)

// IsReachable always reports the cluster as reachable; dry-run installs
// never need a live connection.
func (p *PrintingKubeClient) IsReachable() error {
	return nil
}

// Create prints how many resources would have been created.
func (p *PrintingKubeClient) Create(resources kube.ResourceList, _ ...kube.ClientCreateOption) (*kube.Result, error) {
	_, err := fmt.Fprintln(p.Out, "creating", len(resources), "resource(s)")
	return &kube.Result{Created: resources}, err
}

// Wait always returns nil without blocking; there is nothing to poll.
func (p *PrintingKubeClient) Wait(resources kube.ResourceList, _ time.Duration) error {
	_, err := fmt.Fprintln(p.Out, "waiting for", len(resources), "resource(s)")
	return err
}

// WaitWithJobs always returns nil without blocking.
func (p *PrintingKubeClient) WaitWithJobs(resources kube.ResourceList, _ time.Duration) error {
	_, err := fmt.Fprintln(p.Out, "waiting for", len(resources), "resource(s) including jobs")
	return err
}

// Delete prints how many resources would have been deleted.
func (p *PrintingKubeClient) Delete(resources kube.ResourceList) (*kube.Result, []error) {
	if _, err := fmt.Fprintln(p.Out, "deleting", len(resources), "resource(s)"); err != nil {
		return nil, []error{err}
	}
	return &kube.Result{Deleted: resources}, nil
}

// DeleteWithPropagationPolicy prints how many resources would have been
// deleted, along with the propagation policy requested.
func (p *PrintingKubeClient) DeleteWithPropagationPolicy(resources kube.ResourceList, policy kube.DeletionPropagation) (*kube.Result, []error) {
	if _, err := fmt.Fprintln(p.Out, "deleting", len(resources), "resource(s) with propagation policy", policy); err != nil {
		return nil, []error{err}
	}
	return &kube.Result{Deleted: resources}, nil
}

// WatchUntilReady always returns nil without blocking.
func (p *PrintingKubeClient) WatchUntilReady(resources kube.ResourceList, _ time.Duration) error {
	_, err := fmt.Fprintln(p.Out, "watching", len(resources), "resource(s) until ready")
	return err
}

// Update prints the number of target resources and reports all of them
// as updated; original is ignored.
func (p *PrintingKubeClient) Update(_, target kube.ResourceList, _ ...kube.ClientUpdateOption) (*kube.Result, error) {
	_, err := fmt.Fprintln(p.Out, "updating", len(target), "resource(s)")
	return &kube.Result{Updated: target}, err
}

// Build validates nothing and returns an empty ResourceList; dry-run
// installs never need the manifests turned into live resource handles.
func (p *PrintingKubeClient) Build(_ io.Reader, _ bool) (kube.ResourceList, error) {
	return kube.ResourceList{}, nil
}

// BuildTable behaves identically to Build.
func (p *PrintingKubeClient) BuildTable(r io.Reader, validate bool) (kube.ResourceList, error) {
	return p.Build(r, validate)
}

// FailingKubeClient wraps a PrintingKubeClient and returns the configured
// error, if non-nil, from each method, letting tests exercise the lifecycle
// engine's error handling for any single cluster operation.
type FailingKubeClient struct {
	PrintingKubeClient
	CreateError           error
	WaitError             error
	WaitWithJobsError     error
	DeleteError           error
	DeleteWithPropagationError error
	WatchUntilReadyError  error
	UpdateError           error
	BuildError            error
	BuildTableError       error
	IsReachableError      error

	// BuildResources, if set, is returned by Build/BuildTable instead of
	// the embedded PrintingKubeClient's empty ResourceList.
	BuildResources kube.ResourceList
}

var _ kube.Interface = (*FailingKubeClient)(nil)

func (f *FailingKubeClient) IsReachable() error {
	if f.IsReachableError != nil {
		return f.IsReachableError
	}
	return f.PrintingKubeClient.IsReachable()
}

func (f *FailingKubeClient) Create(resources kube.ResourceList, opts ...kube.ClientCreateOption) (*kube.Result, error) {
	if f.CreateError != nil {
		return nil, f.CreateError
	}
	return f.PrintingKubeClient.Create(resources, opts...)
}

func (f *FailingKubeClient) Wait(resources kube.ResourceList, timeout time.Duration) error {
	if f.WaitError != nil {
		return f.WaitError
	}
	return f.PrintingKubeClient.Wait(resources, timeout)
}

func (f *FailingKubeClient) WaitWithJobs(resources kube.ResourceList, timeout time.Duration) error {
	if f.WaitWithJobsError != nil {
		return f.WaitWithJobsError
	}
	return f.PrintingKubeClient.WaitWithJobs(resources, timeout)
}

func (f *FailingKubeClient) Delete(resources kube.ResourceList) (*kube.Result, []error) {
	if f.DeleteError != nil {
		return nil, []error{f.DeleteError}
	}
	return f.PrintingKubeClient.Delete(resources)
}

func (f *FailingKubeClient) DeleteWithPropagationPolicy(resources kube.ResourceList, policy kube.DeletionPropagation) (*kube.Result, []error) {
	if f.DeleteWithPropagationError != nil {
		return nil, []error{f.DeleteWithPropagationError}
	}
	return f.PrintingKubeClient.DeleteWithPropagationPolicy(resources, policy)
}

func (f *FailingKubeClient) WatchUntilReady(resources kube.ResourceList, timeout time.Duration) error {
	if f.WatchUntilReadyError != nil {
		return f.WatchUntilReadyError
	}
	return f.PrintingKubeClient.WatchUntilReady(resources, timeout)
}

// Update returns UpdateError if set; otherwise it delegates to the embedded
// PrintingKubeClient and leaves target unchanged.
func (f *FailingKubeClient) Update(original, target kube.ResourceList, opts ...kube.ClientUpdateOption) (*kube.Result, error) {
	if f.UpdateError != nil {
		return nil, f.UpdateError
	}
	return f.PrintingKubeClient.Update(original, target, opts...)
}

func (f *FailingKubeClient) Build(r io.Reader, validate bool) (kube.ResourceList, error) {
	if f.BuildError != nil {
		return nil, f.BuildError
	}
	if f.BuildResources != nil {
		return f.BuildResources, nil
	}
	return f.PrintingKubeClient.Build(r, validate)
}

func (f *FailingKubeClient) BuildTable(r io.Reader, validate bool) (kube.ResourceList, error) {
	if f.BuildTableError != nil {
		return nil, f.BuildTableError
	}
	if f.BuildResources != nil {
		return f.BuildResources, nil
	}
	return f.PrintingKubeClient.BuildTable(r, validate)
}

// PrintingKubeWaiter is a no-op kube.Waiter paired with PrintingKubeClient
// for callers that obtain their waiter through kube.InterfaceWaitOptions
// rather than through Wait/WaitWithJobs directly.
type PrintingKubeWaiter struct {
	Out io.Writer
}

var _ kube.Waiter = (*PrintingKubeWaiter)(nil)

func (p *PrintingKubeWaiter) Wait(resources kube.ResourceList, _ time.Duration) error {
	_, err := fmt.Fprintln(p.Out, "waiting for", len(resources), "resource(s)")
	return err
}

func (p *PrintingKubeWaiter) WaitWithJobs(resources kube.ResourceList, _ time.Duration) error {
	_, err := fmt.Fprintln(p.Out, "waiting for", len(resources), "resource(s) including jobs")
	return err
}

func (p *PrintingKubeWaiter) WaitForDelete(resources kube.ResourceList, _ time.Duration) error {
	_, err := fmt.Fprintln(p.Out, "waiting for", len(resources), "resource(s) to be deleted")
	return err
}
