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
	"errors"
	"fmt"
	"time"

	"sigs.k8s.io/cli-utils/pkg/kstatus/polling/engine"
	"sigs.k8s.io/cli-utils/pkg/kstatus/status"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/cli-runtime/pkg/resource"
	"k8s.io/client-go/dynamic"

	"sherpack.sh/sherpack/internal/statusreaders"
)

// statusWaiter is the StatusWatcherStrategy Waiter. Unlike legacyWaiter it
// delegates readiness to kstatus, which understands a much wider
// vocabulary of conditions than the small kind-specific table in ready.go.
type statusWaiter struct {
	restMapper meta.RESTMapper
	client     dynamic.Interface
}

func newStatusWaiter(c *Client) (*statusWaiter, error) {
	mapper, err := c.Factory.ToRESTMapper()
	if err != nil {
		return nil, fmt.Errorf("getting REST mapper: %w", err)
	}
	dyn, err := c.dynamicClient()
	if err != nil {
		return nil, err
	}
	return &statusWaiter{restMapper: mapper, client: dyn}, nil
}

func (w *statusWaiter) jobReader() engine.StatusReader {
	return statusreaders.NewJobStatusReader(w.restMapper)
}

func (w *statusWaiter) podReader() engine.StatusReader {
	return statusreaders.NewPodStatusReader(w.restMapper)
}

// computeStatus returns the kstatus-flavored status for obj, preferring
// the Job- and Pod-specific readers (which require full completion, not
// merely "ready") and falling back to kstatus's generic condition
// inspection for every other kind.
func (w *statusWaiter) computeStatus(ctx context.Context, gvk schema.GroupVersionKind, obj *unstructured.Unstructured) (status.Status, string, error) {
	gk := gvk.GroupKind()
	var reader engine.StatusReader
	switch {
	case w.jobReader().Supports(gk):
		reader = w.jobReader()
	case w.podReader().Supports(gk):
		reader = w.podReader()
	}
	if reader != nil {
		var cr engine.ClusterReader
		rs := reader.ReadStatusForObject(ctx, cr, obj)
		if rs.Error != nil {
			return "", "", rs.Error
		}
		return rs.Status, rs.Message, nil
	}
	result, err := status.Compute(obj)
	if err != nil {
		return "", "", err
	}
	return result.Status, result.Message, nil
}

func (w *statusWaiter) Wait(resources ResourceList, timeout time.Duration) error {
	return w.wait(resources, timeout, false)
}

func (w *statusWaiter) WaitWithJobs(resources ResourceList, timeout time.Duration) error {
	return w.wait(resources, timeout, true)
}

func (w *statusWaiter) wait(resources ResourceList, timeout time.Duration, withJobs bool) error {
	ctx, cancel := contextWithTimeout(timeout)
	defer cancel()

	pending := append(ResourceList{}, resources...)
	for {
		var errs []error
		var next ResourceList
		for _, info := range pending {
			gvk := info.Mapping.GroupVersionKind
			if gvk.Kind == "Job" && !withJobs {
				continue
			}
			obj, err := w.get(ctx, info)
			if err != nil {
				if apierrors.IsNotFound(err) {
					next = append(next, info)
					continue
				}
				return err
			}
			st, _, err := w.computeStatus(ctx, gvk, obj)
			if err != nil {
				return err
			}
			if st != status.CurrentStatus {
				next = append(next, info)
				errs = append(errs, fmt.Errorf("resource not ready, name: %s, kind: %s, status: %s", info.Name, gvk.Kind, st))
			}
		}
		if len(next) == 0 {
			return nil
		}
		pending = next

		select {
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			return errors.Join(errs...)
		case <-time.After(pollInterval):
		}
	}
}

// WatchUntilReady is the hook-specific variant: only Jobs and Pods have a
// well-defined completion signal, so every other kind is treated as
// satisfied without being looked up.
func (w *statusWaiter) WatchUntilReady(resources ResourceList, timeout time.Duration) error {
	ctx, cancel := contextWithTimeout(timeout)
	defer cancel()

	pending := append(ResourceList{}, resources...)
	for {
		var errs []error
		var next ResourceList
		for _, info := range pending {
			kind := info.Mapping.GroupVersionKind.Kind
			if kind != "Job" && kind != "Pod" {
				continue
			}
			obj, err := w.get(ctx, info)
			if err != nil {
				if apierrors.IsNotFound(err) {
					next = append(next, info)
					continue
				}
				return err
			}
			st, _, err := w.computeStatus(ctx, info.Mapping.GroupVersionKind, obj)
			if err != nil {
				return err
			}
			if st != status.CurrentStatus && st != status.FailedStatus {
				next = append(next, info)
				errs = append(errs, fmt.Errorf("resource not ready, name: %s, kind: %s, status: %s", info.Name, kind, st))
			}
		}
		if len(next) == 0 {
			return nil
		}
		pending = next

		select {
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			return errors.Join(errs...)
		case <-time.After(pollInterval):
		}
	}
}

func (w *statusWaiter) WaitForDelete(resources ResourceList, timeout time.Duration) error {
	ctx, cancel := contextWithTimeout(timeout)
	defer cancel()

	pending := append(ResourceList{}, resources...)
	for {
		var errs []error
		var next ResourceList
		for _, info := range pending {
			obj, err := w.get(ctx, info)
			if err != nil {
				if apierrors.IsNotFound(err) {
					continue
				}
				return err
			}
			st, _, _ := w.computeStatus(ctx, info.Mapping.GroupVersionKind, obj)
			next = append(next, info)
			errs = append(errs, fmt.Errorf("resource still exists, name: %s, kind: %s, status: %s", info.Name, info.Mapping.GroupVersionKind.Kind, st))
		}
		if len(next) == 0 {
			return nil
		}
		pending = next

		select {
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			return errors.Join(errs...)
		case <-time.After(pollInterval):
		}
	}
}

func (w *statusWaiter) get(ctx context.Context, info *resource.Info) (*unstructured.Unstructured, error) {
	var ri dynamic.ResourceInterface = w.client.Resource(info.Mapping.Resource)
	if info.Namespace != "" {
		ri = w.client.Resource(info.Mapping.Resource).Namespace(info.Namespace)
	}
	return ri.Get(ctx, info.Name, metav1.GetOptions{})
}
