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
	"fmt"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/cli-runtime/pkg/resource"
	"k8s.io/client-go/dynamic"

	"sherpack.sh/sherpack/internal/log"
)

// pollInterval is the fixed tick used by the legacy waiter between
// readiness checks.
const pollInterval = 2 * time.Second

// legacyWaiter polls each resource's live state on a fixed interval until
// every one reports ready or the deadline elapses.
type legacyWaiter struct {
	client  *Client
	withJob bool
	log     log.Logger
}

func newLegacyWaiter(c *Client) *legacyWaiter {
	return &legacyWaiter{client: c, log: c.Log}
}

func (w *legacyWaiter) Wait(resources ResourceList, timeout time.Duration) error {
	return w.poll(resources, timeout, false)
}

func (w *legacyWaiter) WaitWithJobs(resources ResourceList, timeout time.Duration) error {
	return w.poll(resources, timeout, true)
}

func (w *legacyWaiter) poll(resources ResourceList, timeout time.Duration, withJobs bool) error {
	ctx, cancel := contextWithTimeout(timeout)
	defer cancel()

	dyn, err := w.client.dynamicClient()
	if err != nil {
		return err
	}

	pending := append(ResourceList{}, resources...)
	for {
		var next ResourceList
		for _, info := range pending {
			obj, err := w.get(ctx, dyn, info)
			if err != nil {
				if apierrors.IsNotFound(err) {
					next = append(next, info)
					continue
				}
				return err
			}
			ready, err := isReady(obj)
			if err != nil {
				return err
			}
			if !ready || (withJobs && info.Mapping.GroupVersionKind.Kind == "Job" && !jobComplete(obj)) {
				next = append(next, info)
			}
		}
		if len(next) == 0 {
			return nil
		}
		pending = next

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for %d resource(s) to become ready: %w", len(pending), ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (w *legacyWaiter) WaitForDelete(resources ResourceList, timeout time.Duration) error {
	ctx, cancel := contextWithTimeout(timeout)
	defer cancel()

	dyn, err := w.client.dynamicClient()
	if err != nil {
		return err
	}

	pending := append(ResourceList{}, resources...)
	for {
		var next ResourceList
		for _, info := range pending {
			if _, err := w.get(ctx, dyn, info); err != nil {
				if apierrors.IsNotFound(err) {
					continue
				}
				return err
			}
			next = append(next, info)
		}
		if len(next) == 0 {
			return nil
		}
		pending = next

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for %d resource(s) to be deleted: %w", len(pending), ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (w *legacyWaiter) get(ctx context.Context, dyn dynamic.Interface, info *resource.Info) (runtime.Object, error) {
	ri := w.client.resourceInterface(dyn, info.Mapping.Resource, info.Namespace)
	return ri.Get(ctx, info.Name, metav1.GetOptions{})
}
