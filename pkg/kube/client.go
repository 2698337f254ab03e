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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/cli-runtime/pkg/resource"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"sherpack.sh/sherpack/internal/log"
)

// fieldManager is the fixed server-side apply owner used for every
// resource this client ever creates or updates, so that a later upgrade
// applied by the same binary is always recognized as the existing owner.
const fieldManager = "sherpack"

// Client is the default Interface implementation, built on a
// genericclioptions.RESTClientGetter the way kubectl itself is.
type Client struct {
	Factory genericclioptions.RESTClientGetter
	Log     log.Logger

	namespace string
}

// New returns a Client scoped to the namespace the getter's REST config
// resolves to. getter is typically backed by a kubeconfig + context + flag
// overrides, mirroring how the CLI binds --namespace and --kube-context.
func New(getter genericclioptions.RESTClientGetter) *Client {
	ns := ""
	if cfg, _, err := getter.ToRawKubeConfigLoader().Namespace(); err == nil {
		ns = cfg
	}
	return &Client{Factory: getter, Log: log.DefaultLogger, namespace: ns}
}

func (c *Client) dynamicClient() (dynamic.Interface, error) {
	cfg, err := c.Factory.ToRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("getting REST config: %w", err)
	}
	return dynamic.NewForConfig(cfg)
}

// Build parses manifests from reader, splitting on "---" and resolving
// each document's REST mapping via the cluster's discovery info. The
// validate argument is not used: no OpenAPI schema validation is done.
func (c *Client) Build(reader io.Reader, validate bool) (ResourceList, error) {
	result := resource.NewBuilder(c.Factory).
		Unstructured().
		ContinueOnError().
		NamespaceParam(c.namespace).DefaultNamespace().
		Stream(reader, "").
		Flatten().
		Do()

	infos, err := result.Infos()
	if err != nil {
		return nil, err
	}
	var out ResourceList
	for _, i := range infos {
		out = append(out, i)
	}
	return out, nil
}

// BuildTable is identical to Build; sherpack's manifests are always
// namespace-scoped by the time they reach the client.
func (c *Client) BuildTable(reader io.Reader, validate bool) (ResourceList, error) {
	return c.Build(reader, validate)
}

// IsReachable performs a cheap discovery call to confirm that the
// configured cluster can be contacted before a potentially long-running
// install begins.
func (c *Client) IsReachable() error {
	client, err := c.Factory.ToDiscoveryClient()
	if err != nil {
		return err
	}
	_, err = client.ServerVersion()
	if err != nil {
		return fmt.Errorf("cluster unreachable: %w", err)
	}
	return nil
}

// Create applies every resource in the list, using server-side apply when
// requested or a plain POST otherwise.
func (c *Client) Create(resources ResourceList, opts ...ClientCreateOption) (*Result, error) {
	cfg := newCreateConfig(opts)
	res := &Result{}
	dyn, err := c.dynamicClient()
	if err != nil {
		return nil, err
	}
	for _, info := range resources.SortByCreationOrder() {
		if err := c.createOne(dyn, info, cfg); err != nil {
			return res, fmt.Errorf("creating %s: %w", resourceString(info), err)
		}
		res.Created = append(res.Created, info)
	}
	return res, nil
}

func (c *Client) createOne(dyn dynamic.Interface, info *resource.Info, cfg createConfig) error {
	gvr := info.Mapping.Resource
	ri := c.resourceInterface(dyn, gvr, info.Namespace)
	u, ok := info.Object.(*unstructured.Unstructured)
	if !ok {
		return fmt.Errorf("object is not unstructured")
	}
	if cfg.serverSideApply {
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		applied, err := ri.Patch(context.Background(), info.Name, types.ApplyPatchType, data, metav1.PatchOptions{
			FieldManager: fieldManager,
			Force:        boolPtr(cfg.forceConflicts),
		})
		if err != nil {
			return err
		}
		info.Object = applied
		return nil
	}
	created, err := ri.Create(context.Background(), u, metav1.CreateOptions{FieldManager: fieldManager})
	if err != nil {
		return err
	}
	info.Object = created
	return nil
}

// Update reconciles target against original: resources absent from target
// but present in original are deleted, new resources are created, and the
// remainder are patched in place.
func (c *Client) Update(original, target ResourceList, opts ...ClientUpdateOption) (*Result, error) {
	cfg := newUpdateConfig(opts)
	res := &Result{}
	dyn, err := c.dynamicClient()
	if err != nil {
		return nil, err
	}

	for _, info := range target {
		if existing := original.Get(info); existing != nil {
			if err := c.patchOne(dyn, existing, info, cfg); err != nil {
				return res, fmt.Errorf("updating %s: %w", resourceString(info), err)
			}
			res.Updated = append(res.Updated, info)
			continue
		}
		if err := c.createOne(dyn, info, createConfig{serverSideApply: cfg.serverSideApply, forceConflicts: cfg.forceConflicts}); err != nil {
			return res, fmt.Errorf("creating %s: %w", resourceString(info), err)
		}
		res.Created = append(res.Created, info)
	}

	for _, info := range original.Difference(target) {
		if err := c.deleteOne(dyn, info, PropagationBackground); err != nil && !apierrors.IsNotFound(err) {
			return res, fmt.Errorf("deleting %s: %w", resourceString(info), err)
		}
		res.Deleted = append(res.Deleted, info)
	}

	return res, nil
}

// UpdateWithTimeout applies an absolute deadline around Update, used by
// callers implementing their own coarse-grained retry policy.
func (c *Client) UpdateWithTimeout(original, target ResourceList, force bool, timeout time.Duration) (*Result, error) {
	done := make(chan struct{})
	var res *Result
	var err error
	go func() {
		res, err = c.Update(original, target, ClientUpdateOptionForceReplace(force))
		close(done)
	}()
	select {
	case <-done:
		return res, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("update timed out after %s", timeout)
	}
}

func (c *Client) patchOne(dyn dynamic.Interface, existing, target *resource.Info, cfg updateConfig) error {
	gvr := target.Mapping.Resource
	ri := c.resourceInterface(dyn, gvr, target.Namespace)
	u, ok := target.Object.(*unstructured.Unstructured)
	if !ok {
		return fmt.Errorf("object is not unstructured")
	}

	if cfg.forceReplace {
		if err := c.deleteOne(dyn, existing, PropagationBackground); err != nil && !apierrors.IsNotFound(err) {
			return err
		}
		return c.createOne(dyn, target, createConfig{serverSideApply: cfg.serverSideApply, forceConflicts: cfg.forceConflicts})
	}

	if cfg.serverSideApply {
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		applied, err := ri.Patch(context.Background(), target.Name, types.ApplyPatchType, data, metav1.PatchOptions{
			FieldManager: fieldManager,
			Force:        boolPtr(cfg.forceConflicts),
		})
		if err != nil {
			return err
		}
		target.Object = applied
		return nil
	}

	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	patched, err := ri.Patch(context.Background(), target.Name, types.MergePatchType, data, metav1.PatchOptions{FieldManager: fieldManager})
	if err != nil {
		return err
	}
	target.Object = patched
	return nil
}

// Delete removes every resource in the list in reverse creation order.
func (c *Client) Delete(resources ResourceList) (*Result, []error) {
	return c.DeleteWithPropagationPolicy(resources, PropagationBackground)
}

// DeleteWithPropagationPolicy removes every resource in the list in
// reverse creation order, using the supplied propagation policy.
func (c *Client) DeleteWithPropagationPolicy(resources ResourceList, policy DeletionPropagation) (*Result, []error) {
	res := &Result{}
	var errs []error
	dyn, err := c.dynamicClient()
	if err != nil {
		return res, []error{err}
	}
	for _, info := range resources.SortByDeletionOrder() {
		if err := c.deleteOne(dyn, info, policy); err != nil {
			if apierrors.IsNotFound(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("deleting %s: %w", resourceString(info), err))
			continue
		}
		res.Deleted = append(res.Deleted, info)
	}
	return res, errs
}

func (c *Client) deleteOne(dyn dynamic.Interface, info *resource.Info, policy DeletionPropagation) error {
	gvr := info.Mapping.Resource
	ri := c.resourceInterface(dyn, gvr, info.Namespace)
	p := metav1.DeletePropagationBackground
	switch policy {
	case PropagationForeground:
		p = metav1.DeletePropagationForeground
	case PropagationOrphan:
		p = metav1.DeletePropagationOrphan
	}
	return ri.Delete(context.Background(), info.Name, metav1.DeleteOptions{PropagationPolicy: &p})
}

func (c *Client) resourceInterface(dyn dynamic.Interface, gvr schema.GroupVersionResource, namespace string) dynamic.ResourceInterface {
	if namespace == "" {
		return dyn.Resource(gvr)
	}
	return dyn.Resource(gvr).Namespace(namespace)
}

// Get returns the live objects matching the given resources, and, when
// related is true, any objects owned by them discoverable via
// ownerReferences.
func (c *Client) Get(resources ResourceList, related bool) (map[string][]runtime.Object, error) {
	dyn, err := c.dynamicClient()
	if err != nil {
		return nil, err
	}
	out := map[string][]runtime.Object{}
	for _, info := range resources {
		ri := c.resourceInterface(dyn, info.Mapping.Resource, info.Namespace)
		obj, err := ri.Get(context.Background(), info.Name, metav1.GetOptions{})
		kind := info.Mapping.GroupVersionKind.Kind
		if err != nil {
			if apierrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out[kind] = append(out[kind], obj)
		if related {
			c.appendRelated(dyn, obj, out)
		}
	}
	return out, nil
}

var eventsGVR = schema.GroupVersionResource{Version: "v1", Resource: "events"}
var podsGVR = schema.GroupVersionResource{Version: "v1", Resource: "pods"}

// appendRelated is best-effort: it resolves a Deployment/StatefulSet/
// DaemonSet/Job's Pods via its spec.selector.matchLabels, and every kind's
// Events via the involvedObject.uid field selector. Controllers using a
// selector shape this package doesn't special-case are skipped rather than
// guessed at.
func (c *Client) appendRelated(dyn dynamic.Interface, obj *unstructured.Unstructured, out map[string][]runtime.Object) {
	ctx := context.Background()
	ns := obj.GetNamespace()

	if events, err := dyn.Resource(eventsGVR).Namespace(ns).List(ctx, metav1.ListOptions{
		FieldSelector: fmt.Sprintf("involvedObject.uid=%s", obj.GetUID()),
	}); err == nil {
		for i := range events.Items {
			out["Event"] = append(out["Event"], &events.Items[i])
		}
	}

	selector, found, err := unstructured.NestedStringMap(obj.Object, "spec", "selector", "matchLabels")
	if err != nil || !found {
		return
	}
	labelSelector := labels.SelectorFromSet(selector).String()
	pods, err := dyn.Resource(podsGVR).Namespace(ns).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return
	}
	for i := range pods.Items {
		pod := &pods.Items[i]
		out["Pod"] = append(out["Pod"], pod)
		if podEvents, err := dyn.Resource(eventsGVR).Namespace(ns).List(ctx, metav1.ListOptions{
			FieldSelector: fmt.Sprintf("involvedObject.uid=%s", pod.GetUID()),
		}); err == nil {
			for i := range podEvents.Items {
				out["Event"] = append(out["Event"], &podEvents.Items[i])
			}
		}
	}
}

func resourceString(info *resource.Info) string {
	return fmt.Sprintf("%s/%s", info.Mapping.GroupVersionKind.Kind, info.Name)
}

func boolPtr(b bool) *bool { return &b }

// PodLogTail returns up to tailLines of the most recent log output for
// every container in namespace/pod, newest last. Errors fetching a single
// container's log (container still starting, log stream closed) are
// swallowed into a synthetic line rather than failing the whole call, since
// this only ever feeds best-effort diagnostic capture.
func (c *Client) PodLogTail(namespace, pod string, tailLines int64) ([]string, error) {
	cfg, err := c.Factory.ToRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("getting REST config: %w", err)
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	p, err := cs.CoreV1().Pods(namespace).Get(context.Background(), pod, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, container := range p.Spec.Containers {
		opts := &corev1.PodLogOptions{Container: container.Name, TailLines: &tailLines}
		stream, err := cs.CoreV1().Pods(namespace).GetLogs(pod, opts).Stream(context.Background())
		if err != nil {
			lines = append(lines, fmt.Sprintf("[%s] log unavailable: %v", container.Name, err))
			continue
		}
		raw, err := io.ReadAll(stream)
		stream.Close()
		if err != nil {
			lines = append(lines, fmt.Sprintf("[%s] log read error: %v", container.Name, err))
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(string(raw), "\n"), "\n") {
			if line == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("[%s] %s", container.Name, line))
		}
	}
	return lines, nil
}
