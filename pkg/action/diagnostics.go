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

package action

import (
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"sherpack.sh/sherpack/pkg/kube"
)

// PodDiagnostic captures the state of one pod at the moment an atomic
// upgrade failed, before anything is deleted.
type PodDiagnostic struct {
	Name  string
	Phase string
	// Events lists the namespace-relative Event summaries whose
	// InvolvedObject names this pod, newest last.
	Events []string
}

// DiagnosticBundle is the pre-rollback snapshot an AtomicUpgradeFailedError
// carries: per-pod phase and related events, plus every namespace-level
// event observed across the release's resources. This stays available to
// the caller even though the rollback that follows
// may remove the pods themselves.
type DiagnosticBundle struct {
	CapturedAt time.Time
	Pods       []PodDiagnostic
	// NamespaceEvents holds every Event object gathered while building
	// Pods, deduplicated by summary text, in API list order.
	NamespaceEvents []string
}

// CaptureDiagnostics gathers pod phase and related events for resources,
// the data an AtomicUpgradeFailedError needs. It is read-only: called
// strictly before any rollback delete, which may remove the evidence.
//
// Event capture depends on kube.InterfaceResources.Get's related-object
// discovery, which is best-effort for controllers sherpack doesn't special
// case (see pkg/kube's appendRelated); pods owned by a Deployment/
// StatefulSet/DaemonSet/Job are still resolved because those are the kinds
// the wave apply path itself waits on.
func (c *Configuration) CaptureDiagnostics(resources kube.ResourceList) *DiagnosticBundle {
	bundle := &DiagnosticBundle{CapturedAt: time.Now()}

	related, ok := c.KubeClient.(kube.InterfaceResources)
	if !ok {
		return bundle
	}
	objects, err := related.Get(resources, true)
	if err != nil {
		c.logger().Warn("failed to capture diagnostics", "error", err)
		return bundle
	}

	seen := map[string]bool{}
	for _, obj := range objects["Event"] {
		summary := summarizeEvent(obj)
		if summary == "" || seen[summary] {
			continue
		}
		seen[summary] = true
		bundle.NamespaceEvents = append(bundle.NamespaceEvents, summary)
	}

	for _, obj := range objects["Pod"] {
		pod, ok := asPod(obj)
		if !ok {
			continue
		}
		bundle.Pods = append(bundle.Pods, PodDiagnostic{
			Name:   pod.Name,
			Phase:  string(pod.Status.Phase),
			Events: eventsFor(pod.Name, objects["Event"]),
		})
	}

	return bundle
}

// asPod converts the dynamic client's unstructured.Unstructured into a
// typed corev1.Pod; kube.Interface deals exclusively in runtime.Object
// backed by unstructured content, so every typed read goes through this.
func asPod(obj runtime.Object) (*corev1.Pod, bool) {
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		return nil, false
	}
	var pod corev1.Pod
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, &pod); err != nil {
		return nil, false
	}
	return &pod, true
}

func asCRD(obj runtime.Object) (*apiextensionsv1.CustomResourceDefinition, bool) {
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		return nil, false
	}
	var crd apiextensionsv1.CustomResourceDefinition
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, &crd); err != nil {
		return nil, false
	}
	return &crd, true
}

func asEvent(obj runtime.Object) (*corev1.Event, bool) {
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		return nil, false
	}
	var ev corev1.Event
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, &ev); err != nil {
		return nil, false
	}
	return &ev, true
}

func summarizeEvent(obj runtime.Object) string {
	ev, ok := asEvent(obj)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s %s/%s: %s", ev.Type, ev.Reason, ev.InvolvedObject.Name, ev.Message)
}

func eventsFor(podName string, events []runtime.Object) []string {
	var out []string
	for _, obj := range events {
		ev, ok := asEvent(obj)
		if !ok || ev.InvolvedObject.Name != podName {
			continue
		}
		out = append(out, summarizeEvent(obj))
	}
	return out
}
