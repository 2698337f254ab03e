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
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// isReady dispatches to a kind-specific readiness check. Kinds with no
// specific check (ConfigMap, Secret, ServiceAccount, ...) are considered
// ready as soon as they exist, matching the legacy waiter's conservative
// default.
func isReady(obj runtime.Object) (bool, error) {
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		return true, nil
	}
	switch u.GetKind() {
	case "Deployment":
		var d appsv1.Deployment
		if err := fromUnstructured(u, &d); err != nil {
			return false, err
		}
		return deploymentReady(&d), nil
	case "StatefulSet":
		var s appsv1.StatefulSet
		if err := fromUnstructured(u, &s); err != nil {
			return false, err
		}
		return statefulSetReady(&s), nil
	case "DaemonSet":
		var d appsv1.DaemonSet
		if err := fromUnstructured(u, &d); err != nil {
			return false, err
		}
		return daemonSetReady(&d), nil
	case "Job":
		var j batchv1.Job
		if err := fromUnstructured(u, &j); err != nil {
			return false, err
		}
		return jobReady(&j), nil
	case "Pod":
		var p corev1.Pod
		if err := fromUnstructured(u, &p); err != nil {
			return false, err
		}
		return podReady(&p), nil
	case "PersistentVolumeClaim":
		var p corev1.PersistentVolumeClaim
		if err := fromUnstructured(u, &p); err != nil {
			return false, err
		}
		return p.Status.Phase == corev1.ClaimBound, nil
	case "Service":
		var s corev1.Service
		if err := fromUnstructured(u, &s); err != nil {
			return false, err
		}
		return serviceReady(&s), nil
	case "CustomResourceDefinition":
		return crdEstablished(u), nil
	default:
		return true, nil
	}
}

func fromUnstructured(u *unstructured.Unstructured, out interface{}) error {
	return runtime.DefaultUnstructuredConverter.FromUnstructured(u.UnstructuredContent(), out)
}

func deploymentReady(d *appsv1.Deployment) bool {
	var wanted int32 = 1
	if d.Spec.Replicas != nil {
		wanted = *d.Spec.Replicas
	}
	if d.Generation > d.Status.ObservedGeneration {
		return false
	}
	return d.Status.UpdatedReplicas == wanted &&
		d.Status.Replicas == wanted &&
		d.Status.AvailableReplicas == wanted
}

func statefulSetReady(s *appsv1.StatefulSet) bool {
	var wanted int32 = 1
	if s.Spec.Replicas != nil {
		wanted = *s.Spec.Replicas
	}
	if s.Status.ObservedGeneration == 0 || s.Generation > s.Status.ObservedGeneration {
		return false
	}
	if s.Spec.UpdateStrategy.Type != appsv1.RollingUpdateStatefulSetStrategyType {
		return s.Status.ReadyReplicas == wanted
	}
	if s.Status.UpdateRevision != s.Status.CurrentRevision {
		return false
	}
	return s.Status.ReadyReplicas == wanted && s.Status.UpdatedReplicas == wanted
}

func daemonSetReady(d *appsv1.DaemonSet) bool {
	if d.Spec.UpdateStrategy.Type == appsv1.OnDeleteDaemonSetStrategyType {
		return true
	}
	if d.Generation > d.Status.ObservedGeneration {
		return false
	}
	return d.Status.UpdatedNumberScheduled == d.Status.DesiredNumberScheduled &&
		d.Status.NumberAvailable == d.Status.DesiredNumberScheduled
}

func jobReady(j *batchv1.Job) bool {
	for _, c := range j.Status.Conditions {
		if c.Type == batchv1.JobComplete && c.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

func podReady(p *corev1.Pod) bool {
	if p.Status.Phase == corev1.PodSucceeded {
		return true
	}
	if p.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, c := range p.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

func serviceReady(s *corev1.Service) bool {
	if s.Spec.Type != corev1.ServiceTypeLoadBalancer {
		return true
	}
	return len(s.Status.LoadBalancer.Ingress) > 0
}

func crdEstablished(u *unstructured.Unstructured) bool {
	conditions, found, err := unstructured.NestedSlice(u.UnstructuredContent(), "status", "conditions")
	if err != nil || !found {
		return false
	}
	for _, c := range conditions {
		m, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if m["type"] == "Established" && m["status"] == "True" {
			return true
		}
	}
	return false
}

// jobComplete reports whether a Job resource has finished, used by
// WaitWithJobs to decide when it may stop polling a Job it is tracking.
func jobComplete(obj runtime.Object) bool {
	u, ok := obj.(*unstructured.Unstructured)
	if !ok || u.GetKind() != "Job" {
		return true
	}
	var j batchv1.Job
	if err := fromUnstructured(u, &j); err != nil {
		return false
	}
	for _, c := range j.Status.Conditions {
		if (c.Type == batchv1.JobComplete || c.Type == batchv1.JobFailed) && c.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}
