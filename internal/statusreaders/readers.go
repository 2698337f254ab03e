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

// Package statusreaders supplies kstatus readers for Jobs and Pods whose
// notion of "done" is terminal completion rather than steady-state
// readiness. Hook resources are awaited with these: a hook Job is only
// satisfied once it completes, and a hook Pod once it succeeds.
package statusreaders

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"sigs.k8s.io/cli-utils/pkg/kstatus/polling/engine"
	"sigs.k8s.io/cli-utils/pkg/kstatus/polling/event"
	"sigs.k8s.io/cli-utils/pkg/kstatus/polling/statusreaders"
	"sigs.k8s.io/cli-utils/pkg/kstatus/status"
	"sigs.k8s.io/cli-utils/pkg/object"
)

// terminalStatusReader narrows a generic kstatus reader to one GroupKind
// with a custom condition function.
type terminalStatusReader struct {
	gk      schema.GroupKind
	generic engine.StatusReader
}

func (r *terminalStatusReader) Supports(gk schema.GroupKind) bool { return gk == r.gk }

func (r *terminalStatusReader) ReadStatus(ctx context.Context, reader engine.ClusterReader, resource object.ObjMetadata) *event.ResourceStatus {
	return r.generic.ReadStatus(ctx, reader, resource)
}

func (r *terminalStatusReader) ReadStatusForObject(ctx context.Context, reader engine.ClusterReader, resource *unstructured.Unstructured) *event.ResourceStatus {
	return r.generic.ReadStatusForObject(ctx, reader, resource)
}

// NewJobStatusReader reports a Job as Current only once it has completed,
// not merely when it is progressing.
func NewJobStatusReader(mapper meta.RESTMapper) engine.StatusReader {
	return &terminalStatusReader{
		gk:      batchv1.SchemeGroupVersion.WithKind("Job").GroupKind(),
		generic: statusreaders.NewGenericStatusReader(mapper, jobConditions),
	}
}

// NewPodStatusReader reports a Pod as Current only once it has succeeded.
func NewPodStatusReader(mapper meta.RESTMapper) engine.StatusReader {
	return &terminalStatusReader{
		gk:      corev1.SchemeGroupVersion.WithKind("Pod").GroupKind(),
		generic: statusreaders.NewGenericStatusReader(mapper, podConditions),
	}
}

// jobConditions derives a terminal status from a Job's Complete/Failed
// conditions. Ref for the stock non-terminal version:
// https://github.com/kubernetes-sigs/cli-utils/blob/v0.29.4/pkg/kstatus/status/core.go
func jobConditions(u *unstructured.Unstructured) (*status.Result, error) {
	obj := u.UnstructuredContent()

	parallelism := status.GetIntField(obj, ".spec.parallelism", 1)
	completions := status.GetIntField(obj, ".spec.completions", parallelism)
	succeeded := status.GetIntField(obj, ".status.succeeded", 0)
	failed := status.GetIntField(obj, ".status.failed", 0)

	objc, err := status.GetObjectWithConditions(obj)
	if err != nil {
		return nil, err
	}
	for _, c := range objc.Status.Conditions {
		switch c.Type {
		case "Complete":
			if c.Status == corev1.ConditionTrue {
				return &status.Result{
					Status:     status.CurrentStatus,
					Message:    fmt.Sprintf("job completed, succeeded: %d/%d", succeeded, completions),
					Conditions: []status.Condition{},
				}, nil
			}
		case "Failed":
			if c.Status == corev1.ConditionTrue {
				message := fmt.Sprintf("job failed, failed: %d/%d", failed, completions)
				return &status.Result{
					Status:  status.FailedStatus,
					Message: message,
					Conditions: []status.Condition{{
						Type:    status.ConditionStalled,
						Status:  corev1.ConditionTrue,
						Reason:  "JobFailed",
						Message: message,
					}},
				}, nil
			}
		}
	}

	message := "job in progress"
	return &status.Result{
		Status:  status.InProgressStatus,
		Message: message,
		Conditions: []status.Condition{{
			Type:    status.ConditionReconciling,
			Status:  corev1.ConditionTrue,
			Reason:  "JobInProgress",
			Message: message,
		}},
	}, nil
}

// podConditions maps a Pod phase onto a terminal status: Succeeded is
// Current, Failed is Failed, everything else (including Running) is still
// in progress.
func podConditions(u *unstructured.Unstructured) (*status.Result, error) {
	obj := u.UnstructuredContent()
	phase := status.GetStringField(obj, ".status.phase", "")
	switch corev1.PodPhase(phase) {
	case corev1.PodSucceeded:
		message := fmt.Sprintf("pod %s succeeded", u.GetName())
		return &status.Result{
			Status:  status.CurrentStatus,
			Message: message,
			Conditions: []status.Condition{{
				Type:    status.ConditionStalled,
				Status:  corev1.ConditionTrue,
				Message: message,
			}},
		}, nil
	case corev1.PodFailed:
		message := fmt.Sprintf("pod %s failed", u.GetName())
		return &status.Result{
			Status:  status.FailedStatus,
			Message: message,
			Conditions: []status.Condition{{
				Type:    status.ConditionStalled,
				Status:  corev1.ConditionTrue,
				Reason:  "PodFailed",
				Message: message,
			}},
		}, nil
	default:
		message := "pod in progress"
		return &status.Result{
			Status:  status.InProgressStatus,
			Message: message,
			Conditions: []status.Condition{{
				Type:    status.ConditionReconciling,
				Status:  corev1.ConditionTrue,
				Reason:  "PodInProgress",
				Message: message,
			}},
		}, nil
	}
}
