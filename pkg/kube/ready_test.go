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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func unstr(obj map[string]interface{}) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: obj}
}

func TestIsReadyNonUnstructuredDefaultsTrue(t *testing.T) {
	ready, err := isReady(nil)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestIsReadyUnknownKindDefaultsTrue(t *testing.T) {
	ready, err := isReady(unstr(map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
	}))
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestIsReadyDeploymentNotReadyWhenUpdatedReplicasShort(t *testing.T) {
	obj := unstr(map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"spec":       map[string]interface{}{"replicas": int64(3)},
		"status": map[string]interface{}{
			"observedGeneration": int64(1),
			"updatedReplicas":    int64(2),
			"replicas":           int64(3),
			"availableReplicas":  int64(2),
		},
	})
	ready, err := isReady(obj)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestIsReadyDeploymentReadyWhenAllReplicasMatch(t *testing.T) {
	obj := unstr(map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata":   map[string]interface{}{"generation": int64(1)},
		"spec":       map[string]interface{}{"replicas": int64(2)},
		"status": map[string]interface{}{
			"observedGeneration": int64(1),
			"updatedReplicas":    int64(2),
			"replicas":           int64(2),
			"availableReplicas":  int64(2),
		},
	})
	ready, err := isReady(obj)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestIsReadyDeploymentNotReadyWhenGenerationOutOfDate(t *testing.T) {
	obj := unstr(map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata":   map[string]interface{}{"generation": int64(2)},
		"spec":       map[string]interface{}{"replicas": int64(1)},
		"status": map[string]interface{}{
			"observedGeneration": int64(1),
			"updatedReplicas":    int64(1),
			"replicas":           int64(1),
			"availableReplicas":  int64(1),
		},
	})
	ready, err := isReady(obj)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestIsReadyJobCompleteWhenConditionTrue(t *testing.T) {
	obj := unstr(map[string]interface{}{
		"apiVersion": "batch/v1",
		"kind":       "Job",
		"status": map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"type": "Complete", "status": "True"},
			},
		},
	})
	ready, err := isReady(obj)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestIsReadyJobNotReadyWithoutCompleteCondition(t *testing.T) {
	obj := unstr(map[string]interface{}{
		"apiVersion": "batch/v1",
		"kind":       "Job",
		"status":     map[string]interface{}{},
	})
	ready, err := isReady(obj)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestIsReadyPodRunningAndReady(t *testing.T) {
	obj := unstr(map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"status": map[string]interface{}{
			"phase": "Running",
			"conditions": []interface{}{
				map[string]interface{}{"type": "Ready", "status": "True"},
			},
		},
	})
	ready, err := isReady(obj)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestIsReadyPodSucceededCountsAsReady(t *testing.T) {
	obj := unstr(map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"status":     map[string]interface{}{"phase": "Succeeded"},
	})
	ready, err := isReady(obj)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestIsReadyPodPendingNotReady(t *testing.T) {
	obj := unstr(map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"status":     map[string]interface{}{"phase": "Pending"},
	})
	ready, err := isReady(obj)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestIsReadyServiceNonLoadBalancerAlwaysReady(t *testing.T) {
	obj := unstr(map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Service",
		"spec":       map[string]interface{}{"type": "ClusterIP"},
	})
	ready, err := isReady(obj)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestIsReadyServiceLoadBalancerWaitsForIngress(t *testing.T) {
	obj := unstr(map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Service",
		"spec":       map[string]interface{}{"type": "LoadBalancer"},
		"status":     map[string]interface{}{"loadBalancer": map[string]interface{}{}},
	})
	ready, err := isReady(obj)
	require.NoError(t, err)
	assert.False(t, ready)

	obj2 := unstr(map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Service",
		"spec":       map[string]interface{}{"type": "LoadBalancer"},
		"status": map[string]interface{}{
			"loadBalancer": map[string]interface{}{
				"ingress": []interface{}{map[string]interface{}{"ip": "1.2.3.4"}},
			},
		},
	})
	ready2, err := isReady(obj2)
	require.NoError(t, err)
	assert.True(t, ready2)
}

func TestIsReadyCRDEstablished(t *testing.T) {
	notEstablished := unstr(map[string]interface{}{
		"apiVersion": "apiextensions.k8s.io/v1",
		"kind":       "CustomResourceDefinition",
		"status":     map[string]interface{}{"conditions": []interface{}{}},
	})
	ready, err := isReady(notEstablished)
	require.NoError(t, err)
	assert.False(t, ready)

	established := unstr(map[string]interface{}{
		"apiVersion": "apiextensions.k8s.io/v1",
		"kind":       "CustomResourceDefinition",
		"status": map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"type": "Established", "status": "True"},
			},
		},
	})
	ready2, err := isReady(established)
	require.NoError(t, err)
	assert.True(t, ready2)
}

func TestJobCompleteNonJobKindIsAlwaysComplete(t *testing.T) {
	obj := unstr(map[string]interface{}{"apiVersion": "v1", "kind": "Pod"})
	assert.True(t, jobComplete(obj))
}

func TestJobCompleteTrueOnCompleteOrFailedCondition(t *testing.T) {
	complete := unstr(map[string]interface{}{
		"apiVersion": "batch/v1",
		"kind":       "Job",
		"status": map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"type": "Complete", "status": "True"},
			},
		},
	})
	assert.True(t, jobComplete(complete))

	failed := unstr(map[string]interface{}{
		"apiVersion": "batch/v1",
		"kind":       "Job",
		"status": map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"type": "Failed", "status": "True"},
			},
		},
	})
	assert.True(t, jobComplete(failed))
}

func TestJobCompleteFalseWhileRunning(t *testing.T) {
	running := unstr(map[string]interface{}{
		"apiVersion": "batch/v1",
		"kind":       "Job",
		"status":     map[string]interface{}{"conditions": []interface{}{}},
	})
	assert.False(t, jobComplete(running))
}
