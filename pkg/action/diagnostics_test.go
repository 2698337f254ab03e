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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

func unstructuredPod(name, phase string) runtime.Object {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata":   map[string]interface{}{"name": name},
		"status":     map[string]interface{}{"phase": phase},
	}}
}

func unstructuredEvent(involvedName, evtType, reason, message string) runtime.Object {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion":     "v1",
		"kind":           "Event",
		"type":           evtType,
		"reason":         reason,
		"message":        message,
		"involvedObject": map[string]interface{}{"name": involvedName},
	}}
}

func TestAsPodConvertsUnstructured(t *testing.T) {
	pod, ok := asPod(unstructuredPod("web-0", "Running"))
	require.True(t, ok)
	assert.Equal(t, "web-0", pod.Name)
	assert.Equal(t, "Running", string(pod.Status.Phase))
}

func TestAsPodRejectsNonUnstructured(t *testing.T) {
	_, ok := asPod(nil)
	assert.False(t, ok)
}

func TestSummarizeEventFormatsTypeReasonMessage(t *testing.T) {
	s := summarizeEvent(unstructuredEvent("web-0", "Warning", "BackOff", "back-off restarting failed container"))
	assert.Equal(t, "Warning BackOff/web-0: back-off restarting failed container", s)
}

func TestSummarizeEventIgnoresNonEvent(t *testing.T) {
	s := summarizeEvent(unstructuredPod("web-0", "Running"))
	assert.Equal(t, "", s)
}

func TestEventsForFiltersByInvolvedObjectName(t *testing.T) {
	events := []runtime.Object{
		unstructuredEvent("web-0", "Normal", "Scheduled", "placed on node"),
		unstructuredEvent("web-1", "Warning", "Failed", "image pull failed"),
	}
	got := eventsFor("web-0", events)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "web-0")
}

func TestCaptureDiagnosticsWithoutInterfaceResourcesReturnsEmptyBundle(t *testing.T) {
	c := &Configuration{KubeClient: nil}
	bundle := c.CaptureDiagnostics(nil)
	require.NotNil(t, bundle)
	assert.Empty(t, bundle.Pods)
	assert.Empty(t, bundle.NamespaceEvents)
}
