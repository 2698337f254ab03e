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
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/cli-runtime/pkg/resource"
)

func info(name, kind string, wave int) *resource.Info {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       kind,
		"metadata": map[string]interface{}{
			"name": name,
		},
	}}
	if wave != 0 {
		obj.SetAnnotations(map[string]string{"sherpack.sh/wave": strconv.Itoa(wave)})
	}
	return &resource.Info{
		Name:      name,
		Namespace: "default",
		Object:    obj,
		Mapping: &meta.RESTMapping{
			GroupVersionKind: schema.GroupVersionKind{Version: "v1", Kind: kind},
		},
	}
}

func TestResourceListContainsAndDifference(t *testing.T) {
	a := info("svc-a", "Service", 0)
	b := info("svc-b", "Service", 0)
	c := info("svc-c", "Service", 0)

	left := ResourceList{a, b}
	right := ResourceList{b, c}

	assert.True(t, left.Contains(b))
	assert.False(t, left.Contains(c))

	diff := left.Difference(right)
	require.Len(t, diff, 1)
	assert.Equal(t, "svc-a", diff[0].Name)

	inter := left.Intersect(right)
	require.Len(t, inter, 1)
	assert.Equal(t, "svc-b", inter[0].Name)
}

func TestResourceListFilter(t *testing.T) {
	list := ResourceList{info("a", "Service", 0), info("b", "ConfigMap", 0)}
	got := list.Filter(func(i *resource.Info) bool { return i.Mapping.GroupVersionKind.Kind == "Service" })
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)
}

func TestResourceListSortByCreationOrderRanksNamespaceBeforeDeployment(t *testing.T) {
	list := ResourceList{
		info("web", "Deployment", 0),
		info("ns", "Namespace", 0),
		info("cfg", "ConfigMap", 0),
	}
	sorted := list.SortByCreationOrder()
	require.Len(t, sorted, 3)
	assert.Equal(t, "ns", sorted[0].Name)
	assert.Equal(t, "web", sorted[len(sorted)-1].Name)
}

func TestResourceListSortByDeletionOrderReversesCreationOrder(t *testing.T) {
	list := ResourceList{
		info("ns", "Namespace", 0),
		info("web", "Deployment", 0),
	}
	sorted := list.SortByDeletionOrder()
	require.Len(t, sorted, 2)
	assert.Equal(t, "web", sorted[0].Name)
	assert.Equal(t, "ns", sorted[1].Name)
}

func TestResourceListGroupVersionKindsDeduplicates(t *testing.T) {
	list := ResourceList{info("a", "Service", 0), info("b", "Service", 0), info("c", "ConfigMap", 0)}
	gvks := list.GroupVersionKinds()
	assert.Len(t, gvks, 2)
}
