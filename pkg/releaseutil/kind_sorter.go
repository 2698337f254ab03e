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

package releaseutil

import (
	"sort"

	"sherpack.sh/sherpack/pkg/release"
)

// KindSortOrder selects the direction resources are walked: creation
// order for installs and upgrades, its reverse for deletion.
type KindSortOrder int

const (
	InstallOrder KindSortOrder = iota
	UninstallOrder
)

// kindWeight is the creation-order table. Lower weights apply first:
// namespaces and CRDs before anything that could live in or instantiate
// them, RBAC before the workloads that authenticate with it, config
// before the workloads that mount it, autoscalers after the workloads
// they target. Kinds with equal weight have no ordering constraint
// between them.
var kindWeight = map[string]int{
	"Namespace":                0,
	"NetworkPolicy":            5,
	"CustomResourceDefinition": 5,
	"ResourceQuota":            9,
	"LimitRange":               9,
	"PodSecurityPolicy":        10,
	"ServiceAccount":           12,
	"Role":                     13,
	"ClusterRole":              13,
	"RoleBinding":              14,
	"ClusterRoleBinding":       14,
	"ConfigMap":                20,
	"Secret":                   21,
	"StorageClass":             25,
	"PersistentVolume":         26,
	"PersistentVolumeClaim":    27,
	"Service":                  30,
	"Ingress":                  34,
	"Deployment":               40,
	"DaemonSet":                41,
	"StatefulSet":              42,
	"ReplicaSet":               43,
	"Pod":                      44,
	"Job":                      50,
	"CronJob":                  51,
	"HorizontalPodAutoscaler":  60,
}

// unknownKindWeight places kinds the table does not name after every
// named kind on install (and so before them on uninstall).
const unknownKindWeight = 1000

// KindWeight returns kind's weight in the creation-order table. Kinds the
// table does not name sort after every named kind, keeping their relative
// input order.
func KindWeight(kind string) int {
	if w, ok := kindWeight[kind]; ok {
		return w
	}
	return unknownKindWeight
}

// lessByKind orders two kinds by table weight in the direction order
// selects. Equal weights compare equal, letting the stable sort preserve
// the original relative order rather than inventing an alphabetical one.
func lessByKind(kindA, kindB string, order KindSortOrder) bool {
	wa, wb := KindWeight(kindA), KindWeight(kindB)
	if order == UninstallOrder {
		return wa > wb
	}
	return wa < wb
}

func sortManifestsByKind(manifests []Manifest, order KindSortOrder) []Manifest {
	out := make([]Manifest, len(manifests))
	copy(out, manifests)
	sort.SliceStable(out, func(i, j int) bool {
		if w1, w2 := waveOf(out[i].Head), waveOf(out[j].Head); w1 != w2 {
			if order == UninstallOrder {
				return w1 > w2
			}
			return w1 < w2
		}
		return lessByKind(out[i].Head.Kind, out[j].Head.Kind, order)
	})
	return out
}

func sortHooksByKind(hooks []*release.Hook, order KindSortOrder) []*release.Hook {
	out := make([]*release.Hook, len(hooks))
	copy(out, hooks)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight < out[j].Weight
		}
		return lessByKind(out[i].Kind, out[j].Kind, order)
	})
	return out
}
