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
	"bytes"
	"testing"

	"sherpack.sh/sherpack/pkg/release"
)

func buildManifestsForTestKindSorter() []Manifest {
	mk := func(name, kind string) Manifest {
		return Manifest{Name: name, Head: &SimpleHead{Kind: kind}}
	}
	return []Manifest{
		mk("E", "SecretList"),
		mk("i", "ClusterRole"),
		mk("I", "ClusterRoleList"),
		mk("j", "ClusterRoleBinding"),
		mk("J", "ClusterRoleBindingList"),
		mk("f", "ConfigMap"),
		mk("u", "CronJob"),
		mk("2", "CustomResourceDefinition"),
		mk("n", "DaemonSet"),
		mk("r", "Deployment"),
		mk("!", "HonkyTonkSet"),
		mk("v", "Ingress"),
		mk("t", "Job"),
		mk("c", "LimitRange"),
		mk("a", "Namespace"),
		mk("A", "NetworkPolicy"),
		mk("g", "PersistentVolume"),
		mk("h", "PersistentVolumeClaim"),
		mk("o", "Pod"),
		mk("3", "PodDisruptionBudget"),
		mk("C", "PodSecurityPolicy"),
		mk("q", "ReplicaSet"),
		mk("p", "ReplicationController"),
		mk("b", "ResourceQuota"),
		mk("k", "Role"),
		mk("K", "RoleList"),
		mk("l", "RoleBinding"),
		mk("L", "RoleBindingList"),
		mk("e", "Secret"),
		mk("m", "Service"),
		mk("d", "ServiceAccount"),
		mk("s", "StatefulSet"),
		mk("1", "StorageClass"),
		mk("w", "APIService"),
		mk("x", "HorizontalPodAutoscaler"),
		mk("N", "NginxVhost"),
		mk("U", "Unknown"),
		mk("R", "Registration"),
	}
}

func TestKindSorter(t *testing.T) {
	manifests := buildManifestsForTestKindSorter()

	for _, test := range []struct {
		description string
		order       KindSortOrder
		expected    string
	}{
		{"install", InstallOrder, "a2AcbCdikjlfe1ghmvrnsqotuxEIJ!3pKLwNUR"},
		{"uninstall", UninstallOrder, "EIJ!3pKLwNURxutoqsnrvmhg1efjlikdCcb2Aa"},
	} {
		t.Run(test.description, func(t *testing.T) {
			var buf bytes.Buffer
			orig := manifests
			got := sortManifestsByKind(manifests, test.order)
			if len(got) != len(test.expected) {
				t.Fatalf("expected %d names, got %d", len(test.expected), len(got))
			}
			for _, r := range got {
				buf.WriteString(r.Name)
			}
			if s := buf.String(); s != test.expected {
				t.Errorf("expected %q, got %q", test.expected, s)
			}
			for i, m := range orig {
				if m != manifests[i] {
					t.Fatal("expected input to sortManifestsByKind to stay unchanged")
				}
			}
		})
	}
}

// TestKindSorterKeepOriginalOrder verifies manifests of the same kind keep
// their original relative order rather than being re-sorted by name.
func TestKindSorterKeepOriginalOrder(t *testing.T) {
	mk := func(name, kind string) Manifest {
		return Manifest{Name: name, Head: &SimpleHead{Kind: kind}}
	}
	manifests := []Manifest{
		mk("a", "ClusterRole"),
		mk("A", "ClusterRole"),
		mk("0", "ConfigMap"),
		mk("1", "ConfigMap"),
		mk("z", "ClusterRoleBinding"),
		mk("!", "ClusterRoleBinding"),
		mk("u2", "Unknown"),
		mk("u1", "Unknown"),
		mk("t3", "Unknown2"),
	}
	var buf bytes.Buffer
	for _, r := range sortManifestsByKind(manifests, InstallOrder) {
		buf.WriteString(r.Name)
	}
	if got, want := buf.String(), "aAz!01u2u1t3"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestKindSorterNamespaceAgainstUnknown(t *testing.T) {
	unknown := Manifest{Name: "a", Head: &SimpleHead{Kind: "Unknown"}}
	namespace := Manifest{Name: "b", Head: &SimpleHead{Kind: "Namespace"}}

	got := sortManifestsByKind([]Manifest{unknown, namespace}, InstallOrder)
	if got[0].Name != "b" || got[1].Name != "a" {
		t.Errorf("expected namespace before unknown, got %q then %q", got[0].Name, got[1].Name)
	}
}

func TestKindSorterWaveBeatsKind(t *testing.T) {
	mk := func(name, kind string, wave int) Manifest {
		h := &SimpleHead{Kind: kind, Metadata: &struct {
			Name        string            `json:"name"`
			Namespace   string            `json:"namespace"`
			Annotations map[string]string `json:"annotations"`
		}{Name: name, Annotations: map[string]string{release.WaveAnnotation: itoa(wave)}}}
		return Manifest{Name: name, Head: h}
	}
	manifests := []Manifest{
		mk("deploy-wave0", "Deployment", 0),
		mk("cm-wave1", "ConfigMap", 1),
	}
	got := sortManifestsByKind(manifests, InstallOrder)
	if got[0].Name != "deploy-wave0" {
		t.Errorf("expected lower wave first regardless of kind, got %q first", got[0].Name)
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

func TestKindSorterForHooks(t *testing.T) {
	hooks := []*release.Hook{
		{Name: "i", Kind: "ClusterRole"},
		{Name: "j", Kind: "ClusterRoleBinding"},
		{Name: "c", Kind: "LimitRange"},
		{Name: "a", Kind: "Namespace"},
	}

	for _, test := range []struct {
		description string
		order       KindSortOrder
		expected    string
	}{
		{"install", InstallOrder, "acij"},
		{"uninstall", UninstallOrder, "jica"},
	} {
		t.Run(test.description, func(t *testing.T) {
			var buf bytes.Buffer
			for _, h := range sortHooksByKind(hooks, test.order) {
				buf.WriteString(h.Name)
			}
			if got := buf.String(); got != test.expected {
				t.Errorf("expected %q, got %q", test.expected, got)
			}
		})
	}
}

func TestKindSorterHookWeightBeatsKind(t *testing.T) {
	hooks := []*release.Hook{
		{Name: "late", Kind: "Namespace", Weight: 5},
		{Name: "early", Kind: "Job", Weight: -5},
	}
	got := sortHooksByKind(hooks, InstallOrder)
	if got[0].Name != "early" {
		t.Errorf("expected weight to beat kind ordering, got %q first", got[0].Name)
	}
}
