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

package driver

import (
	"testing"

	"k8s.io/client-go/kubernetes/fake"

	"sherpack.sh/sherpack/pkg/release"
)

func fixtureConfigMaps(t *testing.T) *ConfigMaps {
	t.Helper()
	client := fake.NewSimpleClientset()
	return NewConfigMaps(client.CoreV1().ConfigMaps("default"))
}

func TestConfigMapsCreateGetUpdate(t *testing.T) {
	c := fixtureConfigMaps(t)
	rls := stubRelease("rls-a", 1, release.StatusPendingInstall)

	if err := c.Create(releaseKey(rls.Name, rls.Revision), rls); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	rls.State = release.StatusDeployed
	if err := c.Update(releaseKey(rls.Name, rls.Revision), rls); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	got, err := c.Get(releaseKey(rls.Name, rls.Revision))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got.State != release.StatusDeployed {
		t.Errorf("expected deployed, got %s", got.State)
	}
}

func TestConfigMapsUpdateMissing(t *testing.T) {
	c := fixtureConfigMaps(t)
	if err := c.Update(releaseKey("rls-a", 1), stubRelease("rls-a", 1, release.StatusDeployed)); err == nil {
		t.Fatal("expected error updating a release that was never created")
	}
}
