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
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherpack.sh/sherpack/pkg/engine"
	"sherpack.sh/sherpack/pkg/kube/fake"
	"sherpack.sh/sherpack/pkg/pack"
	"sherpack.sh/sherpack/pkg/release"
	"sherpack.sh/sherpack/pkg/storage"
	"sherpack.sh/sherpack/pkg/storage/driver"
)

func testConfiguration() *Configuration {
	return &Configuration{
		Storage:    storage.Init(driver.NewMemory()),
		KubeClient: &fake.PrintingKubeClient{Out: &bytes.Buffer{}},
		Engine:     engine.New(),
	}
}

func testPack(suffix string) *pack.Pack {
	return &pack.Pack{
		Metadata: &pack.Metadata{Name: "demo", Version: "1.0.0"},
		Templates: []*pack.File{
			{Name: "templates/configmap.yaml", Data: []byte(
				"apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: demo\ndata:\n  suffix: " + suffix + "\n",
			)},
		},
	}
}

func TestInstallThenUpgradeLifecycle(t *testing.T) {
	c := testConfiguration()
	ctx := context.Background()

	rel, err := c.Install(ctx, testPack("{{ values.suffix | default(\"x\") }}"), nil, InstallOptions{
		ReleaseName: "demo",
		Namespace:   "default",
	})
	require.NoError(t, err)
	assert.Equal(t, release.StatusDeployed, rel.State)
	assert.Equal(t, uint32(1), rel.Revision)

	upgraded, err := c.Upgrade(ctx, "demo", testPack("{{ values.suffix | default(\"x\") }}"), nil, UpgradeOptions{
		Namespace: "default",
		Overlays:  []ValueOverlay{{Source: "--set", Values: map[string]interface{}{"suffix": "v2"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, release.StatusDeployed, upgraded.State)
	assert.Equal(t, uint32(2), upgraded.Revision)
	assert.Contains(t, upgraded.RenderedManifest, "suffix: v2")

	previous, err := c.Storage.Get("demo", 1)
	require.NoError(t, err)
	assert.Equal(t, release.StatusSuperseded, previous.State)
}

// TestUpgradeReuseValuesSeedsFromPriorRevision covers the ResetValues and
// ReuseValues modes: a ResetValues upgrade drops the install's overlay, and
// a following ReuseValues upgrade seeds from that reset revision, so the
// dropped value does not come back.
func TestUpgradeReuseValuesSeedsFromPriorRevision(t *testing.T) {
	c := testConfiguration()
	ctx := context.Background()

	_, err := c.Install(ctx, testPack("{{ values.suffix | default(\"x\") }}"), nil, InstallOptions{
		ReleaseName: "demo",
		Namespace:   "default",
		Overlays:    []ValueOverlay{{Source: "--set", Values: map[string]interface{}{"suffix": "v1"}}},
	})
	require.NoError(t, err)

	reset, err := c.Upgrade(ctx, "demo", testPack("{{ values.suffix | default(\"x\") }}"), nil, UpgradeOptions{
		Namespace: "default",
		Values:    ResetValues,
	})
	require.NoError(t, err)
	assert.Contains(t, reset.RenderedManifest, "suffix: x", "ResetValues must not carry the prior revision's overlay forward")

	reused, err := c.Upgrade(ctx, "demo", testPack("{{ values.suffix | default(\"x\") }}"), nil, UpgradeOptions{
		Namespace: "default",
		Values:    ReuseValues,
	})
	require.NoError(t, err)
	assert.Contains(t, reused.RenderedManifest, "suffix: x", "reuse-values seeds from the immediately prior revision's applied values, which were just reset")
}

// TestDiffShowsChangeWithoutApplying covers --diff: the
// call must compute the structural diff against the deployed revision
// without mutating Storage or advancing the revision counter.
func TestDiffShowsChangeWithoutApplying(t *testing.T) {
	c := testConfiguration()
	ctx := context.Background()

	_, err := c.Install(ctx, testPack("{{ values.suffix | default(\"x\") }}"), nil, InstallOptions{
		ReleaseName: "demo",
		Namespace:   "default",
	})
	require.NoError(t, err)

	diffs, err := c.Diff(ctx, "demo", testPack("{{ values.suffix | default(\"x\") }}"), nil, UpgradeOptions{
		Namespace: "default",
		Overlays:  []ValueOverlay{{Source: "--set", Values: map[string]interface{}{"suffix": "v2"}}},
	})
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.True(t, diffs[0].Changed)
	assert.Contains(t, diffs[0].Unified, "-  suffix: x")
	assert.Contains(t, diffs[0].Unified, "+  suffix: v2")

	current, err := c.Storage.Deployed("demo")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), current.Revision, "Diff must not persist a new revision")
}

func TestRollbackToPriorRevision(t *testing.T) {
	c := testConfiguration()
	ctx := context.Background()

	_, err := c.Install(ctx, testPack("{{ values.suffix | default(\"x\") }}"), nil, InstallOptions{
		ReleaseName: "demo",
		Namespace:   "default",
	})
	require.NoError(t, err)

	_, err = c.Upgrade(ctx, "demo", testPack("{{ values.suffix | default(\"x\") }}"), nil, UpgradeOptions{
		Namespace: "default",
		Overlays:  []ValueOverlay{{Source: "--set", Values: map[string]interface{}{"suffix": "v2"}}},
	})
	require.NoError(t, err)

	rel, err := c.Rollback("demo", RollbackOptions{ToRevision: 1})
	require.NoError(t, err)
	assert.Equal(t, release.StatusDeployed, rel.State)
	assert.Equal(t, uint32(3), rel.Revision, "rollback promotes the target's content into a new revision")
	assert.Contains(t, rel.RenderedManifest, "suffix: x")
}
