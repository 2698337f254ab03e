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

package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherpack.sh/sherpack/pkg/archive"
	"sherpack.sh/sherpack/pkg/pack"
)

func TestLockFileMarshalRoundTrip(t *testing.T) {
	lock := &LockFile{
		PackYAMLDigest: "sha256:deadbeef",
		Policy:         PolicyStrict,
		Dependencies: []ResolvedDependency{
			{
				Name:               "postgres",
				ConcreteVersion:    "1.2.3",
				Repository:         "https://charts.example.com",
				ArchiveDigest:      archive.Digest("sha256:abc123"),
				SourceType:         pack.ResolveSherpack,
				ConditionEvaluated: true,
			},
			{
				Name:       "redis",
				Repository: "https://charts.example.com",
				SourceType: pack.ResolveAuto,
				SkipReason: SkipCondition,
			},
		},
	}

	data, err := MarshalLockFile(lock, time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 2")
	assert.Contains(t, string(data), "packYamlDigest: sha256:deadbeef")

	got, err := UnmarshalLockFile(data)
	require.NoError(t, err)
	assert.Equal(t, lock.PackYAMLDigest, got.PackYAMLDigest)
	assert.Equal(t, lock.Policy, got.Policy)
	require.Len(t, got.Dependencies, 2)
	assert.Equal(t, "postgres", got.Dependencies[0].Name)
	assert.Equal(t, "1.2.3", got.Dependencies[0].ConcreteVersion)
	assert.Equal(t, archive.Digest("sha256:abc123"), got.Dependencies[0].ArchiveDigest)
	assert.True(t, got.Dependencies[0].ConditionEvaluated)
	assert.True(t, got.Dependencies[1].Skipped())
	assert.Equal(t, SkipCondition, got.Dependencies[1].SkipReason)
}
