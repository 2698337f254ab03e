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

	"github.com/stretchr/testify/assert"
)

func TestIsSystemLabelIsCaseSensitive(t *testing.T) {
	assert.True(t, isSystemLabel("name"))
	assert.True(t, isSystemLabel("owner"))
	assert.False(t, isSystemLabel("NaMe"))
	assert.False(t, isSystemLabel("team"))
}

func TestFilterSystemLabels(t *testing.T) {
	assert.Empty(t, filterSystemLabels(nil))
	assert.Empty(t, filterSystemLabels(map[string]string{
		"name": "n", "owner": "o", "status": "s",
		"version": "v", "createdAt": "c", "modifiedAt": "m",
	}))
	assert.Equal(t,
		map[string]string{"StaTus": "s", "team": "infra"},
		filterSystemLabels(map[string]string{
			"StaTus": "s", "name": "n", "owner": "o", "team": "infra",
		}))
}

func TestContainsSystemLabels(t *testing.T) {
	assert.False(t, ContainsSystemLabels(nil))
	assert.False(t, ContainsSystemLabels(map[string]string{"team": "infra"}))
	assert.True(t, ContainsSystemLabels(map[string]string{"owner": "x", "team": "infra"}))
}

func TestReleaseKey(t *testing.T) {
	assert.Equal(t, "demo.v1", releaseKey("demo", 1))
	assert.Equal(t, "demo.v42", releaseKey("demo", 42))
	assert.Equal(t, "demo.v0", releaseKey("demo", 0))
}
