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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateReleaseNameAccepts(t *testing.T) {
	for _, name := range []string{"demo", "my-release", "a", "a1-b2"} {
		assert.NoError(t, ValidateReleaseName(name), "name %q", name)
	}
}

func TestValidateReleaseNameRejectsEmpty(t *testing.T) {
	err := ValidateReleaseName("")
	assert := assert.New(t)
	assert.Error(err)
	assert.True(errors.Is(err, ErrLifecycle))
}

func TestValidateReleaseNameRejectsTooLong(t *testing.T) {
	err := ValidateReleaseName(strings.Repeat("a", 54))
	assert.Error(t, err)
}

func TestValidateReleaseNameRejectsUppercase(t *testing.T) {
	err := ValidateReleaseName("MyRelease")
	assert.Error(t, err)
}

func TestValidateReleaseNameRejectsLeadingHyphen(t *testing.T) {
	err := ValidateReleaseName("-demo")
	assert.Error(t, err)
}
