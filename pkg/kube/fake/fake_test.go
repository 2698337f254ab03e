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

package fake

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherpack.sh/sherpack/pkg/kube"
)

func TestPrintingKubeClient_Create(t *testing.T) {
	var buf bytes.Buffer
	c := &PrintingKubeClient{Out: &buf}

	resources := kube.ResourceList{{}, {}}
	result, err := c.Create(resources)
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	assert.Contains(t, buf.String(), "creating 2 resource(s)")
}

func TestPrintingKubeClient_Delete(t *testing.T) {
	var buf bytes.Buffer
	c := &PrintingKubeClient{Out: &buf}

	resources := kube.ResourceList{{}}
	result, errs := c.Delete(resources)
	require.Empty(t, errs)
	assert.Len(t, result.Deleted, 1)
}

func TestPrintingKubeClient_Update(t *testing.T) {
	var buf bytes.Buffer
	c := &PrintingKubeClient{Out: &buf}

	target := kube.ResourceList{{}, {}, {}}
	result, err := c.Update(kube.ResourceList{}, target)
	require.NoError(t, err)
	assert.Len(t, result.Updated, 3)
}

func TestFailingKubeClient_InjectsConfiguredErrors(t *testing.T) {
	var buf bytes.Buffer
	wantErr := errors.New("boom")
	client := &FailingKubeClient{
		PrintingKubeClient: PrintingKubeClient{Out: &buf},
		CreateError:        wantErr,
		UpdateError:        wantErr,
		DeleteError:        wantErr,
	}

	_, err := client.Create(kube.ResourceList{})
	assert.ErrorIs(t, err, wantErr)

	_, err = client.Update(kube.ResourceList{}, kube.ResourceList{})
	assert.ErrorIs(t, err, wantErr)

	_, errs := client.Delete(kube.ResourceList{})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], wantErr)
}

func TestFailingKubeClient_FallsThroughWhenNoErrorConfigured(t *testing.T) {
	var buf bytes.Buffer
	client := &FailingKubeClient{PrintingKubeClient: PrintingKubeClient{Out: &buf}}

	result, err := client.Create(kube.ResourceList{{}})
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
}

func TestPrintingKubeWaiter(t *testing.T) {
	var buf bytes.Buffer
	w := &PrintingKubeWaiter{Out: &buf}

	require.NoError(t, w.Wait(kube.ResourceList{{}}, 0))
	require.NoError(t, w.WaitWithJobs(kube.ResourceList{{}}, 0))
	require.NoError(t, w.WaitForDelete(kube.ResourceList{{}}, 0))
}
