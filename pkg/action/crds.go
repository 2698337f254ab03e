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
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/yaml"

	"sherpack.sh/sherpack/pkg/kube"
	"sherpack.sh/sherpack/pkg/pack"
)

// defaultCRDWaitTimeout bounds how long the engine waits for a freshly
// installed CRD to be recognized by the API server's discovery cache.
const defaultCRDWaitTimeout = 60 * time.Second

// CRDChangeKind classifies how a cluster's existing CustomResourceDefinition
// differs from the one a pack bundles.
type CRDChangeKind int

const (
	// CRDUnchanged means the pack's CRD already matches the cluster's.
	CRDUnchanged CRDChangeKind = iota
	// CRDNew means no CRD of this name exists in the cluster yet.
	CRDNew
	// CRDAdditive means every change versus the live CRD only adds
	// optional schema surface: new versions, new optional properties.
	CRDAdditive
	// CRDBreaking means the change removes or narrows existing schema
	// surface: a served version, a property, anything that could
	// invalidate an existing stored custom resource.
	CRDBreaking
)

// CRDDiff is one bundled CRD file compared against the live cluster.
type CRDDiff struct {
	Name   string
	Change CRDChangeKind
	Live   *apiextensionsv1.CustomResourceDefinition // nil when Change == CRDNew
}

// DiffCRDs decodes every CRD file in crds and classifies it against the
// live cluster definition of the same name, using live's raw JSON to build
// a JSON merge patch against the bundled version: any null-valued entry in
// that patch is a field the bundled CRD removes or narrows relative to
// what's live, a breaking change regardless of depth.
func (c *Configuration) DiffCRDs(crds []*pack.File) ([]CRDDiff, error) {
	var out []CRDDiff
	for _, f := range crds {
		var bundled apiextensionsv1.CustomResourceDefinition
		if err := yaml.Unmarshal(f.Data, &bundled); err != nil {
			return nil, fmt.Errorf("%w: parsing CRD %s: %v", ErrCRD, f.Name, err)
		}

		live, err := c.fetchLiveCRD(bundled.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: fetching live CRD %s: %v", ErrCRD, bundled.Name, err)
		}
		if live == nil {
			out = append(out, CRDDiff{Name: bundled.Name, Change: CRDNew})
			continue
		}

		change, err := classifyCRDChange(live, &bundled)
		if err != nil {
			return nil, fmt.Errorf("%w: diffing CRD %s: %v", ErrCRD, bundled.Name, err)
		}
		out = append(out, CRDDiff{Name: bundled.Name, Change: change, Live: live})
	}
	return out, nil
}

// classifyCRDChange builds a JSON merge patch transforming live's spec into
// bundled's spec; any null in that patch document (at any depth) means
// bundled drops something live has, which is a breaking change.
func classifyCRDChange(live, bundled *apiextensionsv1.CustomResourceDefinition) (CRDChangeKind, error) {
	liveJSON, err := json.Marshal(live.Spec)
	if err != nil {
		return CRDUnchanged, err
	}
	bundledJSON, err := json.Marshal(bundled.Spec)
	if err != nil {
		return CRDUnchanged, err
	}
	if bytes.Equal(liveJSON, bundledJSON) {
		return CRDUnchanged, nil
	}

	patch, err := jsonpatch.CreateMergePatch(liveJSON, bundledJSON)
	if err != nil {
		return CRDUnchanged, err
	}
	var doc interface{}
	if err := json.Unmarshal(patch, &doc); err != nil {
		return CRDUnchanged, err
	}
	if containsNull(doc) {
		return CRDBreaking, nil
	}
	return CRDAdditive, nil
}

// containsNull reports whether a decoded merge-patch document removes any
// field at any depth, recursively.
func containsNull(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]interface{}:
		for _, child := range t {
			if containsNull(child) {
				return true
			}
		}
	case []interface{}:
		for _, child := range t {
			if containsNull(child) {
				return true
			}
		}
	}
	return false
}

func (c *Configuration) fetchLiveCRD(name string) (*apiextensionsv1.CustomResourceDefinition, error) {
	related, ok := c.KubeClient.(kube.InterfaceResources)
	if !ok {
		return nil, nil
	}
	info, err := c.KubeClient.Build(bytes.NewBufferString(fmt.Sprintf(
		"apiVersion: apiextensions.k8s.io/v1\nkind: CustomResourceDefinition\nmetadata:\n  name: %s\n", name,
	)), false)
	if err != nil {
		return nil, err
	}
	objects, err := related.Get(info, false)
	if err != nil {
		return nil, err
	}
	for _, obj := range objects["CustomResourceDefinition"] {
		crd, ok := asCRD(obj)
		if ok && crd.Name == name {
			return crd, nil
		}
	}
	return nil, nil
}

// InstallCRDs applies every new or additively-changed CRD, refusing any
// breaking change unless force is set. It waits for newly created CRDs
// to become Established
// before returning, so that the resources relying on them can be built.
func (c *Configuration) InstallCRDs(diffs []CRDDiff, crds []*pack.File, force bool) error {
	byName := map[string]*pack.File{}
	for _, f := range crds {
		var bundled apiextensionsv1.CustomResourceDefinition
		if err := yaml.Unmarshal(f.Data, &bundled); err == nil {
			byName[bundled.Name] = f
		}
	}

	var created kube.ResourceList
	for _, d := range diffs {
		if d.Change == CRDUnchanged {
			continue
		}
		if d.Change == CRDBreaking && !force {
			return fmt.Errorf("%w: %s changes existing schema incompatibly; rerun with force to override", ErrCRD, d.Name)
		}
		f, ok := byName[d.Name]
		if !ok {
			continue
		}
		resources, err := c.KubeClient.Build(bytes.NewReader(f.Data), false)
		if err != nil {
			return fmt.Errorf("%w: building CRD %s: %v", ErrCRD, d.Name, err)
		}
		if d.Change == CRDNew {
			if _, err := c.KubeClient.Create(resources, kube.ClientCreateOptionServerSideApply(true, force)); err != nil && !apierrors.IsAlreadyExists(err) {
				return fmt.Errorf("%w: creating CRD %s: %v", ErrCRD, d.Name, err)
			}
			created = append(created, resources...)
			continue
		}
		live := kube.ResourceList{}
		if _, err := c.KubeClient.Update(live, resources, kube.ClientUpdateOptionServerSideApply(true, force)); err != nil {
			return fmt.Errorf("%w: updating CRD %s: %v", ErrCRD, d.Name, err)
		}
	}

	if len(created) > 0 {
		if err := c.KubeClient.Wait(created, defaultCRDWaitTimeout); err != nil {
			return fmt.Errorf("%w: waiting for CRDs to establish: %v", ErrCRD, err)
		}
	}
	return nil
}
