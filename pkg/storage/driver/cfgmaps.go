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
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	corev1client "k8s.io/client-go/kubernetes/typed/core/v1"

	"sherpack.sh/sherpack/pkg/release"
)

// ConfigMapsDriverName is returned by (*ConfigMaps).Name().
const ConfigMapsDriverName = "ConfigMap"

// ConfigMaps stores Release records as Kubernetes ConfigMaps. Identical
// layout to Secrets, except ConfigMap.Data is string-keyed, so the
// compressed/chunked bytes are base64-armored before being stored.
type ConfigMaps struct {
	impl corev1client.ConfigMapInterface
}

func NewConfigMaps(impl corev1client.ConfigMapInterface) *ConfigMaps {
	return &ConfigMaps{impl: impl}
}

func (c *ConfigMaps) Name() string { return ConfigMapsDriverName }

func cfgMapName(key string) string { return "sh.sherpack.release.v1." + key }

func (c *ConfigMaps) Get(key string) (*release.Release, error) {
	obj, err := c.impl.Get(context.Background(), cfgMapName(key), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %q", ErrReleaseNotFound, key)
		}
		return nil, err
	}
	return decodeConfigMap(obj)
}

func (c *ConfigMaps) List(filter func(*release.Release) bool) ([]*release.Release, error) {
	list, err := c.impl.List(context.Background(), metav1.ListOptions{LabelSelector: ownerLabel + "=" + ownerValue})
	if err != nil {
		return nil, err
	}
	var out []*release.Release
	for i := range list.Items {
		rls, err := decodeConfigMap(&list.Items[i])
		if err != nil {
			continue
		}
		if filter == nil || filter(rls) {
			out = append(out, rls)
		}
	}
	return out, nil
}

func (c *ConfigMaps) Query(lbs map[string]string) ([]*release.Release, error) {
	sel := labels(lbs)
	all, err := c.List(nil)
	if err != nil {
		return nil, err
	}
	var out []*release.Release
	for _, rls := range all {
		if labelsOf(rls).match(sel) {
			out = append(out, rls)
		}
	}
	return out, nil
}

func (c *ConfigMaps) Create(key string, rls *release.Release) error {
	obj, err := encodeConfigMap(key, rls)
	if err != nil {
		return err
	}
	_, err = c.impl.Create(context.Background(), obj, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("%w: %q", ErrReleaseExists, key)
	}
	return err
}

func (c *ConfigMaps) Update(key string, rls *release.Release) error {
	obj, err := encodeConfigMap(key, rls)
	if err != nil {
		return err
	}
	_, err = c.impl.Update(context.Background(), obj, metav1.UpdateOptions{})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%w: %q", ErrReleaseNotFound, key)
	}
	return err
}

func (c *ConfigMaps) Delete(key string) (*release.Release, error) {
	rls, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	if err := c.impl.Delete(context.Background(), cfgMapName(key), metav1.DeleteOptions{}); err != nil {
		return nil, err
	}
	return rls, nil
}

func encodeConfigMap(key string, rls *release.Release) (*corev1.ConfigMap, error) {
	blob, chunks, idx, err := encodeRelease(rls)
	if err != nil {
		return nil, err
	}
	data := map[string]string{}
	if idx != nil {
		idxJSON, err := json.Marshal(idx)
		if err != nil {
			return nil, err
		}
		data["release.index"] = string(idxJSON)
		for digest, chunk := range chunks {
			data["chunk."+digest] = base64.StdEncoding.EncodeToString(chunk)
		}
	} else {
		data["release"] = base64.StdEncoding.EncodeToString(blob)
	}
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name: cfgMapName(key),
			Labels: map[string]string{
				ownerLabel: ownerValue,
				"name":     rls.Name,
				"status":   string(rls.State),
				"version":  itoa(int(rls.Revision)),
			},
		},
		Data: data,
	}, nil
}

func decodeConfigMap(obj *corev1.ConfigMap) (*release.Release, error) {
	if enc, ok := obj.Data["release"]; ok {
		blob, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, err
		}
		return decodeRelease(blob, nil, nil)
	}
	idxJSON, ok := obj.Data["release.index"]
	if !ok {
		return nil, fmt.Errorf("%w: configmap %s has no release payload", ErrReleaseNotFound, obj.Name)
	}
	var idx chunkIndex
	if err := json.Unmarshal([]byte(idxJSON), &idx); err != nil {
		return nil, err
	}
	return decodeRelease(nil, &idx, func(digest string) ([]byte, bool) {
		enc, ok := obj.Data["chunk."+digest]
		if !ok {
			return nil, false
		}
		chunk, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, false
		}
		return chunk, true
	})
}
