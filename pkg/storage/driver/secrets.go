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
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	corev1client "k8s.io/client-go/kubernetes/typed/core/v1"

	"sherpack.sh/sherpack/pkg/release"
)

// SecretsDriverName is returned by (*Secrets).Name().
const SecretsDriverName = "Secret"

// ownerLabel marks every Secret this driver manages, distinguishing
// release records from unrelated Secrets in the same namespace.
const ownerLabel = "owner"
const ownerValue = "sherpack"

// Secrets stores Release records as Kubernetes Secrets, one per revision,
// named "sh.sherpack.release.v1.<name>.v<revision>".
type Secrets struct {
	impl corev1client.SecretInterface
}

func NewSecrets(impl corev1client.SecretInterface) *Secrets {
	return &Secrets{impl: impl}
}

func (s *Secrets) Name() string { return SecretsDriverName }

func secretName(key string) string { return "sh.sherpack.release.v1." + key }

func (s *Secrets) Get(key string) (*release.Release, error) {
	obj, err := s.impl.Get(context.Background(), secretName(key), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %q", ErrReleaseNotFound, key)
		}
		return nil, err
	}
	return decodeSecret(obj)
}

func (s *Secrets) List(filter func(*release.Release) bool) ([]*release.Release, error) {
	list, err := s.impl.List(context.Background(), metav1.ListOptions{LabelSelector: ownerLabel + "=" + ownerValue})
	if err != nil {
		return nil, err
	}
	var out []*release.Release
	for i := range list.Items {
		rls, err := decodeSecret(&list.Items[i])
		if err != nil {
			continue
		}
		if filter == nil || filter(rls) {
			out = append(out, rls)
		}
	}
	return out, nil
}

func (s *Secrets) Query(lbs map[string]string) ([]*release.Release, error) {
	sel := labels(lbs)
	all, err := s.List(nil)
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

func (s *Secrets) Create(key string, rls *release.Release) error {
	obj, err := encodeSecret(key, rls)
	if err != nil {
		return err
	}
	_, err = s.impl.Create(context.Background(), obj, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("%w: %q", ErrReleaseExists, key)
	}
	return err
}

func (s *Secrets) Update(key string, rls *release.Release) error {
	obj, err := encodeSecret(key, rls)
	if err != nil {
		return err
	}
	_, err = s.impl.Update(context.Background(), obj, metav1.UpdateOptions{})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%w: %q", ErrReleaseNotFound, key)
	}
	return err
}

func (s *Secrets) Delete(key string) (*release.Release, error) {
	rls, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	if err := s.impl.Delete(context.Background(), secretName(key), metav1.DeleteOptions{}); err != nil {
		return nil, err
	}
	return rls, nil
}

// encodeSecret compresses and (if needed) chunks rls,
// storing either the whole blob under "release" or an index record under
// "release.index" plus sibling "chunk.<digest>" keys in the Secret's
// binary Data map.
func encodeSecret(key string, rls *release.Release) (*corev1.Secret, error) {
	blob, chunks, idx, err := encodeRelease(rls)
	if err != nil {
		return nil, err
	}
	data := map[string][]byte{}
	if idx != nil {
		idxJSON, err := json.Marshal(idx)
		if err != nil {
			return nil, err
		}
		data["release.index"] = idxJSON
		for digest, chunk := range chunks {
			data["chunk."+digest] = chunk
		}
	} else {
		data["release"] = blob
	}
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name: secretName(key),
			Labels: map[string]string{
				ownerLabel: ownerValue,
				"name":     rls.Name,
				"status":   string(rls.State),
				"version":  itoa(int(rls.Revision)),
			},
		},
		Type: "sherpack.sh/release.v1",
		Data: data,
	}, nil
}

func decodeSecret(obj *corev1.Secret) (*release.Release, error) {
	if blob, ok := obj.Data["release"]; ok {
		return decodeRelease(blob, nil, nil)
	}
	idxJSON, ok := obj.Data["release.index"]
	if !ok {
		return nil, fmt.Errorf("%w: secret %s has no release payload", ErrReleaseNotFound, obj.Name)
	}
	var idx chunkIndex
	if err := json.Unmarshal(idxJSON, &idx); err != nil {
		return nil, err
	}
	return decodeRelease(nil, &idx, func(digest string) ([]byte, bool) {
		chunk, ok := obj.Data["chunk."+digest]
		return chunk, ok
	})
}
