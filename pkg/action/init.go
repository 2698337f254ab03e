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
	"fmt"

	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/kubernetes"

	"sherpack.sh/sherpack/pkg/kube"
	"sherpack.sh/sherpack/pkg/storage"
	"sherpack.sh/sherpack/pkg/storage/driver"
)

// Init wires Storage and KubeClient from a real Kubernetes context: build
// the generic kube
// client from getter, then pick a storage driver by name, using a
// lazyClient so the underlying clientset isn't dialed until Storage
// issues its first request. driverName is one of "secret"/"secrets"
// (default), "configmap"/"configmaps", or "memory".
func (c *Configuration) Init(getter genericclioptions.RESTClientGetter, namespace, driverName string) error {
	c.KubeClient = kube.New(getter)

	lazy := &lazyClient{
		namespace: namespace,
		clientFn: func() (kubernetes.Interface, error) {
			cfg, err := getter.ToRESTConfig()
			if err != nil {
				return nil, err
			}
			return kubernetes.NewForConfig(cfg)
		},
	}

	var d driver.Driver
	switch driverName {
	case "secret", "secrets", "":
		d = driver.NewSecrets(newSecretClient(lazy))
	case "configmap", "configmaps":
		d = driver.NewConfigMaps(newConfigMapClient(lazy))
	case "memory":
		d = driver.NewMemory()
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrLifecycle, driverName)
	}

	c.Storage = storage.Init(d)
	return nil
}
