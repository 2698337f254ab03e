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

package version

import (
	"fmt"
	"runtime/debug"

	_ "k8s.io/client-go/kubernetes" // keep k8s.io/client-go in the build graph
)

// K8sIOClientGoModVersion reads the k8s.io/client-go module version out of
// the binary's embedded build info.
func K8sIOClientGoModVersion() (string, error) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", fmt.Errorf("failed to read build info")
	}
	for _, m := range info.Deps {
		if m.Path == "k8s.io/client-go" {
			return m.Version, nil
		}
	}
	return "", fmt.Errorf("k8s.io/client-go not found in build info")
}
