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
	"flag"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
)

var (
	// version is the current version of sherpack.
	// Update this whenever making a new release.
	// The version is of the format Major.Minor.Patch[-Prerelease][+BuildMetadata]
	version = "v0.1.0"

	// metadata is extra build time data
	metadata = ""
	// gitCommit is the git sha1
	gitCommit = ""
	// gitTreeState is the state of the git tree
	gitTreeState = ""
)

const (
	kubeClientGoVersionTesting = "v1.20"
)

// BuildInfo describes the compile time information.
type BuildInfo struct {
	// Version is the current semver.
	Version string `json:"version,omitempty"`
	// GitCommit is the git sha1.
	GitCommit string `json:"git_commit,omitempty"`
	// GitTreeState is the state of the git tree.
	GitTreeState string `json:"git_tree_state,omitempty"`
	// GoVersion is the version of the Go compiler used.
	GoVersion string `json:"go_version,omitempty"`
	// KubeClientVersion is the version of client-go sherpack was built with.
	KubeClientVersion string `json:"kube_client_version"`
}

// GetVersion returns the semver string of the version.
func GetVersion() string {
	if metadata == "" {
		return version
	}
	return version + "+" + metadata
}

// GetUserAgent returns a user agent for use with an HTTP client.
func GetUserAgent() string {
	return "sherpack/" + strings.TrimPrefix(GetVersion(), "v")
}

// Get returns build info.
func Get() BuildInfo {
	makeKubeClientVersionString := func() string {
		if testing.Testing() {
			return kubeClientGoVersionTesting
		}

		vstr, err := K8sIOClientGoModVersion()
		if err != nil {
			slog.Error("failed to retrieve k8s.io/client-go version", slog.Any("error", err))
			return ""
		}

		v, err := semver.NewVersion(vstr)
		if err != nil {
			slog.Error("unable to parse k8s.io/client-go version", slog.String("version", vstr), slog.Any("error", err))
			return ""
		}

		return fmt.Sprintf("v%d.%d", v.Major()+1, v.Minor())
	}

	v := BuildInfo{
		Version:           GetVersion(),
		GitCommit:         gitCommit,
		GitTreeState:      gitTreeState,
		GoVersion:         runtime.Version(),
		KubeClientVersion: makeKubeClientVersionString(),
	}

	// Strip out GoVersion during a test run for consistent test output.
	if flag.Lookup("test.v") != nil {
		v.GoVersion = ""
	}
	return v
}
