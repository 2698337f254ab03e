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

package main

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sherpack.sh/sherpack/internal/log"
	"sherpack.sh/sherpack/internal/logging"
	"sherpack.sh/sherpack/pkg/action"
	"sherpack.sh/sherpack/pkg/cli"
	"sherpack.sh/sherpack/pkg/engine"
	"sherpack.sh/sherpack/pkg/repo"
	"sherpack.sh/sherpack/pkg/resolver"
)

var settings = cli.New()

const globalUsage = `The Kubernetes package manager, built on a Jinja2-like
templating substrate.

Common actions from this point include:

- sherpack install:    install a pack into the cluster
- sherpack upgrade:    upgrade a release to a new pack version or values
- sherpack rollback:   roll a release back to a prior revision
- sherpack uninstall:  remove a release from the cluster
- sherpack status:     show a release's current state
- sherpack dependency: resolve and lock a pack's dependency graph

Environment:
  $SHERPACK_NAMESPACE  namespace scope for this request
  $SHERPACK_DRIVER     storage driver: secret (default), configmap, memory
  $KUBECONFIG          kubeconfig path
`

// driverName resolves the storage driver from the environment; the driver
// choice is deliberately not one of EnvSettings' bound flags.
func driverName() string {
	if d := os.Getenv("SHERPACK_DRIVER"); d != "" {
		return d
	}
	return "secret"
}

// newRootCmd builds the sherpack root command and wires a
// *action.Configuration shared by every release subcommand.
func newRootCmd(out io.Writer, args []string) *cobra.Command {
	actionConfig := new(action.Configuration)

	cmd := &cobra.Command{
		Use:          "sherpack",
		Short:        "The Kubernetes package manager",
		Long:         globalUsage,
		SilenceUsage: true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()
	settings.AddFlags(flags)
	_ = flags.Parse(args)

	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		actionConfig.Log = log.NewSlogAdapter(logging.NewLogger(os.Stderr, func() bool { return settings.Debug }))
		actionConfig.Engine = engine.New()
		actionConfig.Capabilities = engine.Capabilities{KubeVersion: "v1.27.2"}
		actionConfig.Resolver = resolver.New(resolveBackend)
		actionConfig.Backend = resolveBackend
		return actionConfig.Init(settings.RESTClientGetter(), settings.Namespace(), driverName())
	}

	cmd.AddCommand(
		newInstallCmd(actionConfig, out),
		newUpgradeCmd(actionConfig, out),
		newRollbackCmd(actionConfig, out),
		newUninstallCmd(actionConfig, out),
		newStatusCmd(actionConfig, out),
		newHistoryCmd(actionConfig, out),
		newDependencyCmd(out),
		newPackageCmd(out),
		newVerifyCmd(out),
	)
	return cmd
}

// resolveBackend turns one DependencySpec.Repository string into a
// repo.Backend: "oci://" addresses the OCI adapter, a ".git" suffix or
// "git+" prefix addresses the VCS adapter, a "file://" prefix or bare
// local path addresses the filesystem adapter, and everything else is
// treated as an HTTP+index.yaml repository. Keeping this the single
// dispatch point keeps the library backends uniform.
func resolveBackend(repository string) (repo.Backend, error) {
	switch {
	case strings.HasPrefix(repository, "oci://"):
		return repo.NewOCIBackend(repository), nil
	case strings.HasPrefix(repository, "git+"):
		return repo.NewGitBackend(strings.TrimPrefix(repository, "git+"), settings.RepositoryCache, ""), nil
	case strings.HasSuffix(repository, ".git"):
		return repo.NewGitBackend(repository, settings.RepositoryCache, ""), nil
	case strings.HasPrefix(repository, "file://"):
		return repo.NewLocalBackend(strings.TrimPrefix(repository, "file://")), nil
	case strings.HasPrefix(repository, "http://"), strings.HasPrefix(repository, "https://"):
		return repo.NewHTTPBackend(repository), nil
	default:
		return repo.NewLocalBackend(repository), nil
	}
}
