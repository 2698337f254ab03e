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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"sherpack.sh/sherpack/pkg/action"
	"sherpack.sh/sherpack/pkg/pack"
	"sherpack.sh/sherpack/pkg/packstore"
	"sherpack.sh/sherpack/pkg/resolver"
)

const installDesc = `
This command installs a pack archive or directory as a named release.

	$ sherpack install myrelease ./mychart

Values may be overridden with one or more '-f'/'--values' YAML files, applied
in the order given, followed by any '--set' overrides:
schema defaults < pack defaults < -f files in order < --set overrides.
`

// valueFlags binds the -f/--values and --set flags shared by install and
// upgrade.
type valueFlags struct {
	files []string
	sets  []string
}

func (v *valueFlags) addFlags(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&v.files, "values", "f", nil, "specify values in a YAML file (can be repeated)")
	fs.StringArrayVar(&v.sets, "set", nil, "set values on the command line (can be repeated, format: key1=val1,key2=val2)")
}

func (v *valueFlags) overlays() ([]action.ValueOverlay, error) {
	var out []action.ValueOverlay
	for _, f := range v.files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		overlay, err := action.FileOverlay(f, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, overlay)
	}
	for _, s := range v.sets {
		overlay, err := action.SetOverlay("--set", s)
		if err != nil {
			return nil, err
		}
		out = append(out, overlay)
	}
	return out, nil
}

// loadAndLock loads a pack from path and, if it declares dependencies,
// resolves and materializes a lockfile against actionConfig's configured
// Resolver. A pack with no dependencies skips
// resolution entirely rather than round-tripping an empty lockfile.
// Conditions are evaluated against the overlay-composed values so an
// enable/disable overlay set on the command line takes effect before the
// walk, not just at render time.
func loadAndLock(ctx context.Context, actionConfig *action.Configuration, path string, overlays []action.ValueOverlay) (*pack.Pack, *resolver.LockFile, error) {
	root, err := packstore.New().Load(path)
	if err != nil {
		return nil, nil, err
	}
	if root.Metadata == nil || len(root.Metadata.Dependencies) == 0 {
		return root, nil, nil
	}
	values, _, err := action.ComposeValues(root, overlays)
	if err != nil {
		return nil, nil, err
	}
	lock, err := actionConfig.Resolver.Resolve(ctx, root, resolver.ResolutionContext{
		Values:             values,
		EvaluateConditions: true,
		Policy:             resolver.PolicyStrict,
	})
	if err != nil {
		return nil, nil, err
	}
	return root, lock, nil
}

func newInstallCmd(actionConfig *action.Configuration, out io.Writer) *cobra.Command {
	var (
		vals    valueFlags
		wait    bool
		atomic  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "install [NAME] [PACK]",
		Short: "install a pack",
		Long:  installDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			overlays, err := vals.overlays()
			if err != nil {
				return err
			}
			root, lock, err := loadAndLock(c.Context(), actionConfig, args[1], overlays)
			if err != nil {
				return err
			}
			rel, err := actionConfig.Install(c.Context(), root, lock, action.InstallOptions{
				ReleaseName: args[0],
				Namespace:   settings.Namespace(),
				Overlays:    overlays,
				Wait:        wait,
				Timeout:     timeout,
				Atomic:      atomic,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "release %q installed at revision %d, status %s\n", rel.Name, rel.Revision, rel.State)
			return nil
		},
	}
	vals.addFlags(cmd.Flags())
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for resources to become ready")
	cmd.Flags().BoolVar(&atomic, "atomic", false, "roll back on failure, capturing diagnostics first")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "time to wait for any individual Kubernetes operation")
	return cmd
}
