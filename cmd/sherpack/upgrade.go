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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"sherpack.sh/sherpack/pkg/action"
	"sherpack.sh/sherpack/pkg/storage/driver"
)

const upgradeDesc = `
This command upgrades a release to a new pack version or new values.

	$ sherpack upgrade myrelease ./mychart

If '--install' is set and no release by this name exists, upgrade behaves
like install. '--reuse-values' seeds the new revision's
values from the prior revision's applied values instead of the pack's own
defaults.
`

func newUpgradeCmd(actionConfig *action.Configuration, out io.Writer) *cobra.Command {
	var (
		vals         valueFlags
		install      bool
		reuseValues  bool
		wait         bool
		atomic       bool
		diffOnly     bool
		timeout      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "upgrade [NAME] [PACK]",
		Short: "upgrade a release",
		Long:  upgradeDesc,
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
			mode := action.ResetValues
			if reuseValues {
				mode = action.ReuseValues
			}
			opts := action.UpgradeOptions{
				Namespace: settings.Namespace(),
				Overlays:  overlays,
				Values:    mode,
				Wait:      wait,
				Timeout:   timeout,
				Atomic:    atomic,
			}

			if diffOnly {
				diffs, err := actionConfig.Diff(c.Context(), args[0], root, lock, opts)
				if err != nil {
					return err
				}
				for _, d := range diffs {
					fmt.Fprintln(out, d.Unified)
				}
				return nil
			}

			if install {
				if _, err := actionConfig.Storage.Deployed(args[0]); err != nil && errors.Is(err, driver.ErrNoDeployedReleases) {
					rel, err := actionConfig.Install(c.Context(), root, lock, action.InstallOptions{
						ReleaseName: args[0],
						Namespace:   opts.Namespace,
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
				}
			}

			rel, err := actionConfig.Upgrade(c.Context(), args[0], root, lock, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "release %q upgraded to revision %d, status %s\n", rel.Name, rel.Revision, rel.State)
			return nil
		},
	}
	vals.addFlags(cmd.Flags())
	cmd.Flags().BoolVar(&install, "install", false, "install if the release does not already exist")
	cmd.Flags().BoolVar(&reuseValues, "reuse-values", false, "reuse the prior revision's applied values as the base layer")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for resources to become ready")
	cmd.Flags().BoolVar(&atomic, "atomic", false, "roll back on failure, capturing diagnostics first")
	cmd.Flags().BoolVar(&diffOnly, "diff", false, "render and print the structural diff against the deployed revision without applying")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "time to wait for any individual Kubernetes operation")
	return cmd
}
