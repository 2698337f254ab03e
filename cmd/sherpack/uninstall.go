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
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"sherpack.sh/sherpack/pkg/action"
)

const uninstallDesc = `
This command removes a release from the cluster, in reverse creation-order. Resources annotated "resource-policy: keep" are never
deleted. Use '--keep-history' to retain the release's revision records.
`

func newUninstallCmd(actionConfig *action.Configuration, out io.Writer) *cobra.Command {
	var (
		keepHistory bool
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "uninstall [NAME]",
		Short: "uninstall a release",
		Long:  uninstallDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rel, err := actionConfig.Uninstall(args[0], action.UninstallOptions{
				Timeout:     timeout,
				KeepHistory: keepHistory,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "release %q uninstalled\n", rel.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepHistory, "keep-history", false, "retain release revision records after uninstall")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "time to wait for any individual Kubernetes operation")
	return cmd
}
