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
	"strconv"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"sherpack.sh/sherpack/pkg/action"
)

func newStatusCmd(actionConfig *action.Configuration, out io.Writer) *cobra.Command {
	var revision uint32
	cmd := &cobra.Command{
		Use:   "status [NAME]",
		Short: "show the status of a release",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rel, err := actionConfig.Status(args[0], revision)
			if err != nil {
				return err
			}
			tbl := uitable.New()
			tbl.AddRow("NAME:", rel.Name)
			tbl.AddRow("NAMESPACE:", rel.Namespace)
			tbl.AddRow("REVISION:", strconv.Itoa(int(rel.Revision)))
			tbl.AddRow("STATUS:", string(rel.State))
			tbl.AddRow("PACK:", rel.PackMetadata.Name+"-"+rel.PackMetadata.Version)
			tbl.AddRow("UPDATED:", rel.UpdatedAt.String())
			fmt.Fprintln(out, tbl)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&revision, "revision", 0, "show a specific revision instead of the current Deployed one")
	return cmd
}
