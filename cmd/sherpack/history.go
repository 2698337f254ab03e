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

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"sherpack.sh/sherpack/pkg/action"
	"sherpack.sh/sherpack/pkg/release"
)

var historyDesc = `
This command prints the revision history for a given release, oldest
revision first.
`

func newHistoryCmd(actionConfig *action.Configuration, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history [NAME]",
		Aliases: []string{"hist"},
		Short:   "fetch release history",
		Long:    historyDesc,
		Args:    cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			hist, err := actionConfig.History(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, formatHistory(hist))
			return nil
		},
	}
	return cmd
}

func formatHistory(rls []*release.Release) string {
	tbl := uitable.New()
	tbl.AddRow("REVISION", "UPDATED", "STATUS", "PACK", "DESCRIPTION")
	for _, r := range rls {
		tbl.AddRow(r.Revision, r.UpdatedAt.Format("Mon Jan 2 15:04:05 2006"), string(r.State),
			fmt.Sprintf("%s-%s", r.PackMetadata.Name, r.PackMetadata.Version), r.Description)
	}
	return tbl.String()
}
