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
	"time"

	"github.com/spf13/cobra"

	"sherpack.sh/sherpack/pkg/action"
)

const rollbackDesc = `
This command rolls a release back to a previous revision.

	$ sherpack rollback myrelease 2

With no revision argument, rolls back to the revision immediately before
the current Deployed one.
`

func newRollbackCmd(actionConfig *action.Configuration, out io.Writer) *cobra.Command {
	var (
		wait           bool
		force          bool
		forceConflicts bool
		timeout        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "rollback [NAME] [REVISION]",
		Short: "roll a release back to a previous revision",
		Long:  rollbackDesc,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			var toRevision uint32
			if len(args) == 2 {
				n, err := strconv.ParseUint(args[1], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid revision %q: %w", args[1], err)
				}
				toRevision = uint32(n)
			}
			rel, err := actionConfig.Rollback(args[0], action.RollbackOptions{
				ToRevision:     toRevision,
				Wait:           wait,
				Timeout:        timeout,
				Force:          force,
				ForceConflicts: forceConflicts,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "release %q rolled back to revision %d, status %s\n", rel.Name, rel.Revision, rel.State)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for resources to become ready")
	cmd.Flags().BoolVar(&force, "force", false, "force resource updates through delete/recreate if needed")
	cmd.Flags().BoolVar(&forceConflicts, "force-conflicts", false, "force server-side apply field-manager conflicts")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "time to wait for any individual Kubernetes operation")
	return cmd
}
