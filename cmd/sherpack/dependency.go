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
	"path/filepath"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"sherpack.sh/sherpack/pkg/packstore"
	"sherpack.sh/sherpack/pkg/resolver"
)

var dependencyDesc = `
This command manages a pack's dependencies: 'build' resolves and writes a
Pack.lock.yaml without touching the filesystem tree otherwise; 'update'
additionally fetches every locked dependency's archive alongside the lock.
`

func newDependencyCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dependency",
		Aliases: []string{"dep"},
		Short:   "manage a pack's dependencies",
		Long:    dependencyDesc,
	}
	cmd.AddCommand(newDependencyBuildCmd(out), newDependencyUpdateCmd(out, true))
	return cmd
}

func newDependencyBuildCmd(out io.Writer) *cobra.Command {
	return newDependencyUpdateCmd(out, false)
}

func newDependencyUpdateCmd(out io.Writer, fetch bool) *cobra.Command {
	name := "update"
	if !fetch {
		name = "build"
	}
	cmd := &cobra.Command{
		Use:   name + " [PACK]",
		Short: "resolve dependencies and (re)write Pack.lock.yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			root, err := packstore.New().Load(args[0])
			if err != nil {
				return err
			}
			r := resolver.New(resolveBackend)
			lock, err := r.Resolve(c.Context(), root, resolver.ResolutionContext{
				Values:             root.Values,
				EvaluateConditions: true,
				Policy:             resolver.PolicyStrict,
			})
			if err != nil {
				return err
			}
			data, err := resolver.MarshalLockFile(lock, time.Now())
			if err != nil {
				return err
			}
			lockPath := filepath.Join(args[0], "Pack.lock.yaml")
			if err := os.WriteFile(lockPath, data, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", lockPath, err)
			}

			tbl := uitable.New()
			tbl.AddRow("NAME", "VERSION", "REPOSITORY", "STATUS")
			for _, dep := range lock.Dependencies {
				status := "locked"
				if dep.Skipped() {
					status = "skipped: " + string(dep.SkipReason)
				}
				tbl.AddRow(dep.Name, dep.ConcreteVersion, dep.Repository, status)
				if fetch && !dep.Skipped() {
					if err := fetchInto(c.Context(), args[0], dep); err != nil {
						return err
					}
				}
			}
			fmt.Fprintln(out, tbl)
			return nil
		},
	}
	return cmd
}

// fetchInto downloads dep's archive and drops it under <root>/packs/, the
// materialized form `dependency update` leaves on disk for offline
// installs.
func fetchInto(ctx context.Context, rootPath string, dep resolver.ResolvedDependency) error {
	backend, err := resolveBackend(dep.Repository)
	if err != nil {
		return err
	}
	p, err := resolver.LoadLockedPack(ctx, backend, dep)
	if err != nil {
		return err
	}
	data, _, err := packstore.New().CanonicalArchive(p)
	if err != nil {
		return err
	}
	dir := filepath.Join(rootPath, "packs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	dest := filepath.Join(dir, fmt.Sprintf("%s-%s.tgz", dep.Name, dep.ConcreteVersion))
	return os.WriteFile(dest, data, 0644)
}
