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
	"os"

	"sherpack.sh/sherpack/pkg/action"
	"sherpack.sh/sherpack/pkg/archive"
	"sherpack.sh/sherpack/pkg/engine/lang"
	"sherpack.sh/sherpack/pkg/pack"
)

// exitCodeFor maps a returned error onto the exit code taxonomy:
// 0 success, 1 generic, 2 validation, 3 template error, 4 I/O, 5
// Kubernetes error. This is purely a CLI-surface convenience — programmatic
// callers of pkg/action keep getting the typed errors directly.
func exitCodeFor(err error) int {
	var (
		loadErr  *pack.LoadError
		intErr   *archive.IntegrityError
		synErr   *lang.SyntaxError
		undefErr *lang.UndefinedError
		evalErr  *lang.EvalError
		atomic   *action.AtomicUpgradeFailedError
	)
	switch {
	case errors.Is(err, action.ErrSchema):
		return 2
	case errors.As(err, &synErr), errors.As(err, &undefErr), errors.As(err, &evalErr):
		return 3
	case errors.As(err, &loadErr), errors.As(err, &intErr), errors.Is(err, os.ErrNotExist):
		return 4
	case errors.Is(err, action.ErrApply), errors.Is(err, action.ErrHealth), errors.Is(err, action.ErrHook), errors.Is(err, action.ErrCRD):
		return 5
	case errors.As(err, &atomic):
		return 5
	default:
		return 1
	}
}
