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

package action

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the Lifecycle and Schema taxonomy kinds; Render,
// Resolution, Integrity and Signature kinds surface
// as the typed errors their own packages already define
// (engine.RenderReport.Errors, resolver.DiamondConflictError,
// pack.LoadError, provenance.SignatureError).
var (
	// ErrLifecycle is wrapped by every Lifecycle-kind error: bad release
	// name, release already exists, revision not found, ambiguous
	// recovery.
	ErrLifecycle = errors.New("lifecycle")

	// ErrReleaseExists is returned by Install when a non-terminal release
	// already holds the requested name.
	ErrReleaseExists = fmt.Errorf("%w: release already exists", ErrLifecycle)

	// ErrRevisionNotFound is returned by Rollback/Get when the requested
	// revision has no record in Storage.
	ErrRevisionNotFound = fmt.Errorf("%w: revision not found", ErrLifecycle)

	// ErrRecoveryAmbiguous is returned by Recover when a pending release's
	// underlying apply outcome cannot be determined.
	ErrRecoveryAmbiguous = fmt.Errorf("%w: recovery is ambiguous", ErrLifecycle)

	// ErrSchema wraps values failing JSON Schema validation.
	ErrSchema = errors.New("schema")

	// ErrHook wraps a hook Job that failed or timed out.
	ErrHook = errors.New("hook")

	// ErrHealth wraps a timeout waiting for readiness, or a pod reporting
	// CrashLoopBackOff/ImagePullBackOff within the transaction window.
	ErrHealth = errors.New("health")

	// ErrApply wraps a Kubernetes API error encountered while applying.
	ErrApply = errors.New("apply")

	// ErrCRD wraps a refused breaking CRD change.
	ErrCRD = errors.New("crd")
)

// AtomicUpgradeFailedError is the composite error a failed atomic upgrade
// returns: the original failure, the diagnostic bundle captured before any
// rollback delete, whether the rollback itself succeeded, and how long the
// whole sequence took.
type AtomicUpgradeFailedError struct {
	OriginalError  error
	Diagnostics    *DiagnosticBundle
	RollbackError  error
	Elapsed        time.Duration
}

func (e *AtomicUpgradeFailedError) Error() string {
	status := "rollback succeeded"
	if e.RollbackError != nil {
		status = fmt.Sprintf("rollback failed: %v", e.RollbackError)
	}
	return fmt.Sprintf("atomic upgrade failed after %s: %v (%s)", e.Elapsed, e.OriginalError, status)
}

func (e *AtomicUpgradeFailedError) Unwrap() error { return e.OriginalError }

// RollbackSucceeded reports whether the diagnostic rollback completed.
func (e *AtomicUpgradeFailedError) RollbackSucceeded() bool { return e.RollbackError == nil }
