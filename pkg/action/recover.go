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
	"fmt"
	"time"

	"sherpack.sh/sherpack/pkg/kube"
	"sherpack.sh/sherpack/pkg/release"
)

// Recover is the escape hatch for a release stuck in
// a Pending* state with no in-flight transaction (the owning process
// crashed) is transitioned to Deployed if its resources are visibly
// present and healthy in the cluster, or Failed otherwise, freeing the
// release name lock either way.
//
// If the live cluster state is inconclusive — some but not all of the
// release's resources exist — Recover refuses to guess and returns
// ErrRecoveryAmbiguous: an ambiguous recovery is a
// distinct, surfaced Lifecycle error rather than a silent pick.
func (c *Configuration) Recover(releaseName string, revision uint32) (*release.Release, error) {
	if err := ValidateReleaseName(releaseName); err != nil {
		return nil, err
	}
	c.init()

	unlock := c.namespacedLock(releaseName)
	defer unlock()

	var rel *release.Release
	var err error
	if revision != 0 {
		rel, err = c.Storage.Get(releaseName, revision)
	} else {
		rel, err = c.Storage.Last(releaseName)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}
	if !rel.State.IsPending() {
		return rel, nil
	}

	expected, err := c.rebuildPrevious(rel)
	if err != nil {
		return nil, err
	}

	outcome, err := c.probeApplyOutcome(expected)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}

	switch outcome {
	case applySucceeded:
		rel.State = release.StatusDeployed
	case applyFailed:
		rel.State = release.StatusFailed
	default:
		return nil, ErrRecoveryAmbiguous
	}
	rel.UpdatedAt = time.Now()
	if err := c.Storage.Update(rel); err != nil {
		return rel, fmt.Errorf("%w: %v", ErrLifecycle, err)
	}
	return rel, nil
}

type applyOutcome int

const (
	applyAmbiguous applyOutcome = iota
	applySucceeded
	applyFailed
)

// probeApplyOutcome fetches the live state of every resource a pending
// transaction was supposed to have created. All-present is treated as
// success, none-present as failure, and a partial match as ambiguous.
func (c *Configuration) probeApplyOutcome(expected kube.ResourceList) (applyOutcome, error) {
	if len(expected) == 0 {
		return applySucceeded, nil
	}
	related, ok := c.KubeClient.(kube.InterfaceResources)
	if !ok {
		return applyAmbiguous, nil
	}
	live, err := related.Get(expected, false)
	if err != nil {
		return applyAmbiguous, err
	}
	found := 0
	for _, objs := range live {
		found += len(objs)
	}
	switch {
	case found == 0:
		return applyFailed, nil
	case found >= len(expected):
		return applySucceeded, nil
	default:
		return applyAmbiguous, nil
	}
}
