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
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/cli-runtime/pkg/resource"

	"sherpack.sh/sherpack/pkg/kube"
	"sherpack.sh/sherpack/pkg/release"
	"sherpack.sh/sherpack/pkg/releaseutil"
)

// defaultWaitTimeout bounds how long a single wave is awaited for
// readiness before the apply is abandoned as a health failure.
const defaultWaitTimeout = 5 * time.Minute

// ApplyOptions controls one wave-ordered apply pass.
type ApplyOptions struct {
	// Wait, when true, blocks after each wave until every resource in it
	// reports ready before the next wave is applied.
	Wait bool

	// Timeout bounds each wave's readiness wait. Zero uses
	// defaultWaitTimeout.
	Timeout time.Duration

	// ForceConflicts allows server-side apply to take ownership of fields
	// another field manager holds.
	ForceConflicts bool
}

// buildGeneric turns a RenderResult's generic manifest set into a
// ResourceList, ordered by the creation-order table.
func (c *Configuration) buildGeneric(generic []releaseutil.Manifest) (kube.ResourceList, error) {
	var doc strings.Builder
	for _, m := range generic {
		doc.WriteString("---\n")
		doc.WriteString(m.Content)
		doc.WriteString("\n")
	}
	resources, err := c.KubeClient.Build(strings.NewReader(doc.String()), true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApply, err)
	}
	return resources.SortByCreationOrder(), nil
}

// ApplyWaves installs resources one wave at a time, waiting for each
// wave's resources to become ready before the next is created when
// opts.Wait is set ("Within a wave, resources
// apply in creation-order-table sequence; between waves there is a
// barrier").
func (c *Configuration) ApplyWaves(resources kube.ResourceList, opts ApplyOptions) (*kube.Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	result := &kube.Result{}
	for _, wave := range groupByWave(resources) {
		created, err := c.KubeClient.Create(wave, kube.ClientCreateOptionServerSideApply(true, opts.ForceConflicts))
		if created != nil {
			result.Created = append(result.Created, created.Created...)
		}
		if err != nil {
			return result, fmt.Errorf("%w: %v", ErrApply, err)
		}
		if opts.Wait {
			if err := c.KubeClient.WaitWithJobs(wave, timeout); err != nil {
				return result, fmt.Errorf("%w: %v", ErrHealth, err)
			}
		}
	}
	return result, nil
}

// UpdateWaves reconciles a previously-applied resource set against a new
// target set, wave by wave, the upgrade counterpart to ApplyWaves. Any
// resource present in original but dropped from target is removed, in
// reverse creation-order, only after every retained resource in its wave
// is confirmed healthy.
func (c *Configuration) UpdateWaves(original, target kube.ResourceList, opts ApplyOptions) (*kube.Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	result := &kube.Result{}
	for _, wave := range groupByWave(target) {
		updated, err := c.KubeClient.Update(original.Intersect(wave), wave, kube.ClientUpdateOptionServerSideApply(true, opts.ForceConflicts))
		if updated != nil {
			result.Created = append(result.Created, updated.Created...)
			result.Updated = append(result.Updated, updated.Updated...)
			result.Deleted = append(result.Deleted, updated.Deleted...)
		}
		if err != nil {
			return result, fmt.Errorf("%w: %v", ErrApply, err)
		}
		if opts.Wait {
			if err := c.KubeClient.WaitWithJobs(wave, timeout); err != nil {
				return result, fmt.Errorf("%w: %v", ErrHealth, err)
			}
		}
	}

	removed := original.Difference(target)
	if len(removed) > 0 {
		deleted, errs := c.KubeClient.Delete(removed.SortByDeletionOrder())
		if deleted != nil {
			result.Deleted = append(result.Deleted, deleted.Deleted...)
		}
		if len(errs) > 0 {
			return result, fmt.Errorf("%w: %v", ErrApply, errs)
		}
	}

	return result, nil
}

// UninstallWaves deletes resources in reverse creation-order, excluding
// any resource annotated with ResourceKeepPolicy.
func (c *Configuration) UninstallWaves(resources kube.ResourceList) (*kube.Result, []error) {
	keep := resources.Filter(hasKeepPolicy)
	deleteSet := resources.Difference(keep).SortByDeletionOrder()
	return c.KubeClient.Delete(deleteSet)
}

func hasKeepPolicy(info *resource.Info) bool {
	if info.Object == nil {
		return false
	}
	acc, err := meta.Accessor(info.Object)
	if err != nil {
		return false
	}
	return acc.GetAnnotations()[release.ResourcePolicyAnnotation] == release.ResourceKeepPolicy
}

func waveOf(info *resource.Info) int {
	if info.Object == nil {
		return 0
	}
	acc, err := meta.Accessor(info.Object)
	if err != nil {
		return 0
	}
	w, err := strconv.Atoi(acc.GetAnnotations()[release.WaveAnnotation])
	if err != nil {
		return 0
	}
	return w
}

// groupByWave splits an already creation-order-sorted ResourceList into
// contiguous runs sharing the same wave annotation, preserving their
// relative order within each run.
func groupByWave(resources kube.ResourceList) []kube.ResourceList {
	var waves []kube.ResourceList
	var current kube.ResourceList
	currentWave, haveWave := 0, false

	for _, info := range resources {
		w := waveOf(info)
		if !haveWave || w != currentWave {
			if len(current) > 0 {
				waves = append(waves, current)
			}
			current = nil
			currentWave = w
			haveWave = true
		}
		current = append(current, info)
	}
	if len(current) > 0 {
		waves = append(waves, current)
	}
	return waves
}
