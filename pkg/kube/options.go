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

package kube

// createConfig collects the options applied to a Create call.
type createConfig struct {
	serverSideApply bool
	forceConflicts  bool
}

// ClientCreateOption configures a Create call.
type ClientCreateOption func(*createConfig)

// ClientCreateOptionServerSideApply selects server-side apply for the
// fixed "sherpack" field manager, forcing ownership conflicts when force
// is true.
func ClientCreateOptionServerSideApply(serverSideApply, force bool) ClientCreateOption {
	return func(c *createConfig) {
		c.serverSideApply = serverSideApply
		c.forceConflicts = force
	}
}

// updateConfig collects the options applied to an Update call.
type updateConfig struct {
	forceReplace                  bool
	serverSideApply                bool
	forceConflicts                 bool
	threeWayMergeForUnstructured   bool
	upgradeClientSideFieldManager  bool
}

// ClientUpdateOption configures an Update call.
type ClientUpdateOption func(*updateConfig)

// ClientUpdateOptionForceReplace makes Update delete and recreate every
// existing resource instead of patching it.
func ClientUpdateOptionForceReplace(force bool) ClientUpdateOption {
	return func(c *updateConfig) { c.forceReplace = force }
}

// ClientUpdateOptionServerSideApply selects server-side apply for updates.
func ClientUpdateOptionServerSideApply(serverSideApply, force bool) ClientUpdateOption {
	return func(c *updateConfig) {
		c.serverSideApply = serverSideApply
		c.forceConflicts = force
	}
}

// ClientUpdateOptionThreeWayMergeForUnstructured records the
// three-way-merge flag; Client.Update does not read it.
func ClientUpdateOptionThreeWayMergeForUnstructured(enabled bool) ClientUpdateOption {
	return func(c *updateConfig) { c.threeWayMergeForUnstructured = enabled }
}

// ClientUpdateOptionUpgradeClientSideFieldManager records the
// field-manager upgrade flag; Client.Update does not read it, so no
// field ownership is migrated.
func ClientUpdateOptionUpgradeClientSideFieldManager(enabled bool) ClientUpdateOption {
	return func(c *updateConfig) { c.upgradeClientSideFieldManager = enabled }
}

func newCreateConfig(opts []ClientCreateOption) createConfig {
	var c createConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}

func newUpdateConfig(opts []ClientUpdateOption) updateConfig {
	var c updateConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}
