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

package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherpack.sh/sherpack/internal/version"
)

func TestSetNamespace(t *testing.T) {
	settings := New()
	assert.Empty(t, settings.namespace)

	settings.SetNamespace("testns")
	assert.Equal(t, "testns", settings.namespace)
}

func TestEnvSettings(t *testing.T) {
	tests := []struct {
		name string

		// input
		args    string
		envvars map[string]string

		// expected values
		ns, kcontext  string
		debug         bool
		maxhistory    int
		kubeAsUser    string
		kubeAsGroups  []string
		kubeCaFile    string
		kubeInsecure  bool
		kubeTLSServer string
		burstLimit    int
	}{
		{
			name:       "defaults",
			ns:         "default",
			maxhistory: defaultMaxHistory,
			burstLimit: defaultBurstLimit,
		},
		{
			name:          "with flags set",
			args:          "--debug --namespace=myns --kube-as-user=deployer --kube-as-group=admins --kube-as-group=release-eng --kube-ca-file=/tmp/ca.crt --burst-limit 100 --kube-insecure-skip-tls-verify=true --kube-tls-server-name=example.org",
			ns:            "myns",
			debug:         true,
			maxhistory:    defaultMaxHistory,
			burstLimit:    100,
			kubeAsUser:    "deployer",
			kubeAsGroups:  []string{"admins", "release-eng"},
			kubeCaFile:    "/tmp/ca.crt",
			kubeTLSServer: "example.org",
			kubeInsecure:  true,
		},
		{
			name:          "with envvars set",
			envvars:       map[string]string{"SHERPACK_DEBUG": "1", "SHERPACK_NAMESPACE": "yourns", "SHERPACK_KUBEASUSER": "ci-bot", "SHERPACK_KUBEASGROUPS": ",,,operators,release-eng", "SHERPACK_MAX_HISTORY": "5", "SHERPACK_KUBECAFILE": "/tmp/ca.crt", "SHERPACK_BURST_LIMIT": "150", "SHERPACK_KUBEINSECURE_SKIP_TLS_VERIFY": "true", "SHERPACK_KUBETLS_SERVER_NAME": "example.org"},
			ns:            "yourns",
			maxhistory:    5,
			burstLimit:    150,
			debug:         true,
			kubeAsUser:    "ci-bot",
			kubeAsGroups:  []string{"operators", "release-eng"},
			kubeCaFile:    "/tmp/ca.crt",
			kubeTLSServer: "example.org",
			kubeInsecure:  true,
		},
		{
			name:          "with flags and envvars set",
			args:          "--debug --namespace=myns --kube-as-user=deployer --kube-as-group=admins --kube-as-group=release-eng --kube-ca-file=/my/ca.crt --burst-limit 175 --kube-insecure-skip-tls-verify=true --kube-tls-server-name=example.org",
			envvars:       map[string]string{"SHERPACK_DEBUG": "1", "SHERPACK_NAMESPACE": "yourns", "SHERPACK_KUBEASUSER": "ci-bot", "SHERPACK_KUBEASGROUPS": ",,,operators,release-eng", "SHERPACK_MAX_HISTORY": "5", "SHERPACK_KUBECAFILE": "/tmp/ca.crt", "SHERPACK_BURST_LIMIT": "200", "SHERPACK_KUBEINSECURE_SKIP_TLS_VERIFY": "true", "SHERPACK_KUBETLS_SERVER_NAME": "example.org"},
			ns:            "myns",
			debug:         true,
			maxhistory:    5,
			burstLimit:    175,
			kubeAsUser:    "deployer",
			kubeAsGroups:  []string{"admins", "release-eng"},
			kubeCaFile:    "/my/ca.crt",
			kubeTLSServer: "example.org",
			kubeInsecure:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer resetEnv()()

			for k, v := range tt.envvars {
				os.Setenv(k, v)
			}

			flags := pflag.NewFlagSet("testing", pflag.ContinueOnError)

			settings := New()
			settings.AddFlags(flags)
			flags.Parse(strings.Split(tt.args, " "))

			assert.Equal(t, tt.debug, settings.Debug)
			assert.Equal(t, tt.ns, settings.Namespace())
			assert.Equal(t, tt.kcontext, settings.KubeContext)
			assert.Equal(t, tt.maxhistory, settings.MaxHistory)
			assert.Equal(t, tt.kubeAsUser, settings.KubeAsUser)
			assert.Equal(t, tt.kubeAsGroups, settings.KubeAsGroups)
			assert.Equal(t, tt.kubeCaFile, settings.KubeCaFile)
			assert.Equal(t, tt.burstLimit, settings.BurstLimit)
			assert.Equal(t, tt.kubeInsecure, settings.KubeInsecureSkipTLSVerify)
			assert.Equal(t, tt.kubeTLSServer, settings.KubeTLSServerName)
		})
	}
}

func TestEnvOrBool(t *testing.T) {
	const envName = "TEST_ENV_OR_BOOL"
	tests := []struct {
		name     string
		env      string
		val      string
		def      bool
		expected bool
	}{
		{
			name:     "unset with default false",
			def:      false,
			expected: false,
		},
		{
			name:     "unset with default true",
			def:      true,
			expected: true,
		},
		{
			name:     "blank env with default false",
			env:      envName,
			def:      false,
			expected: false,
		},
		{
			name:     "blank env with default true",
			env:      envName,
			def:      true,
			expected: true,
		},
		{
			name:     "env true with default false",
			env:      envName,
			val:      "true",
			def:      false,
			expected: true,
		},
		{
			name:     "env false with default true",
			env:      envName,
			val:      "false",
			def:      true,
			expected: false,
		},
		{
			name:     "env fails parsing with default true",
			env:      envName,
			val:      "NOT_A_BOOL",
			def:      true,
			expected: true,
		},
		{
			name:     "env fails parsing with default false",
			env:      envName,
			val:      "NOT_A_BOOL",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Cleanup(func() {
					os.Unsetenv(tt.env)
				})
				os.Setenv(tt.env, tt.val)
			}
			assert.Equal(t, tt.expected, envBoolOr(tt.env, tt.def))
		})
	}
}

func TestUserAgentHeaderInK8sRESTClientConfig(t *testing.T) {
	defer resetEnv()()

	settings := New()
	restConfig, err := settings.RESTClientGetter().ToRESTConfig()
	require.NoError(t, err)
	assert.Equal(t, version.GetUserAgent(), restConfig.UserAgent)
}

func resetEnv() func() {
	origEnv := os.Environ()

	// ensure any local envvars do not hose us
	for e := range New().EnvVars() {
		os.Unsetenv(e)
	}

	return func() {
		for _, pair := range origEnv {
			kv := strings.SplitN(pair, "=", 2)
			os.Setenv(kv[0], kv[1])
		}
	}
}

func TestEnvSettings_BackupKubeConfig(t *testing.T) {
	var (
		testDataDir        = `testdata/`
		kubeConfigFilename = testDataDir + "kubeconfig"
	)

	type fields struct {
		KubeConfig          string
		sherpackConfigHome string
	}

	type toggles struct {
		wantErr               bool
		cleanUpTestKubeConfig bool
	}

	type testCase struct {
		name    string
		fields  fields
		toggles toggles
	}

	tests := []testCase{
		{
			name: "Backup kube config",
			fields: fields{
				KubeConfig:         testDataDir + `valid-kubeconfig-no-contexts`,
				sherpackConfigHome: testDataDir,
			},
			toggles: toggles{
				cleanUpTestKubeConfig: true,
			},
		},
		{
			name: "Failure missing input kube config file",
			fields: fields{
				KubeConfig:         testDataDir + `missing-kubeconfig`,
				sherpackConfigHome: testDataDir,
			},
			toggles: toggles{
				wantErr: true,
			},
		},
		{
			name: "Failure invalid destination path",
			fields: fields{
				KubeConfig:         testDataDir + `valid-kubeconfig-no-contexts`,
				sherpackConfigHome: testDataDir + `non-existing-dir/`,
			},
			toggles: toggles{
				wantErr: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &EnvSettings{
				KubeConfig: tt.fields.KubeConfig,
			}

			t.Setenv(`SHERPACK_CONFIG_HOME`, tt.fields.sherpackConfigHome)

			err := s.BackupKubeConfig()
			if (err != nil) != tt.toggles.wantErr {
				t.Errorf("EnvSettings.BackupKubeConfig() error = %v, wantErr %v",
					err, tt.toggles.wantErr)
			}

			if !tt.toggles.wantErr && s.KubeConfig != kubeConfigFilename {
				t.Errorf("kube config path not updated after backup, want = %s, got = %s",
					kubeConfigFilename, s.KubeConfig)
			}

			if tt.toggles.cleanUpTestKubeConfig {
				err = os.Remove(kubeConfigFilename)
				if err != nil {
					t.Errorf("failed to delete %q: %v", kubeConfigFilename, err)
				}
			}
		})
	}
}
