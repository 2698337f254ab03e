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

// Package cli describes the operating environment for the sherpack CLI.
//
// sherpack's environment encapsulates all the service dependencies sherpack
// needs to operate: the Kubernetes context to act against, where to find
// cached packs and repository indexes, and how verbose to be about it.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/rest"

	"sherpack.sh/sherpack/internal/version"
)

const (
	defaultMaxHistory = 10
	defaultBurstLimit = 100
)

// EnvSettings describes all of the environment settings sherpack uses,
// whether sourced from flags or from SHERPACK_* environment variables.
type EnvSettings struct {
	namespace        string
	config           *genericclioptions.ConfigFlags
	configInit       bool

	// KubeConfig is the path to the kubeconfig file.
	KubeConfig string
	// KubeContext is the name of the kubeconfig context to use.
	KubeContext string
	// KubeToken overrides the bearer token from the kubeconfig.
	KubeToken string
	// KubeAsUser is the username to impersonate for the operation.
	KubeAsUser string
	// KubeAsGroups are the groups to impersonate for the operation.
	KubeAsGroups []string
	// KubeAPIServer overrides the address of the API server.
	KubeAPIServer string
	// KubeCaFile is the certificate authority file for the Kubernetes API server connection.
	KubeCaFile string
	// KubeInsecureSkipTLSVerify indicates the Kubernetes API server's certificate should not be checked for validity.
	KubeInsecureSkipTLSVerify bool
	// KubeTLSServerName overrides the name used to validate the Kubernetes API server certificate.
	KubeTLSServerName string
	// Debug enables verbose output.
	Debug bool
	// RegistryConfig is the path to the registry config file.
	RegistryConfig string
	// RepositoryConfig is the path to the repositories file.
	RepositoryConfig string
	// RepositoryCache is the path to the repository download cache.
	RepositoryCache string
	// PluginsDirectory is the location of installed sherpack plugins.
	PluginsDirectory string
	// MaxHistory is the maximum number of release revisions saved per release.
	MaxHistory int
	// BurstLimit is the client-side default throttling limit.
	BurstLimit int
	// QPS is the client-side default QPS limit.
	QPS float32
}

// New returns default environment settings, reading any already-exported
// SHERPACK_* environment variables.
func New() *EnvSettings {
	env := EnvSettings{
		namespace:        os.Getenv("SHERPACK_NAMESPACE"),
		MaxHistory:       envIntOr("SHERPACK_MAX_HISTORY", defaultMaxHistory),
		KubeContext:      os.Getenv("SHERPACK_KUBECONTEXT"),
		KubeToken:        os.Getenv("SHERPACK_KUBETOKEN"),
		KubeAsUser:       os.Getenv("SHERPACK_KUBEASUSER"),
		KubeAsGroups:     envCSV("SHERPACK_KUBEASGROUPS"),
		KubeAPIServer:    os.Getenv("SHERPACK_KUBEAPISERVER"),
		KubeCaFile:       os.Getenv("SHERPACK_KUBECAFILE"),
		PluginsDirectory: envOr("SHERPACK_PLUGINS", defaultPluginsDirectory()),
		RegistryConfig:   envOr("SHERPACK_REGISTRY_CONFIG", defaultRegistryConfig()),
		RepositoryConfig: envOr("SHERPACK_REPOSITORY_CONFIG", defaultRepositoryConfig()),
		RepositoryCache:  envOr("SHERPACK_REPOSITORY_CACHE", defaultRepositoryCache()),
		BurstLimit:       envIntOr("SHERPACK_BURST_LIMIT", defaultBurstLimit),
		QPS:              float32(envIntOr("SHERPACK_QPS", 0)),
		KubeInsecureSkipTLSVerify: envBoolOr("SHERPACK_KUBEINSECURE_SKIP_TLS_VERIFY", false),
		KubeTLSServerName:         os.Getenv("SHERPACK_KUBETLS_SERVER_NAME"),
		Debug:                     envBoolOr("SHERPACK_DEBUG", false),
	}
	return &env
}

// AddFlags binds sherpack's global flags to the supplied flag set.
func (s *EnvSettings) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&s.namespace, "namespace", "n", s.namespace, "namespace scope for this request")
	fs.StringVar(&s.KubeContext, "kube-context", s.KubeContext, "name of the kubeconfig context to use")
	fs.StringVar(&s.KubeConfig, "kubeconfig", "", "path to the kubeconfig file")
	fs.BoolVar(&s.Debug, "debug", s.Debug, "enable verbose output")
	fs.StringVar(&s.RegistryConfig, "registry-config", s.RegistryConfig, "path to the registry config file")
	fs.StringVar(&s.RepositoryConfig, "repository-config", s.RepositoryConfig, "path to the file containing repository names and URLs")
	fs.StringVar(&s.RepositoryCache, "repository-cache", s.RepositoryCache, "path to the directory containing cached repository indexes")
	fs.StringVar(&s.KubeToken, "kube-token", s.KubeToken, "bearer token used for authentication")
	fs.StringVar(&s.KubeAsUser, "kube-as-user", s.KubeAsUser, "username to impersonate for the operation")
	fs.StringArrayVar(&s.KubeAsGroups, "kube-as-group", s.KubeAsGroups, "group to impersonate for the operation, this flag can be repeated to specify multiple groups")
	fs.StringVar(&s.KubeAPIServer, "kube-apiserver", s.KubeAPIServer, "the address and the port for the Kubernetes API server")
	fs.StringVar(&s.KubeCaFile, "kube-ca-file", s.KubeCaFile, "the certificate authority file for the Kubernetes API server connection")
	fs.IntVar(&s.MaxHistory, "history-max", s.MaxHistory, "limit the maximum number of revisions saved per release; use 0 for no limit")
	fs.IntVar(&s.BurstLimit, "burst-limit", s.BurstLimit, "client-side default throttling limit")
	fs.Float32Var(&s.QPS, "qps", s.QPS, "queries per second used when communicating with the Kubernetes API, not including bursting")
	fs.BoolVar(&s.KubeInsecureSkipTLSVerify, "kube-insecure-skip-tls-verify", s.KubeInsecureSkipTLSVerify, "if true, the Kubernetes API server's certificate will not be checked for validity")
	fs.StringVar(&s.KubeTLSServerName, "kube-tls-server-name", s.KubeTLSServerName, "server name to use for Kubernetes API server certificate validation; if unset, the hostname used to contact the server is used")
}

// SetNamespace overrides the namespace derived from the kubeconfig context.
func (s *EnvSettings) SetNamespace(namespace string) {
	s.namespace = namespace
}

// Namespace returns the effective namespace, falling back to the
// kubeconfig context's namespace when no override was set.
func (s *EnvSettings) Namespace() string {
	if s.namespace != "" {
		return s.namespace
	}
	if ns, _, err := s.RESTClientGetter().ToRawKubeConfigLoader().Namespace(); err == nil {
		return ns
	}
	return "default"
}

// EnvVars returns the current SHERPACK_* environment variable settings,
// used both to print `sherpack env` and to reset state between test runs.
func (s *EnvSettings) EnvVars() map[string]string {
	envvars := map[string]string{
		"SHERPACK_BIN_DIR":           "", // filled in by callers that know the executable's own directory
		"SHERPACK_DEBUG":             fmt.Sprintf("%t", s.Debug),
		"SHERPACK_PLUGINS":           s.PluginsDirectory,
		"SHERPACK_REGISTRY_CONFIG":   s.RegistryConfig,
		"SHERPACK_REPOSITORY_CONFIG": s.RepositoryConfig,
		"SHERPACK_REPOSITORY_CACHE":  s.RepositoryCache,
		"SHERPACK_NAMESPACE":         s.namespace,
		"SHERPACK_MAX_HISTORY":       strconv.Itoa(s.MaxHistory),
		"SHERPACK_BURST_LIMIT":       strconv.Itoa(s.BurstLimit),
		"SHERPACK_QPS":               strconv.Itoa(int(s.QPS)),

		// broken out of the standard ConfigFlags for API consistency with the above
		"SHERPACK_KUBECONTEXT":                     s.KubeContext,
		"SHERPACK_KUBETOKEN":                       s.KubeToken,
		"SHERPACK_KUBEASUSER":                       s.KubeAsUser,
		"SHERPACK_KUBEASGROUPS":                     strings.Join(s.KubeAsGroups, ","),
		"SHERPACK_KUBEAPISERVER":                    s.KubeAPIServer,
		"SHERPACK_KUBECAFILE":                       s.KubeCaFile,
		"SHERPACK_KUBEINSECURE_SKIP_TLS_VERIFY":     fmt.Sprintf("%t", s.KubeInsecureSkipTLSVerify),
		"SHERPACK_KUBETLS_SERVER_NAME":              s.KubeTLSServerName,
	}
	if s.KubeConfig != "" {
		envvars["KUBECONFIG"] = s.KubeConfig
	}
	return envvars
}

// RESTClientGetter returns a RESTClientGetter for use by sherpack's
// Kubernetes client, configured from both flags and sherpack's own
// user agent string.
func (s *EnvSettings) RESTClientGetter() genericclioptions.RESTClientGetter {
	if !s.configInit {
		s.config = &genericclioptions.ConfigFlags{
			Namespace:        &s.namespace,
			Context:          &s.KubeContext,
			BearerToken:      &s.KubeToken,
			APIServer:        &s.KubeAPIServer,
			CAFile:           &s.KubeCaFile,
			KubeConfig:       &s.KubeConfig,
			Impersonate:      &s.KubeAsUser,
			ImpersonateGroup: &s.KubeAsGroups,
			Insecure:         &s.KubeInsecureSkipTLSVerify,
			TLSServerName:    &s.KubeTLSServerName,
			WrapConfigFn: func(cfg *rest.Config) *rest.Config {
				cfg.UserAgent = version.GetUserAgent()
				cfg.Burst = s.BurstLimit
				cfg.QPS = s.QPS
				return cfg
			},
		}
		s.configInit = true
	}
	return s.config
}

// BackupKubeConfig copies the configured kubeconfig file into sherpack's
// config home and repoints KubeConfig at the copy, so later steps (plugin
// invocations, post-renderers) can rely on a stable path even if the
// original file moves or is deleted.
func (s *EnvSettings) BackupKubeConfig() error {
	src, err := os.Open(s.KubeConfig)
	if err != nil {
		return fmt.Errorf("opening kubeconfig to back up: %w", err)
	}
	defer src.Close()

	dest := filepath.Join(os.Getenv("SHERPACK_CONFIG_HOME"), "kubeconfig")
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating kubeconfig backup: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copying kubeconfig backup: %w", err)
	}

	s.KubeConfig = dest
	return nil
}

func defaultPluginsDirectory() string {
	return filepath.Join(configHome(), "sherpack", "plugins")
}

func defaultRegistryConfig() string {
	return filepath.Join(configHome(), "sherpack", "registry.json")
}

func defaultRepositoryConfig() string {
	return filepath.Join(configHome(), "sherpack", "repositories.yaml")
}

func defaultRepositoryCache() string {
	return filepath.Join(cacheHome(), "sherpack")
}

func configHome() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func cacheHome() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return "."
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

func envIntOr(name string, def int) int {
	if v, ok := os.LookupEnv(name); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		slog.Warn("ignoring unparsable environment variable", "name", name, "value", v)
	}
	return def
}

func envBoolOr(name string, def bool) bool {
	if name == "" {
		return def
	}
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envCSV(name string) (result []string) {
	sep := ","
	if v := strings.Trim(os.Getenv(name), ", "); v != "" {
		result = strings.Split(v, sep)
	}
	return
}
