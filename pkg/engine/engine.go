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

// Package engine renders a loaded pack tree into Kubernetes manifests
// through the lang sandbox: builtin functions, subchart
// value scoping, the sandboxed `files` object, pluggable `lookup`
// providers, and `tpl()` re-entry — none of it using Go's text/template.
package engine

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"

	"sherpack.sh/sherpack/pkg/engine/lang"
	"sherpack.sh/sherpack/pkg/pack"
)

// Capabilities describes the target cluster surface visible to templates.
type Capabilities struct {
	KubeVersion string
	APIVersions []string
}

// ReleaseContext is the `release` built-in exposed to templates.
type ReleaseContext struct {
	Name      string
	Namespace string
	Revision  int
	IsInstall bool
	IsUpgrade bool
	Service   string
}

// Options controls one Render call.
type Options struct {
	Release       ReleaseContext
	Capabilities  Capabilities
	Lookup        LookupProvider // nil uses NoLookupProvider
	Deterministic bool           // now()/uuidv4() fixed-output mode; the zero value (false) uses the wall clock and random UUIDs
	Lenient       bool           // collect per-template errors instead of failing fast
	MaxTplDepth   int            // default 3
}

// RenderReport is the result of a Render call.
type RenderReport struct {
	Manifests map[string]string // path -> rendered content, sorted path order on read
	Notes     map[string]string // path -> rendered NOTES.txt content
	Errors    []error
	Warnings  []string
}

// Engine renders pack trees. Its Funcs/Filters table is built once from
// sprig plus the spec's own filters/functions.
type Engine struct {
	Funcs            map[string]lang.Func
	Filters          map[string]lang.FilterFunc
	MaxSubchartDepth int
}

// New returns an Engine with the full builtin table wired.
func New() *Engine {
	funcs, filters := builtinFuncs()
	return &Engine{Funcs: funcs, Filters: filters, MaxSubchartDepth: 10}
}

type renderState struct {
	registry map[string]string // import key -> raw template source
	report   *RenderReport
	opts     Options
	funcs    map[string]lang.Func
	tplDepth *int
}

// Render walks p and its resolved dependencies, producing one entry in the
// returned RenderReport per manifest/notes template, keyed by the path
// convention "<effective-name>/<template-relative-path>" (root has no
// prefix). values is the fully merged top-level values tree (schema
// defaults < pack defaults < -f files < --set —
// that composition happens in pkg/action before Render is called).
func (e *Engine) Render(p *pack.Pack, values map[string]interface{}, opts Options) (*RenderReport, error) {
	if opts.MaxTplDepth == 0 {
		opts.MaxTplDepth = 3
	}
	st := &renderState{
		registry: map[string]string{},
		report:   &RenderReport{Manifests: map[string]string{}, Notes: map[string]string{}},
		opts:     opts,
	}
	registerTemplates(st.registry, p, "")

	depth := 0
	if err := e.renderPack(p, values, "", &depth, st); err != nil {
		return st.report, err
	}
	if st.opts.Lenient && len(st.report.Errors) > 0 {
		return st.report, &multierror.Error{Errors: st.report.Errors}
	}
	return st.report, nil
}

func registerTemplates(reg map[string]string, p *pack.Pack, prefix string) {
	for _, t := range p.Templates {
		reg[registryKey(prefix, t.Name)] = string(t.Data)
	}
	for i, dep := range p.Dependencies() {
		spec := dependencySpecFor(p, i)
		childPrefix := joinPrefix(prefix, spec.EffectiveName())
		registerTemplates(reg, dep, childPrefix)
	}
}

func dependencySpecFor(p *pack.Pack, i int) *pack.DependencySpec {
	if p.Metadata != nil && i < len(p.Metadata.Dependencies) {
		return &p.Metadata.Dependencies[i]
	}
	return &pack.DependencySpec{}
}

func joinPrefix(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func registryKey(prefix, relPath string) string {
	rel := strings.TrimPrefix(relPath, "templates/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

func stripExt(p string) string {
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext)
}

func (e *Engine) renderPack(p *pack.Pack, values map[string]interface{}, prefix string, depth *int, st *renderState) error {
	if *depth > e.MaxSubchartDepth {
		return fmt.Errorf("MaxSubchartDepth: exceeded depth %d rendering %q", e.MaxSubchartDepth, p.Name())
	}

	ev := e.newEvaluator(p, values, prefix, st)

	if !p.IsLibrary() {
		for _, t := range p.Templates {
			if pack.RoleOf(t.Name) == pack.RoleHelper {
				continue
			}
			key := registryKey(prefix, t.Name)
			tmpl, err := lang.Parse(key, string(t.Data))
			if err != nil {
				if st.opts.Lenient {
					st.report.Errors = append(st.report.Errors, err)
					continue
				}
				return err
			}
			out, err := ev.Render(tmpl, nil)
			if err != nil {
				if st.opts.Lenient {
					st.report.Errors = append(st.report.Errors, err)
					continue
				}
				return err
			}
			switch pack.RoleOf(t.Name) {
			case pack.RoleNotes:
				st.report.Notes[key] = out
			default:
				st.report.Manifests[key] = out
			}
		}
	}

	for i, sub := range p.Dependencies() {
		spec := dependencySpecFor(p, i)
		if !spec.Enabled {
			continue
		}
		subValues := scopedValues(values, sub, spec)
		childDepth := *depth + 1
		if err := e.renderPack(sub, subValues, joinPrefix(prefix, spec.EffectiveName()), &childDepth, st); err != nil {
			return err
		}
	}
	return nil
}

// newEvaluator builds a fresh lang.Evaluator scoped to one pack's render
// pass: its globals (values/release/pack/capabilities/files), its import
// resolver rooted at the shared template registry, and the specials
// (tpl/now/uuidv4/lookup/lookup_detailed) that need render-time context.
func (e *Engine) newEvaluator(p *pack.Pack, values map[string]interface{}, prefix string, st *renderState) *evalWrapper {
	lp := st.opts.Lookup
	if lp == nil {
		lp = NoLookupProvider{}
	}
	globals := map[string]interface{}{
		"values": values,
		"release": map[string]interface{}{
			"name":       st.opts.Release.Name,
			"namespace":  st.opts.Release.Namespace,
			"revision":   float64(st.opts.Release.Revision),
			"is_install": st.opts.Release.IsInstall,
			"is_upgrade": st.opts.Release.IsUpgrade,
			"service":    st.opts.Release.Service,
		},
		"pack": map[string]interface{}{
			"name":        p.Name(),
			"version":     metaField(p, func(m *pack.Metadata) string { return m.Version }),
			"app_version": metaField(p, func(m *pack.Metadata) string { return m.AppVersion }),
		},
		"capabilities": map[string]interface{}{
			"kube_version": st.opts.Capabilities.KubeVersion,
			"api_versions": toInterfaceSlice(st.opts.Capabilities.APIVersions),
		},
		"files": filesContextValue(newSandboxedFiles(p)),
	}

	ev := lang.NewEvaluator()
	ev.Strict = true
	ev.MaxTplDepth = st.opts.MaxTplDepth
	ev.Funcs = map[string]lang.Func{}
	for k, v := range e.Funcs {
		ev.Funcs[k] = v
	}
	ev.Filters = e.Filters
	ev.DenyFuncs = map[string]bool{}

	restricted := map[string]interface{}{
		"values": values,
		"release": map[string]interface{}{
			"name":      st.opts.Release.Name,
			"namespace": st.opts.Release.Namespace,
		},
	}
	ev.Funcs["tpl"] = func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("tpl requires a template string argument")
		}
		s := lang.ToDisplayString(args[0])
		ctx := restricted
		if len(args) > 1 {
			if m, ok := args[1].(map[string]interface{}); ok {
				ctx = m
			}
		}
		sandboxed := lang.NewEvaluator()
		sandboxed.Strict = ev.Strict
		sandboxed.MaxTplDepth = ev.MaxTplDepth
		sandboxed.Funcs = ev.Funcs
		sandboxed.Filters = ev.Filters
		sandboxed.DenyFuncs = map[string]bool{"tpl": true, "lookup": true, "lookup_detailed": true, "fail": true}
		return sandboxed.RenderString("tpl()", s, ctx)
	}
	ev.Funcs["now"] = func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		if !st.opts.Deterministic {
			return time.Now().UTC().Format(time.RFC3339), nil
		}
		return time.Unix(0, 0).UTC().Format(time.RFC3339), nil
	}
	seedCounter := 0
	ev.Funcs["uuidv4"] = func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		if !st.opts.Deterministic {
			return uuid.New().String(), nil
		}
		seedCounter++
		seed := fmt.Sprintf("%s/%s/%d", st.opts.Release.Name, prefix, seedCounter)
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String(), nil
	}
	ev.Funcs["lookup"] = func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		r, err := doLookup(lp, args)
		if err != nil {
			return nil, err
		}
		return lookupResultToValue(r), nil
	}
	ev.Funcs["lookup_detailed"] = func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		r, err := doLookup(lp, args)
		if err != nil {
			return nil, err
		}
		return lookupResultToDetailed(r), nil
	}

	ev.Import = func(fromFile, p string) (string, string, error) {
		key := strings.TrimPrefix(p, "./")
		if src, ok := st.registry[key]; ok {
			return src, key, nil
		}
		for regKey, src := range st.registry {
			if stripExt(regKey) == key {
				return src, regKey, nil
			}
		}
		return "", "", fmt.Errorf("no such template %q", p)
	}

	return &evalWrapper{Evaluator: ev, globals: globals}
}

type evalWrapper struct {
	*lang.Evaluator
	globals map[string]interface{}
}

func (w *evalWrapper) Render(tmpl *lang.Template, extra map[string]interface{}) (string, error) {
	g := w.globals
	if len(extra) > 0 {
		merged := make(map[string]interface{}, len(g)+len(extra))
		for k, v := range g {
			merged[k] = v
		}
		for k, v := range extra {
			merged[k] = v
		}
		g = merged
	}
	return w.Evaluator.Render(tmpl, g)
}

func doLookup(lp LookupProvider, args []interface{}) (LookupResult, error) {
	if len(args) != 4 {
		return LookupResult{}, fmt.Errorf("lookup requires (apiVersion, kind, namespace, name)")
	}
	return lp.Lookup(
		lang.ToDisplayString(args[0]),
		lang.ToDisplayString(args[1]),
		lang.ToDisplayString(args[2]),
		lang.ToDisplayString(args[3]),
	)
}

func metaField(p *pack.Pack, f func(*pack.Metadata) string) string {
	if p.Metadata == nil {
		return ""
	}
	return f(p.Metadata)
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

// SortedManifestPaths returns a RenderReport's manifest keys in sorted
// order.
func SortedManifestPaths(r *RenderReport) []string {
	keys := make([]string, 0, len(r.Manifests))
	for k := range r.Manifests {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
