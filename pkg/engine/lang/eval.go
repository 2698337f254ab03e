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

package lang

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Undefined is the sentinel value for a name or attribute that does not
// resolve. It propagates silently through attribute/index access so that
// `a.b.c | default(x)` works without raising at every hop; any other consumer (output,
// arithmetic, a filter that calls Require) turns it into a hard error.
type Undefined struct{ Name string }

func (Undefined) isUndefined() {}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v interface{}) bool {
	_, ok := v.(Undefined)
	return ok
}

// Func is a plain callable: `name(args...)`.
type Func func(args []interface{}, kwargs map[string]interface{}) (interface{}, error)

// FilterFunc is a pipe filter: `value | name(args...)`.
type FilterFunc func(value interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error)

// Namespace is the result of `import "path" as ns`: a bag of macros
// addressable as ns.macroName(...).
type Namespace struct {
	Macros map[string]*Macro
}

// Macro is a first-class template object defined by {% macro %}.
type Macro struct {
	Name    string
	Params  []MacroParam
	Body    []Node
	Closure *Env
	Eval    *Evaluator
}

// Env is a lexically scoped variable frame.
type Env struct {
	vars   map[string]interface{}
	parent *Env
}

// NewEnv returns a root environment seeded with globals.
func NewEnv(globals map[string]interface{}) *Env {
	return &Env{vars: globals}
}

// Child returns a new scope nested under e.
func (e *Env) Child() *Env {
	return &Env{vars: map[string]interface{}{}, parent: e}
}

func (e *Env) lookup(name string) (interface{}, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Env) set(name string, val interface{}) {
	e.vars[name] = val
}

// names returns every name visible from e, used for edit-distance
// suggestions on undefined-name errors.
func (e *Env) names() []string {
	seen := map[string]bool{}
	for s := e; s != nil; s = s.parent {
		for k := range s.vars {
			seen[k] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Import resolves the template source for an import/from-import target,
// relative to the importing file.
type Import func(fromFile, path string) (src string, resolvedPath string, err error)

// LookupFunc answers a `lookup()`/`lookup_detailed()` call.
type LookupFunc func(apiVersion, kind, namespace, name string) (LookupResult, error)

// LookupResult tags the outcome of a LookupFunc call.
type LookupResult struct {
	Kind  string // Found, NotFound, Forbidden, Unavailable, Mocked, Cached
	Value map[string]interface{}
	Msg   string
	Age   string
}

// Evaluator renders parsed Templates against an Env, with pluggable
// builtins and sandboxing knobs.
type Evaluator struct {
	Funcs       map[string]Func
	Filters     map[string]FilterFunc
	Import      Import
	Lookup      LookupFunc
	Strict      bool
	MaxTplDepth int // tpl() recursion guard, default 3
	DenyFuncs   map[string]bool

	moduleCache map[string]*Module
	tplDepth    int
}

// Module is the result of fully evaluating an imported file's top-level
// macro definitions.
type Module struct {
	Macros map[string]*Macro
}

// NewEvaluator returns an Evaluator with empty builtin tables; callers
// populate Funcs/Filters (pkg/engine wires sprig + the spec's filter list).
func NewEvaluator() *Evaluator {
	return &Evaluator{
		Funcs:       map[string]Func{},
		Filters:     map[string]FilterFunc{},
		MaxTplDepth: 3,
		moduleCache: map[string]*Module{},
	}
}

// Render evaluates tmpl against globals and returns the rendered string.
func (e *Evaluator) Render(tmpl *Template, globals map[string]interface{}) (string, error) {
	env := NewEnv(globals)
	var b strings.Builder
	if err := e.execBody(tmpl.File, tmpl.Body, env, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (e *Evaluator) execBody(file string, nodes []Node, env *Env, out *strings.Builder) error {
	for _, n := range nodes {
		if err := e.execNode(file, n, env, out); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) execNode(file string, n Node, env *Env, out *strings.Builder) error {
	switch v := n.(type) {
	case *TextNode:
		out.WriteString(v.Text)
		return nil
	case *OutputNode:
		val, err := e.eval(file, v.Expr, env)
		if err != nil {
			return err
		}
		if IsUndefined(val) {
			return e.undefinedErr(file, v.Pos, val.(Undefined).Name, env)
		}
		out.WriteString(ToDisplayString(val))
		return nil
	case *IfNode:
		for _, br := range v.Branches {
			if br.Cond == nil {
				return e.execBody(file, br.Body, env.Child(), out)
			}
			cv, err := e.eval(file, br.Cond, env)
			if err != nil {
				return err
			}
			if Truthy(cv) {
				return e.execBody(file, br.Body, env.Child(), out)
			}
		}
		return nil
	case *ForNode:
		return e.execFor(file, v, env, out)
	case *WithNode:
		child := env.Child()
		for i, name := range v.Names {
			val, err := e.eval(file, v.Values[i], env)
			if err != nil {
				return err
			}
			child.set(name, val)
		}
		return e.execBody(file, v.Body, child, out)
	case *SetNode:
		val, err := e.eval(file, v.Value, env)
		if err != nil {
			return err
		}
		env.set(v.Name, val)
		return nil
	case *MacroNode:
		env.set(v.Name, &Macro{Name: v.Name, Params: v.Params, Body: v.Body, Closure: env, Eval: e})
		return nil
	case *ImportNode:
		mod, err := e.resolveModule(file, v.Path)
		if err != nil {
			return &EvalError{File: file, Pos: v.Pos, Msg: "import " + v.Path, Cause: err}
		}
		env.set(v.As, &Namespace{Macros: mod.Macros})
		return nil
	case *FromImportNode:
		mod, err := e.resolveModule(file, v.Path)
		if err != nil {
			return &EvalError{File: file, Pos: v.Pos, Msg: "from-import " + v.Path, Cause: err}
		}
		for _, fn := range v.Names {
			m, ok := mod.Macros[fn.Name]
			if !ok {
				return &EvalError{File: file, Pos: v.Pos, Msg: "no macro " + fn.Name + " in " + v.Path}
			}
			local := fn.Name
			if fn.Alias != "" {
				local = fn.Alias
			}
			env.set(local, m)
		}
		return nil
	default:
		return &EvalError{File: file, Pos: n.At(), Msg: "unsupported node"}
	}
}

func (e *Evaluator) execFor(file string, v *ForNode, env *Env, out *strings.Builder) error {
	iterVal, err := e.eval(file, v.Iter, env)
	if err != nil {
		return err
	}
	type pair struct {
		k interface{}
		v interface{}
	}
	var items []pair
	switch coll := iterVal.(type) {
	case []interface{}:
		for i, x := range coll {
			items = append(items, pair{k: float64(i), v: x})
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(coll))
		for k := range coll {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			items = append(items, pair{k: k, v: coll[k]})
		}
	case Undefined:
		return e.undefinedErr(file, v.Pos, coll.Name, env)
	default:
		return &EvalError{File: file, Pos: v.Pos, Msg: "not iterable"}
	}
	if len(items) == 0 && v.Else != nil {
		return e.execBody(file, v.Else, env.Child(), out)
	}
	for i, it := range items {
		child := env.Child()
		if v.KeyVar != "" {
			child.set(v.KeyVar, it.k)
			child.set(v.ValueVar, it.v)
		} else {
			child.set(v.ValueVar, it.v)
		}
		child.set("loop", map[string]interface{}{
			"index":  float64(i + 1),
			"index0": float64(i),
			"first":  i == 0,
			"last":   i == len(items)-1,
			"length": float64(len(items)),
		})
		if err := e.execBody(file, v.Body, child, out); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) undefinedErr(file string, pos Pos, name string, env *Env) error {
	if !e.Strict {
		return nil
	}
	return &UndefinedError{File: file, Pos: pos, Name: name, Suggestions: suggest(name, env.names(), 3)}
}

// eval evaluates expr. On a strict-mode undefined-name failure that occurs
// directly under a FilterExpr target, the error is swallowed and Undefined
// is returned instead, letting `default`/`required` observe it.
func (e *Evaluator) eval(file string, expr Expr, env *Env) (interface{}, error) {
	switch v := expr.(type) {
	case *LiteralExpr:
		return v.Value, nil
	case *ListExpr:
		out := make([]interface{}, 0, len(v.Items))
		for _, it := range v.Items {
			val, err := e.eval(file, it, env)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case *DictExpr:
		out := map[string]interface{}{}
		for i, k := range v.Keys {
			kv, err := e.eval(file, k, env)
			if err != nil {
				return nil, err
			}
			vv, err := e.eval(file, v.Values[i], env)
			if err != nil {
				return nil, err
			}
			out[ToDisplayString(kv)] = vv
		}
		return out, nil
	case *NameExpr:
		if val, ok := env.lookup(v.Name); ok {
			return val, nil
		}
		if e.Strict {
			return nil, &UndefinedError{File: file, Pos: v.Pos, Name: v.Name, Suggestions: suggest(v.Name, env.names(), 3)}
		}
		return Undefined{Name: v.Name}, nil
	case *AttrExpr:
		target, err := e.eval(file, v.Target, env)
		if err != nil {
			return nil, err
		}
		return e.getAttr(file, v.Pos, target, v.Name, env)
	case *IndexExpr:
		target, err := e.eval(file, v.Target, env)
		if err != nil {
			return nil, err
		}
		idx, err := e.eval(file, v.Index, env)
		if err != nil {
			return nil, err
		}
		return e.getIndex(file, v.Pos, target, idx)
	case *UnaryExpr:
		x, err := e.eval(file, v.X, env)
		if err != nil {
			return nil, err
		}
		if v.Op == "not" {
			return !Truthy(x), nil
		}
		n, err := requireNumber(file, v.Pos, x)
		if err != nil {
			return nil, err
		}
		return -n, nil
	case *BinaryExpr:
		return e.evalBinary(file, v, env)
	case *InExpr:
		left, err := e.eval(file, v.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := e.eval(file, v.Right, env)
		if err != nil {
			return nil, err
		}
		res := containsValue(right, left)
		if v.Not {
			return !res, nil
		}
		return res, nil
	case *CondExpr:
		cond, err := e.eval(file, v.Cond, env)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return e.eval(file, v.Then, env)
		}
		return e.eval(file, v.Else, env)
	case *FilterExpr:
		return e.evalFilter(file, v, env)
	case *CallExpr:
		return e.evalCall(file, v, env)
	default:
		return nil, &EvalError{File: file, Pos: expr.At(), Msg: "unsupported expression"}
	}
}

func (e *Evaluator) evalFilter(file string, v *FilterExpr, env *Env) (interface{}, error) {
	target, err := e.eval(file, v.Target, env)
	if err != nil {
		if ue, ok := err.(*UndefinedError); ok {
			target = Undefined{Name: ue.Name}
		} else {
			return nil, err
		}
	}
	fn, ok := e.Filters[v.Name]
	if !ok {
		return nil, &EvalError{File: file, Pos: v.Pos, Msg: "unknown filter " + v.Name}
	}
	if e.DenyFuncs[v.Name] {
		return nil, &EvalError{File: file, Pos: v.Pos, Msg: "filter " + v.Name + " is not permitted here"}
	}
	args := make([]interface{}, 0, len(v.Args))
	for _, a := range v.Args {
		av, err := e.eval(file, a, env)
		if err != nil {
			return nil, err
		}
		args = append(args, av)
	}
	kwargs := map[string]interface{}{}
	for k, a := range v.Kwargs {
		av, err := e.eval(file, a, env)
		if err != nil {
			return nil, err
		}
		kwargs[k] = av
	}
	out, err := fn(target, args, kwargs)
	if err != nil {
		return nil, &EvalError{File: file, Pos: v.Pos, Msg: "filter " + v.Name, Cause: err}
	}
	return out, nil
}

func (e *Evaluator) evalCall(file string, v *CallExpr, env *Env) (interface{}, error) {
	args := make([]interface{}, 0, len(v.Args))
	for _, a := range v.Args {
		av, err := e.eval(file, a, env)
		if err != nil {
			return nil, err
		}
		args = append(args, av)
	}
	kwargs := map[string]interface{}{}
	for k, a := range v.Kwargs {
		av, err := e.eval(file, a, env)
		if err != nil {
			return nil, err
		}
		kwargs[k] = av
	}

	if ne, ok := v.Callee.(*NameExpr); ok {
		if val, found := env.lookup(ne.Name); found {
			return e.invoke(file, v.Pos, val, args, kwargs)
		}
		if fn, ok := e.Funcs[ne.Name]; ok {
			if e.DenyFuncs[ne.Name] {
				return nil, &EvalError{File: file, Pos: v.Pos, Msg: "function " + ne.Name + " is not permitted here"}
			}
			out, err := fn(args, kwargs)
			if err != nil {
				return nil, &EvalError{File: file, Pos: v.Pos, Msg: "call " + ne.Name, Cause: err}
			}
			return out, nil
		}
		return nil, &UndefinedError{File: file, Pos: v.Pos, Name: ne.Name, Suggestions: suggest(ne.Name, env.names(), 3)}
	}
	callee, err := e.eval(file, v.Callee, env)
	if err != nil {
		return nil, err
	}
	return e.invoke(file, v.Pos, callee, args, kwargs)
}

// Callable lets host packages (pkg/engine's sandboxed `files` object) hand
// the evaluator arbitrary invokable values through ordinary attribute
// access, without the lang package knowing their concrete type.
type Callable interface {
	Call(args []interface{}, kwargs map[string]interface{}) (interface{}, error)
}

func (e *Evaluator) invoke(file string, pos Pos, callee interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if c, ok := callee.(Callable); ok {
		out, err := c.Call(args, kwargs)
		if err != nil {
			return nil, &EvalError{File: file, Pos: pos, Msg: "call", Cause: err}
		}
		return out, nil
	}
	m, ok := callee.(*Macro)
	if !ok {
		return nil, &EvalError{File: file, Pos: pos, Msg: "value is not callable"}
	}
	child := m.Closure.Child()
	for i, p := range m.Params {
		if i < len(args) {
			child.set(p.Name, args[i])
			continue
		}
		if av, ok := kwargs[p.Name]; ok {
			child.set(p.Name, av)
			continue
		}
		if p.Default != nil {
			dv, err := e.eval(file, p.Default, child)
			if err != nil {
				return nil, err
			}
			child.set(p.Name, dv)
			continue
		}
		return nil, &EvalError{File: file, Pos: pos, Msg: "macro " + m.Name + " missing argument " + p.Name}
	}
	var b strings.Builder
	if err := e.execBody(file, m.Body, child, &b); err != nil {
		return nil, err
	}
	return b.String(), nil
}

func (e *Evaluator) getAttr(file string, pos Pos, target interface{}, name string, env *Env) (interface{}, error) {
	switch t := target.(type) {
	case map[string]interface{}:
		if v, ok := t[name]; ok {
			return v, nil
		}
		if e.Strict {
			return nil, &UndefinedError{File: file, Pos: pos, Name: name}
		}
		return Undefined{Name: name}, nil
	case *Namespace:
		if m, ok := t.Macros[name]; ok {
			return m, nil
		}
		return nil, &EvalError{File: file, Pos: pos, Msg: "no macro " + name + " in namespace"}
	case Undefined:
		if e.Strict {
			return nil, &UndefinedError{File: file, Pos: pos, Name: t.Name + "." + name}
		}
		return Undefined{Name: t.Name + "." + name}, nil
	default:
		return nil, &EvalError{File: file, Pos: pos, Msg: fmt.Sprintf("cannot access attribute %q of %T", name, target)}
	}
}

func (e *Evaluator) getIndex(file string, pos Pos, target, idx interface{}) (interface{}, error) {
	switch t := target.(type) {
	case []interface{}:
		n, err := requireNumber(file, pos, idx)
		if err != nil {
			return nil, err
		}
		i := int(n)
		if i < 0 {
			i += len(t)
		}
		if i < 0 || i >= len(t) {
			return nil, &EvalError{File: file, Pos: pos, Msg: "index out of range"}
		}
		return t[i], nil
	case map[string]interface{}:
		key := ToDisplayString(idx)
		if v, ok := t[key]; ok {
			return v, nil
		}
		if e.Strict {
			return nil, &UndefinedError{File: file, Pos: pos, Name: key}
		}
		return Undefined{Name: key}, nil
	case string:
		n, err := requireNumber(file, pos, idx)
		if err != nil {
			return nil, err
		}
		r := []rune(t)
		i := int(n)
		if i < 0 || i >= len(r) {
			return nil, &EvalError{File: file, Pos: pos, Msg: "index out of range"}
		}
		return string(r[i]), nil
	default:
		return nil, &EvalError{File: file, Pos: pos, Msg: "value is not indexable"}
	}
}

func (e *Evaluator) resolveModule(fromFile, path string) (*Module, error) {
	if e.Import == nil {
		return nil, fmt.Errorf("imports are not supported in this context")
	}
	src, resolved, err := e.Import(fromFile, path)
	if err != nil {
		return nil, err
	}
	if mod, ok := e.moduleCache[resolved]; ok {
		return mod, nil
	}
	tmpl, err := Parse(resolved, src)
	if err != nil {
		return nil, err
	}
	mod := &Module{Macros: map[string]*Macro{}}
	env := NewEnv(map[string]interface{}{})
	for _, n := range tmpl.Body {
		if mn, ok := n.(*MacroNode); ok {
			mod.Macros[mn.Name] = &Macro{Name: mn.Name, Params: mn.Params, Body: mn.Body, Closure: env, Eval: e}
		}
	}
	e.moduleCache[resolved] = mod
	return mod, nil
}

// RenderString re-renders s as a standalone template through e, honoring
// the tpl() sandbox: a depth counter and a restricted globals set.
// Callers (pkg/engine) are expected to pass only the permitted
// subset of context as globals.
func (e *Evaluator) RenderString(file, s string, globals map[string]interface{}) (string, error) {
	if e.tplDepth >= e.MaxTplDepth {
		return "", fmt.Errorf("tpl: max recursion depth %d exceeded", e.MaxTplDepth)
	}
	tmpl, err := Parse(file, s)
	if err != nil {
		return "", err
	}
	e.tplDepth++
	defer func() { e.tplDepth-- }()
	return e.Render(tmpl, globals)
}

func suggest(name string, candidates []string, max int) []string {
	type scored struct {
		name string
		dist int
	}
	var scoredList []scored
	for _, c := range candidates {
		d := levenshtein(name, c)
		if d <= 3 {
			scoredList = append(scoredList, scored{c, d})
		}
	}
	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].dist < scoredList[j].dist })
	var out []string
	for i, s := range scoredList {
		if i >= max {
			break
		}
		out = append(out, s.name)
	}
	return out
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

// ToDisplayString stringifies a value for output or as a dict/map key.
func ToDisplayString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case Undefined:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Truthy implements the Helm-compatible falsy set:
// undefined, null, empty string, empty list/map, and boolean false are all
// falsy; everything else (including the number 0) is truthy.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case Undefined:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}

func requireNumber(file string, pos Pos, v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case Undefined:
		return 0, &UndefinedError{File: file, Pos: pos, Name: t.Name}
	default:
		return 0, &EvalError{File: file, Pos: pos, Msg: fmt.Sprintf("expected a number, got %T", v)}
	}
}

func (e *Evaluator) evalBinary(file string, v *BinaryExpr, env *Env) (interface{}, error) {
	if v.Op == "and" {
		l, err := e.eval(file, v.Left, env)
		if err != nil {
			return nil, err
		}
		if !Truthy(l) {
			return l, nil
		}
		return e.eval(file, v.Right, env)
	}
	if v.Op == "or" {
		l, err := e.eval(file, v.Left, env)
		if err != nil {
			return nil, err
		}
		if Truthy(l) {
			return l, nil
		}
		return e.eval(file, v.Right, env)
	}
	l, err := e.eval(file, v.Left, env)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(file, v.Right, env)
	if err != nil {
		return nil, err
	}
	switch v.Op {
	case "==":
		return deepEqual(l, r), nil
	case "!=":
		return !deepEqual(l, r), nil
	case "~":
		return ToDisplayString(l) + ToDisplayString(r), nil
	case "+":
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
		if la, ok := l.([]interface{}); ok {
			if ra, ok := r.([]interface{}); ok {
				out := make([]interface{}, 0, len(la)+len(ra))
				out = append(out, la...)
				out = append(out, ra...)
				return out, nil
			}
		}
		ln, err := requireNumber(file, v.Pos, l)
		if err != nil {
			return nil, err
		}
		rn, err := requireNumber(file, v.Pos, r)
		if err != nil {
			return nil, err
		}
		return ln + rn, nil
	case "-", "*", "/", "//", "%":
		ln, err := requireNumber(file, v.Pos, l)
		if err != nil {
			return nil, err
		}
		rn, err := requireNumber(file, v.Pos, r)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case "-":
			return ln - rn, nil
		case "*":
			return ln * rn, nil
		case "/":
			if rn == 0 {
				return nil, &EvalError{File: file, Pos: v.Pos, Msg: "division by zero"}
			}
			return ln / rn, nil
		case "//":
			if rn == 0 {
				return nil, &EvalError{File: file, Pos: v.Pos, Msg: "division by zero"}
			}
			return float64(int64(ln) / int64(rn)), nil
		case "%":
			if rn == 0 {
				return nil, &EvalError{File: file, Pos: v.Pos, Msg: "modulo by zero"}
			}
			return float64(int64(ln) % int64(rn)), nil
		}
	case "<", "<=", ">", ">=":
		return compareOrdered(l, r, v.Op)
	}
	return nil, &EvalError{File: file, Pos: v.Pos, Msg: "unsupported operator " + v.Op}
}

func compareOrdered(l, r interface{}, op string) (interface{}, error) {
	var cmp int
	switch lt := l.(type) {
	case float64:
		rt, ok := r.(float64)
		if !ok {
			return nil, fmt.Errorf("cannot compare number with %T", r)
		}
		switch {
		case lt < rt:
			cmp = -1
		case lt > rt:
			cmp = 1
		}
	case string:
		rt, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("cannot compare string with %T", r)
		}
		cmp = strings.Compare(lt, rt)
	default:
		return nil, fmt.Errorf("values are not ordered")
	}
	switch op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return nil, fmt.Errorf("bad operator")
}

func deepEqual(a, b interface{}) bool {
	switch at := a.(type) {
	case map[string]interface{}:
		bt, ok := b.(map[string]interface{})
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, v := range at {
			bv, ok := bt[k]
			if !ok || !deepEqual(v, bv) {
				return false
			}
		}
		return true
	case []interface{}:
		bt, ok := b.([]interface{})
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !deepEqual(at[i], bt[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func containsValue(coll, needle interface{}) bool {
	switch t := coll.(type) {
	case []interface{}:
		for _, v := range t {
			if deepEqual(v, needle) {
				return true
			}
		}
		return false
	case map[string]interface{}:
		_, ok := t[ToDisplayString(needle)]
		return ok
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(t, s)
	default:
		return false
	}
}
