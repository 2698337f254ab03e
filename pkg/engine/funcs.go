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

package engine

import (
	"fmt"
	"reflect"

	"github.com/Masterminds/semver/v3"
	"github.com/Masterminds/sprig/v3"

	"sherpack.sh/sherpack/pkg/engine/lang"
)

// builtinFuncs returns the engine's function table: every sprig function
//, available both as
// a plain call and as a pipe filter, plus the language's own special forms
// (default/required/fail/semver) that need strict-undefined awareness.
func builtinFuncs() (map[string]lang.Func, map[string]lang.FilterFunc) {
	funcs := map[string]lang.Func{}
	filters := map[string]lang.FilterFunc{}

	for name, fn := range sprig.TxtFuncMap() {
		f := fn
		funcs[name] = reflectiveFunc(f)
		filters[name] = reflectiveFilter(f)
	}

	// default/required observe the Undefined sentinel directly, so they
	// cannot be plain reflective wrappers over a (string, bool, ...) value.
	filters["default"] = filterDefault
	filters["required"] = filterRequired
	funcs["fail"] = funcFail
	filters["semverCompare"] = filterSemverCompare
	filters["semverSatisfies"] = filterSemverSatisfies

	return funcs, filters
}

// reflectiveFunc adapts an arbitrary Go function (sprig's funcmap shape)
// into a lang.Func, converting interface{} args via reflection the same
// way text/template's FuncMap dispatch does.
func reflectiveFunc(fn interface{}) lang.Func {
	return func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return callReflective(fn, args)
	}
}

// reflectiveFilter adapts fn into a pipe filter: the piped value becomes
// the function's first argument.
func reflectiveFilter(fn interface{}) lang.FilterFunc {
	return func(value interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		all := append([]interface{}{value}, args...)
		return callReflective(fn, all)
	}
}

func callReflective(fn interface{}, args []interface{}) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	in := make([]reflect.Value, 0, len(args))
	variadic := ft.IsVariadic()
	for i, a := range args {
		var want reflect.Type
		if variadic && i >= ft.NumIn()-1 {
			want = ft.In(ft.NumIn() - 1).Elem()
		} else if i < ft.NumIn() {
			want = ft.In(i)
		} else {
			want = reflect.TypeOf(a)
		}
		in = append(in, convertArg(a, want))
	}
	results := fv.Call(in)
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0].Interface(), nil
	default:
		last := results[len(results)-1]
		if e, ok := last.Interface().(error); ok && e != nil {
			return nil, e
		}
		return results[0].Interface(), nil
	}
}

func convertArg(a interface{}, want reflect.Type) reflect.Value {
	if lang.IsUndefined(a) {
		a = nil
	}
	av := reflect.ValueOf(a)
	if !av.IsValid() {
		return reflect.Zero(want)
	}
	if av.Type().AssignableTo(want) {
		return av
	}
	if av.Type().ConvertibleTo(want) {
		return av.Convert(want)
	}
	if want.Kind() == reflect.Interface {
		return av
	}
	// float64 (our only numeric representation) -> int-family sprig args.
	if av.Kind() == reflect.Float64 && want.Kind() >= reflect.Int && want.Kind() <= reflect.Uint64 {
		return av.Convert(want)
	}
	return av
}

func falsy(v interface{}) bool { return !lang.Truthy(v) }

func filterDefault(value interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("default requires a fallback argument")
	}
	if falsy(value) {
		return args[0], nil
	}
	return value, nil
}

func filterRequired(value interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if lang.IsUndefined(value) || value == nil {
		msg := "value is required"
		if len(args) > 0 {
			msg = lang.ToDisplayString(args[0])
		}
		return nil, fmt.Errorf(msg)
	}
	if s, ok := value.(string); ok && s == "" {
		msg := "value is required"
		if len(args) > 0 {
			msg = lang.ToDisplayString(args[0])
		}
		return nil, fmt.Errorf(msg)
	}
	return value, nil
}

func funcFail(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	msg := "template call to fail()"
	if len(args) > 0 {
		msg = lang.ToDisplayString(args[0])
	}
	return nil, fmt.Errorf(msg)
}

func filterSemverCompare(value interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("semverCompare requires a constraint argument")
	}
	v, err := semver.NewVersion(lang.ToDisplayString(value))
	if err != nil {
		return nil, err
	}
	c, err := semver.NewConstraint(lang.ToDisplayString(args[0]))
	if err != nil {
		return nil, err
	}
	return c.Check(v), nil
}

func filterSemverSatisfies(value interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	return filterSemverCompare(value, args, kwargs)
}
