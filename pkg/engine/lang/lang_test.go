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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, src string, globals map[string]interface{}) (string, error) {
	t.Helper()
	tmpl, err := Parse("test.yaml", src)
	require.NoError(t, err)
	ev := NewEvaluator()
	ev.Strict = true
	ev.Filters["upper"] = func(v interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return strings.ToUpper(ToDisplayString(v)), nil
	}
	ev.Filters["default"] = func(v interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		if !Truthy(v) {
			return args[0], nil
		}
		return v, nil
	}
	return ev.Render(tmpl, globals)
}

func TestOutputAndAttrAccess(t *testing.T) {
	out, err := render(t, "name: {{ release.name }}-{{ values.suffix | default(\"x\") }}", map[string]interface{}{
		"release": map[string]interface{}{"name": "demo"},
		"values":  map[string]interface{}{},
	})
	require.NoError(t, err)
	assert.Equal(t, "name: demo-x", out)
}

func TestIfElif(t *testing.T) {
	src := "{% if values.n > 10 %}big{% elif values.n > 0 %}small{% else %}none{% endif %}"
	out, err := render(t, src, map[string]interface{}{"values": map[string]interface{}{"n": float64(5)}})
	require.NoError(t, err)
	assert.Equal(t, "small", out)
}

func TestForOverListWithLoopVar(t *testing.T) {
	src := "{% for x in values.items %}{{ loop.index }}:{{ x }} {% endfor %}"
	out, err := render(t, src, map[string]interface{}{
		"values": map[string]interface{}{"items": []interface{}{"a", "b", "c"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1:a 2:b 3:c ", out)
}

func TestForOverMapSortedKeys(t *testing.T) {
	src := "{% for k, v in values.m %}{{ k }}={{ v }};{% endfor %}"
	out, err := render(t, src, map[string]interface{}{
		"values": map[string]interface{}{"m": map[string]interface{}{"z": "1", "a": "2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "a=2;z=1;", out)
}

func TestForElseOnEmpty(t *testing.T) {
	src := "{% for x in values.empty %}{{ x }}{% else %}nothing{% endfor %}"
	out, err := render(t, src, map[string]interface{}{
		"values": map[string]interface{}{"empty": []interface{}{}},
	})
	require.NoError(t, err)
	assert.Equal(t, "nothing", out)
}

func TestWithScopedName(t *testing.T) {
	src := "{% with n = values.x %}{{ n }}{% endwith %}"
	out, err := render(t, src, map[string]interface{}{"values": map[string]interface{}{"x": "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestMacroDefineAndCall(t *testing.T) {
	src := "{% macro greet(name) %}hello {{ name }}{% endmacro %}{{ greet(\"world\") }}"
	out, err := render(t, src, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestMacroDefaultParam(t *testing.T) {
	src := "{% macro greet(name=\"there\") %}hi {{ name }}{% endmacro %}{{ greet() }}"
	out, err := render(t, src, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestFilterPipeAndUpper(t *testing.T) {
	out, err := render(t, "{{ values.name | upper }}", map[string]interface{}{
		"values": map[string]interface{}{"name": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
}

func TestInOperator(t *testing.T) {
	out, err := render(t, "{% if \"b\" in values.items %}yes{% else %}no{% endif %}", map[string]interface{}{
		"values": map[string]interface{}{"items": []interface{}{"a", "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "yes", out)

	out, err = render(t, "{% if \"z\" not in values.items %}yes{% else %}no{% endif %}", map[string]interface{}{
		"values": map[string]interface{}{"items": []interface{}{"a", "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
}

func TestConditionalExpression(t *testing.T) {
	out, err := render(t, "{{ \"y\" if values.flag else \"n\" }}", map[string]interface{}{
		"values": map[string]interface{}{"flag": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "y", out)
}

func TestListLiteral(t *testing.T) {
	out, err := render(t, "{% for x in [1, 2, 3] %}{{ x }}{% endfor %}", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "123", out)
}

func TestArithmeticAndComparison(t *testing.T) {
	out, err := render(t, "{{ 1 + 2 * 3 }}", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "7", out)

	out, err = render(t, "{% if 5 >= 5 %}ok{% endif %}", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestStringConcatOperator(t *testing.T) {
	out, err := render(t, "{{ \"a\" ~ \"b\" ~ 1 }}", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "ab1", out)
}

func TestUndefinedStrictErrorCarriesLocationAndSuggestion(t *testing.T) {
	_, err := render(t, "{{ valuse.name }}", map[string]interface{}{
		"values": map[string]interface{}{},
	})
	require.Error(t, err)
	ue, ok := err.(*UndefinedError)
	require.True(t, ok, "expected *UndefinedError, got %T", err)
	assert.Equal(t, "test.yaml", ue.File)
	assert.Contains(t, ue.Suggestions, "values")
}

func TestDefaultFilterHelmCompatibleFalsySet(t *testing.T) {
	cases := []interface{}{nil, "", []interface{}{}, map[string]interface{}{}, false}
	for _, c := range cases {
		out, err := render(t, "{{ values.x | default(\"fallback\") }}", map[string]interface{}{
			"values": map[string]interface{}{"x": c},
		})
		require.NoError(t, err)
		assert.Equal(t, "fallback", out)
	}

	// The number 0 is truthy and must NOT trigger default.
	out, err := render(t, "{{ values.x | default(\"fallback\") }}", map[string]interface{}{
		"values": map[string]interface{}{"x": float64(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, "0", out)
}

func TestImportAndFromImportNamespacing(t *testing.T) {
	helper := `{% macro label(n) %}app={{ n }}{% endmacro %}`
	ev := NewEvaluator()
	ev.Strict = true
	ev.Import = func(fromFile, p string) (string, string, error) {
		return helper, "_helpers", nil
	}

	tmpl, err := Parse("main.yaml", `{% import "_helpers" as h %}{{ h.label("x") }}`)
	require.NoError(t, err)
	out, err := ev.Render(tmpl, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "app=x", out)

	tmpl2, err := Parse("main2.yaml", `{% from "_helpers" import label as lbl %}{{ lbl("y") }}`)
	require.NoError(t, err)
	out2, err := ev.Render(tmpl2, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "app=y", out2)
}

func TestTplRecursionDepthGuard(t *testing.T) {
	ev := NewEvaluator()
	ev.MaxTplDepth = 1
	_, err := ev.RenderString("a", "{{ 1 }}", map[string]interface{}{})
	require.NoError(t, err)

	ev.tplDepth = 1
	_, err = ev.RenderString("b", "{{ 1 }}", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max recursion depth")
}
