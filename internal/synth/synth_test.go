package synth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/normalize"
)

func mustNormalize(t *testing.T, raw string) normalize.Arguments {
	t.Helper()
	args, err := normalize.Normalize(raw)
	require.NoError(t, err)
	return args
}

func TestNew_RejectsBadRegistrations(t *testing.T) {
	_, err := New()
	assert.Error(t, err)

	_, err = New(NewPython(), NewPython())
	assert.ErrorContains(t, err, "duplicate")

	_, err = New(nil)
	assert.Error(t, err)
}

func TestSynthesize_Validation(t *testing.T) {
	s := Default()
	args := mustNormalize(t, "1")

	_, err := s.Synthesize(domain.LangRust, "fn main() {}", "solve", args)
	var unsupported *domain.UnsupportedLanguageError
	require.True(t, errors.As(err, &unsupported))
	assert.True(t, errors.Is(err, domain.ErrUnsupportedLanguage))

	_, err = s.Synthesize(domain.LangPython, "   \n", "solve", args)
	assert.ErrorIs(t, err, domain.ErrEmptySourceCode)

	for _, name := range []string{"", "1abc", "a-b", "f()", "x; import os"} {
		_, err = s.Synthesize(domain.LangPython, "def f(): pass", name, args)
		assert.ErrorIs(t, err, domain.ErrInvalidFunctionName, name)
	}

	_, err = s.Synthesize(domain.LangPython, "def f(): pass", "$f", args)
	assert.ErrorIs(t, err, domain.ErrInvalidFunctionName)

	_, err = s.Synthesize(domain.LangJavaScript, "const $f = () => 1;", "$f", args)
	assert.NoError(t, err)
}

func TestSynthesize_ArgumentCount(t *testing.T) {
	s := Default()

	_, err := s.Synthesize(domain.LangPython, "def f(*a): pass", "f", mustNormalize(t, "1,2,3,4,5,6,7,8,9"))
	var count *domain.ArgumentCountError
	require.True(t, errors.As(err, &count))
	assert.Equal(t, 9, count.Count)
	assert.Equal(t, MaxArity, count.Max)

	_, err = s.Synthesize(domain.LangPython, "def f(**k): pass", "f",
		mustNormalize(t, `{"a":1,"b":2,"c":3,"d":4,"e":5,"f":6,"g":7,"h":8,"i":9}`))
	require.True(t, errors.As(err, &count))

	_, err = s.Synthesize(domain.LangPython, "def f(a): pass", "f", mustNormalize(t, "[1,2,3,4,5,6,7,8,9]"))
	require.True(t, errors.As(err, &count))
	assert.Equal(t, 9, count.Count)

	// Wrapping the list makes it a single argument.
	p, err := s.Synthesize(domain.LangPython, "def f(a): pass", "f", mustNormalize(t, "[[1,2,3,4,5,6,7,8,9]]"))
	require.NoError(t, err)
	assert.Equal(t, DispatchAuto, p.Dispatch)
	assert.Equal(t, 1, p.Arity)

	p, err = s.Synthesize(domain.LangPython, "def f(*a): pass", "f", mustNormalize(t, "[1,2,3,4,5,6,7,8]"))
	require.NoError(t, err)
	assert.Equal(t, MaxArity, p.Arity)
}

func TestPlanDispatch(t *testing.T) {
	tests := []struct {
		raw      string
		dispatch Dispatch
		arity    int
	}{
		{"", DispatchNone, 0},
		{"null", DispatchNone, 0},
		{"5", DispatchSingle, 1},
		{`"x"`, DispatchSingle, 1},
		{`[5, "x"]`, DispatchAuto, 2},
		{"[2,7,11,15], 9", DispatchSpread, 2},
		{"[5]", DispatchAuto, 1},
		{`{"n": 5}`, DispatchKeyword, 1},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, arity, err := planDispatch(mustNormalize(t, tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.dispatch, d)
			assert.Equal(t, tt.arity, arity)
		})
	}
}

func TestSynthesize_Python(t *testing.T) {
	code := "def two_sum(nums, target):\n    return [0, 1]\n"
	p, err := Default().Synthesize(domain.LangPython, code, "two_sum", mustNormalize(t, `[2,7,11,15], 9`))
	require.NoError(t, err)

	assert.Equal(t, domain.LangPython, p.Language)
	assert.Equal(t, normalize.ShapeArray, p.Shape)
	assert.True(t, strings.HasPrefix(p.Source, "import inspect"))
	assert.Contains(t, p.Source, code)
	assert.Contains(t, p.Source, `_harness_json.loads("""[[2,7,11,15],9]""")`)
	assert.Contains(t, p.Source, `globals().get("two_sum")`)
	assert.Contains(t, p.Source, `_harness_plan(fn, "spread", data)`)
	assert.Contains(t, p.Source, `separators=(",", ":")`)
	assert.NotContains(t, p.Source, "{%")
}

func TestSynthesize_PythonKeywordArguments(t *testing.T) {
	p, err := Default().Synthesize(domain.LangPython, "def f(n):\n    return n\n", "f", mustNormalize(t, `{"n": 5}`))
	require.NoError(t, err)
	assert.Equal(t, DispatchKeyword, p.Dispatch)
	assert.Contains(t, p.Source, `_harness_plan(fn, "keyword", data)`)
	assert.Contains(t, p.Source, `return (), dict(data)`)
}

func TestSynthesize_PythonEscapesTripleQuotes(t *testing.T) {
	p, err := Default().Synthesize(domain.LangPython, "def f(s): return s", "f", mustNormalize(t, `"\"\"\""`))
	require.NoError(t, err)
	assert.Contains(t, p.Source, `_harness_json.loads("""\"\\\"\\\"\\\"\"""")`)
}

func TestSynthesize_JavaScript(t *testing.T) {
	code := "function add(a, b) { return a + b; }"
	p, err := Default().Synthesize(domain.LangJavaScript, code, "add", mustNormalize(t, "[1, 2]"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p.Source, code))
	assert.Contains(t, p.Source, "JSON.parse(`[1,2]`)")
	assert.Contains(t, p.Source, `typeof add === "function" ? add : undefined`)
	assert.Contains(t, p.Source, `const mode = "auto";`)
	assert.Contains(t, p.Source, `Object.keys(data).sort()`)
}

func TestSynthesize_JavaScriptTemplateInjection(t *testing.T) {
	p, err := Default().Synthesize(domain.LangJavaScript, "const f = (s) => s;", "f", mustNormalize(t, "\"`${process.exit(9)}`\""))
	require.NoError(t, err)
	assert.Contains(t, p.Source, "JSON.parse(`\"\\`\\${process.exit(9)}\\`\"`)")
}

func TestSynthesize_Cpp(t *testing.T) {
	code := "#include <vector>\nusing namespace std;\nint maxOf(vector<int> v) { return *max_element(v.begin(), v.end()); }\n"
	p, err := Default().Synthesize(domain.LangCpp, code, "maxOf", mustNormalize(t, "[3, 9, 4]"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p.Source, "#include <bits/stdc++.h>"))
	assert.Contains(t, p.Source, code)
	assert.Contains(t, p.Source, `static const char kHarnessInput[] = R"([3,9,4])";`)
	assert.Contains(t, p.Source, `harness::run(&maxOf, "maxOf"`)
	assert.Contains(t, p.Source, "harness::Mode::Auto")
	assert.Less(t, strings.Index(p.Source, code), strings.Index(p.Source, "namespace harness"))
}

func TestSynthesize_CppRawDelimiter(t *testing.T) {
	p, err := Default().Synthesize(domain.LangCpp, "string f(string s) { return s; }", "f", mustNormalize(t, `["a)", 1]`))
	require.NoError(t, err)
	assert.Contains(t, p.Source, `R"h0(["a)",1])h0"`)
}

func TestSynthesize_Java(t *testing.T) {
	code := "public class Solution {\n    public int twice(int n) { return n * 2; }\n}\n"
	p, err := Default().Synthesize(domain.LangJava, code, "twice", mustNormalize(t, "21"))
	require.NoError(t, err)

	assert.NotContains(t, p.Source, "public class Solution")
	assert.Contains(t, p.Source, "class Solution {")
	assert.Contains(t, p.Source, "public class Main {")
	assert.Equal(t, 1, strings.Count(p.Source, "public class "))
	assert.Contains(t, p.Source, `String literal = "21";`)
	assert.Contains(t, p.Source, `run(literal, "twice", "single")`)
}

func TestDemotePublicTypes(t *testing.T) {
	assert.Equal(t, "class A {}", DemotePublicTypes("public class A {}"))
	assert.Equal(t, "final class A {}", DemotePublicTypes("public final class A {}"))
	assert.Equal(t, "enum Color { RED }", DemotePublicTypes("public enum Color { RED }"))
	assert.Equal(t, "public int x;", DemotePublicTypes("public int x;"))
	assert.Equal(t, "class A { public static void m() {} }", DemotePublicTypes("class A { public static void m() {} }"))
}

func TestClassifyStderr(t *testing.T) {
	class, msg := ClassifyStderr("warning: something\n[harness:call] f() missing 1 required positional argument: 'b'\n")
	assert.Equal(t, domain.FailureCall, class)
	assert.Equal(t, "f() missing 1 required positional argument: 'b'", msg)

	class, msg = ClassifyStderr("[harness:parse] Expecting value: line 1 column 1 (char 0)")
	assert.Equal(t, domain.FailureParse, class)
	assert.Equal(t, "Expecting value: line 1 column 1 (char 0)", msg)

	class, _ = ClassifyStderr("[harness:runtime] ZeroDivisionError: division by zero")
	assert.Equal(t, domain.FailureRuntime, class)

	class, msg = ClassifyStderr("Segmentation fault (core dumped)")
	assert.Equal(t, domain.FailureNone, class)
	assert.Empty(t, msg)
}

func TestEverySynthesizableLanguageHasBackend(t *testing.T) {
	s := Default()
	for _, lang := range domain.Languages() {
		assert.Equal(t, lang.Synthesizable(), s.Supports(lang), lang)
	}
}

func TestSynthesize_TypedDriversFallBackToWholeArray(t *testing.T) {
	p, err := Default().Synthesize(domain.LangCpp, "int f(std::vector<int> v) { return 0; }", "f", mustNormalize(t, "[5]"))
	require.NoError(t, err)
	assert.Equal(t, DispatchAuto, p.Dispatch)
	assert.Contains(t, p.Source, "std::vector<Json> whole{data};")

	p, err = Default().Synthesize(domain.LangJava, "class Solution { int f(int[] v) { return 0; } }", "f", mustNormalize(t, "[5]"))
	require.NoError(t, err)
	assert.Contains(t, p.Source, "converted = new Object[] {convert(data, types[0])};")
}
