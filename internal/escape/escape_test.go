package escape

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeforge/judge-harness/internal/domain"
)

var payloads = []string{
	"",
	`[1,2,3]`,
	`{"s":"\"\"\" triple"}`,
	"\"\"\"",
	`ends with quote"`,
	`trailing backslash\`,
	"back`tick ${interp} $plain {brace}",
	`raw )" close`,
	`nested )h0" and )" both`,
	"line\nbreak\r\nand\ttab",
	"nul\x00bell\x07del\x7f",
	"unicode é 漢字 🎉",
	`\u000a literal`,
	`["a\\b", "c\"d"]`,
}

func TestStyleFor(t *testing.T) {
	assert.Equal(t, StyleTripleQuoted, StyleFor(domain.LangPython))
	assert.Equal(t, StyleTemplate, StyleFor(domain.LangJavaScript))
	assert.Equal(t, StyleRaw, StyleFor(domain.LangCpp))
	assert.Equal(t, StyleQuoted, StyleFor(domain.LangJava))
	assert.Equal(t, StyleQuoted, StyleFor(domain.LangRust))
}

func TestTripleQuoted_RoundTrip(t *testing.T) {
	for _, p := range payloads {
		lit := Literal(domain.LangPython, p)
		require.True(t, strings.HasPrefix(lit, `"""`) && strings.HasSuffix(lit, `"""`), lit)

		body := lit[3 : len(lit)-3]
		assert.NotContains(t, body, "\n")
		assert.NotContains(t, unescapedQuotes(body), `"`, "unescaped quote in %q", body)
		assert.Equal(t, p, unescapeC(t, body), lit)
	}
}

func TestTemplate_RoundTrip(t *testing.T) {
	for _, p := range payloads {
		lit := Literal(domain.LangJavaScript, p)
		require.True(t, strings.HasPrefix(lit, "`") && strings.HasSuffix(lit, "`"), lit)

		body := lit[1 : len(lit)-1]
		assert.NotContains(t, unescapedQuotes(body), "`")
		assert.NotContains(t, unescapedQuotes(body), "${")
		assert.NotContains(t, body, "\n")
		assert.Equal(t, p, unescapeC(t, body), lit)
	}
}

func TestRaw_RoundTrip(t *testing.T) {
	for _, p := range payloads {
		lit := Literal(domain.LangCpp, p)
		assert.Equal(t, p, evalCppLiterals(t, lit), lit)
	}
}

func TestRaw_DelimiterAvoidsPayload(t *testing.T) {
	assert.Equal(t, `R"(abc)"`, Literal(domain.LangCpp, "abc"))
	assert.Equal(t, `R"h0(x)")h0"`, Literal(domain.LangCpp, `x)"`))
	assert.Equal(t, `R"h1(a)" )h0")h1"`, Literal(domain.LangCpp, `a)" )h0"`))
	assert.Equal(t, `R"()"`, Literal(domain.LangCpp, ""))
}

func TestQuoted_RoundTrip(t *testing.T) {
	for _, p := range payloads {
		lit := Literal(domain.LangJava, p)
		assert.False(t, hasUnicodeEscape(lit), lit)
		assert.NotContains(t, lit, "\n")
		assert.Equal(t, p, evalJavaLiterals(t, lit), lit)
	}
}

func TestHasUnicodeEscape(t *testing.T) {
	assert.True(t, hasUnicodeEscape(`"\u000a"`))
	assert.True(t, hasUnicodeEscape(`"\\\u000a"`))
	assert.False(t, hasUnicodeEscape(`"\\u000a"`))
	assert.False(t, hasUnicodeEscape(`"u000a"`))
}

func TestQuoted_EscapedBackslashBeforeU(t *testing.T) {
	lit := Literal(domain.LangJava, `\u000a literal`)
	assert.Equal(t, `"\\u000a literal"`, lit)
	assert.False(t, hasUnicodeEscape(lit))
	assert.Equal(t, `\u000a literal`, evalJavaLiterals(t, lit))
}

func TestQuoted_ChunksLongPayloads(t *testing.T) {
	long := strings.Repeat("é\"", JavaChunk+5)
	lit := Literal(domain.LangJava, long)

	require.True(t, strings.HasPrefix(lit, "new StringBuilder().append("))
	require.True(t, strings.HasSuffix(lit, ".toString()"))
	assert.Equal(t, 3, strings.Count(lit, ".append("))
	assert.Equal(t, long, evalJavaLiterals(t, lit))

	short := strings.Repeat("a", JavaChunk)
	assert.Equal(t, `"`+short+`"`, Literal(domain.LangJava, short))
}

// unescapedQuotes drops escaped characters so only literal text remains.
func unescapedQuotes(body string) string {
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' {
			i++
			continue
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

// unescapeC evaluates the backslash escapes shared by the Python and
// JavaScript literal bodies.
func unescapeC(t *testing.T, body string) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		require.Less(t, i, len(body), "dangling backslash in %q", body)
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'x':
			v, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			require.NoError(t, err)
			b.WriteByte(byte(v))
			i += 2
		case '\\', '"', '`', '$':
			b.WriteByte(body[i])
		default:
			t.Fatalf("unexpected escape \\%c in %q", body[i], body)
		}
	}
	return b.String()
}

var cppToken = regexp.MustCompile(`^(?:R"([^(]*)\(|"\\x([0-9a-f]{2})")`)

func evalCppLiterals(t *testing.T, src string) string {
	t.Helper()
	var b strings.Builder
	for len(src) > 0 {
		src = strings.TrimLeft(src, " ")
		m := cppToken.FindStringSubmatch(src)
		require.NotNil(t, m, "unexpected token at %q", src)
		if m[2] != "" {
			v, err := strconv.ParseUint(m[2], 16, 8)
			require.NoError(t, err)
			b.WriteByte(byte(v))
			src = src[len(m[0]):]
			continue
		}
		src = src[len(m[0]):]
		end := strings.Index(src, ")"+m[1]+`"`)
		require.GreaterOrEqual(t, end, 0)
		b.WriteString(src[:end])
		src = src[end+len(m[1])+2:]
	}
	return b.String()
}

func evalJavaLiterals(t *testing.T, src string) string {
	t.Helper()
	src = strings.TrimPrefix(src, "new StringBuilder()")
	src = strings.TrimSuffix(src, ".toString()")

	var units []uint16
	for len(src) > 0 {
		src = strings.TrimPrefix(src, ".append(")
		require.Equal(t, byte('"'), src[0], src)
		i := 1
		for ; src[i] != '"'; i++ {
			c := src[i]
			if c != '\\' {
				units = append(units, uint16(c))
				continue
			}
			i++
			switch src[i] {
			case 'n':
				units = append(units, '\n')
			case 'r':
				units = append(units, '\r')
			case 't':
				units = append(units, '\t')
			case 'b':
				units = append(units, '\b')
			case 'f':
				units = append(units, '\f')
			case '\\', '"':
				units = append(units, uint16(src[i]))
			case 'u':
				v, err := strconv.ParseUint(src[i+1:i+5], 16, 16)
				require.NoError(t, err)
				units = append(units, uint16(v))
				i += 4
			default:
				v, err := strconv.ParseUint(src[i:i+3], 8, 8)
				require.NoError(t, err)
				units = append(units, uint16(v))
				i += 2
			}
		}
		src = strings.TrimPrefix(src[i+1:], ")")
	}
	return string(utf16.Decode(units))
}

// hasUnicodeEscape reports whether javac would translate a \u sequence in src.
// A backslash starts a unicode escape only when it is preceded by an even
// number of contiguous backslashes.
func hasUnicodeEscape(src string) bool {
	for i := 1; i < len(src); i++ {
		if src[i] != 'u' || src[i-1] != '\\' {
			continue
		}
		run := 0
		for j := i - 1; j >= 0 && src[j] == '\\'; j-- {
			run++
		}
		if run%2 == 1 {
			return true
		}
	}
	return false
}
