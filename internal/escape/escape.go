// Package escape embeds arbitrary text as source-code string literals.
//
// Every style is total: any UTF-8 payload yields a literal that evaluates back
// to exactly that payload in the target language.
package escape

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/codeforge/judge-harness/internal/domain"
)

// Style is a family of string literal syntax.
type Style int

const (
	// StyleQuoted is an ordinary double-quoted literal with backslash escapes
	// and no \u sequences, chunked for long payloads.
	StyleQuoted Style = iota
	// StyleTripleQuoted is a """...""" literal.
	StyleTripleQuoted
	// StyleTemplate is a back-quoted template literal.
	StyleTemplate
	// StyleRaw is a delimited raw string R"d(...)d".
	StyleRaw
)

// JavaChunk bounds the characters per literal so a single constant stays well
// below the class-file limit.
const JavaChunk = 8192

const maxRawDelimiter = 16

// StyleFor returns the literal style used for a language's driver.
func StyleFor(lang domain.Language) Style {
	switch lang {
	case domain.LangPython:
		return StyleTripleQuoted
	case domain.LangJavaScript, domain.LangTypeScript:
		return StyleTemplate
	case domain.LangCpp:
		return StyleRaw
	}
	return StyleQuoted
}

// Literal renders payload as a complete literal for lang.
func Literal(lang domain.Language, payload string) string {
	return StyleFor(lang).Literal(payload)
}

// Literal renders payload in this style.
func (s Style) Literal(payload string) string {
	switch s {
	case StyleTripleQuoted:
		return tripleQuoted(payload)
	case StyleTemplate:
		return template(payload)
	case StyleRaw:
		return raw(payload)
	}
	return quoted(payload)
}

func tripleQuoted(payload string) string {
	var b strings.Builder
	b.Grow(len(payload) + 8)
	b.WriteString(`"""`)
	for _, r := range payload {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if isControl(r) {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteString(`"""`)
	return b.String()
}

func template(payload string) string {
	var b strings.Builder
	b.Grow(len(payload) + 4)
	b.WriteByte('`')
	for i, r := range payload {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '`':
			b.WriteString("\\`")
		case '$':
			if strings.HasPrefix(payload[i+1:], "{") {
				b.WriteString(`\$`)
				continue
			}
			b.WriteByte('$')
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if isControl(r) {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('`')
	return b.String()
}

// raw splits the payload into raw-string runs joined by adjacent-literal
// concatenation. Control characters other than newline and tab are emitted as
// short hex literals, since compilers may rewrite them inside raw strings.
func raw(payload string) string {
	delim := rawDelimiter(payload)

	var (
		parts []string
		run   strings.Builder
	)
	flush := func() {
		if run.Len() > 0 {
			parts = append(parts, `R"`+delim+`(`+run.String()+`)`+delim+`"`)
			run.Reset()
		}
	}
	for _, r := range payload {
		if isControl(r) && r != '\n' && r != '\t' {
			flush()
			parts = append(parts, fmt.Sprintf(`"\x%02x"`, r))
			continue
		}
		run.WriteRune(r)
	}
	flush()
	if len(parts) == 0 {
		return `R"` + delim + `()` + delim + `"`
	}
	return strings.Join(parts, " ")
}

// rawDelimiter picks the shortest delimiter whose closing sequence does not
// occur in payload.
func rawDelimiter(payload string) string {
	if !strings.Contains(payload, `)"`) {
		return ""
	}
	for i := 0; ; i++ {
		d := fmt.Sprintf("h%d", i)
		if len(d) > maxRawDelimiter {
			// Unreachable for any payload that fits in memory.
			panic("escape: raw delimiter space exhausted")
		}
		if !strings.Contains(payload, ")"+d+`"`) {
			return d
		}
	}
}

func quoted(payload string) string {
	if utf8.RuneCountInString(payload) <= JavaChunk {
		return quotedChunk(payload)
	}

	var b strings.Builder
	b.WriteString("new StringBuilder()")
	for len(payload) > 0 {
		n, count := 0, 0
		for n < len(payload) && count < JavaChunk {
			_, size := utf8.DecodeRuneInString(payload[n:])
			n += size
			count++
		}
		b.WriteString(".append(")
		b.WriteString(quotedChunk(payload[:n]))
		b.WriteString(")")
		payload = payload[n:]
	}
	b.WriteString(".toString()")
	return b.String()
}

// quotedChunk escapes controls with octal rather than \u, because \u000a and
// friends are translated before lexing and would terminate the literal.
// Printable non-ASCII text is safe as \u escapes.
func quotedChunk(payload string) string {
	var b strings.Builder
	b.Grow(len(payload) + 2)
	b.WriteByte('"')
	for _, r := range payload {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case isControl(r):
				fmt.Fprintf(&b, `\%03o`, r)
			case r < utf8.RuneSelf:
				b.WriteRune(r)
			case r > 0xFFFF:
				r -= 0x10000
				fmt.Fprintf(&b, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
			default:
				fmt.Fprintf(&b, `\u%04x`, r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
