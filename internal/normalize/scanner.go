package normalize

// scanState is the lexical state of the comma scanner.
type scanState int

const (
	stateCode scanState = iota
	stateString
	stateEscape
)

// scanner walks JSON-ish text tracking string literals and bracket depth.
// It never fails: unbalanced input simply leaves depth where it ends up.
type scanner struct {
	state scanState
	depth int
}

// step advances the scanner over one byte. It reports whether the byte was
// consumed in code position (outside any string literal).
func (s *scanner) step(c byte) bool {
	switch s.state {
	case stateString:
		switch c {
		case '\\':
			s.state = stateEscape
		case '"':
			s.state = stateCode
		}
		return false
	case stateEscape:
		s.state = stateString
		return false
	}

	switch c {
	case '"':
		s.state = stateString
		return false
	case '[', '{':
		s.depth++
	case ']', '}':
		if s.depth > 0 {
			s.depth--
		}
	}
	return true
}

// TopLevelCommas reports whether text contains a comma outside every bracket
// pair and outside string literals.
func TopLevelCommas(text string) bool {
	var s scanner
	for i := 0; i < len(text); i++ {
		c := text[i]
		if s.step(c) && c == ',' && s.depth == 0 {
			return true
		}
	}
	return false
}

// StripTrailingCommas removes commas that are followed, after optional
// whitespace, by a closing bracket or brace. String contents are untouched.
func StripTrailingCommas(text string) string {
	var (
		s   scanner
		out = make([]byte, 0, len(text))
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if s.step(c) && c == ',' && closesNext(text[i+1:]) {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

func closesNext(rest string) bool {
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ']', '}':
			return true
		default:
			return false
		}
	}
	return false
}
