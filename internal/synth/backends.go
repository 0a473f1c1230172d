package synth

import (
	"regexp"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/escape"
)

var publicTopLevelType = regexp.MustCompile(`\bpublic\s+((?:(?:final|abstract|static)\s+)*(?:class|interface|enum)\b)`)

func escapeLiteral(lang domain.Language, payload string) string {
	if payload == "" {
		payload = "null"
	}
	return escape.Literal(lang, payload)
}

// NewPython returns the Python 3 backend. Objects are passed as keyword arguments.
func NewPython() Backend {
	return &templateBackend{
		lang:       domain.LangPython,
		template:   "python.tmpl",
		identifier: plainIdentifier,
	}
}

// NewJavaScript returns the Node.js backend.
func NewJavaScript() Backend {
	return &templateBackend{
		lang:       domain.LangJavaScript,
		template:   "javascript.tmpl",
		identifier: dollarIdentifier,
	}
}

// NewCpp returns the C++14 backend. Parameter types are deduced from the
// function's signature.
func NewCpp() Backend {
	return &templateBackend{
		lang:       domain.LangCpp,
		template:   "cpp.tmpl",
		identifier: plainIdentifier,
	}
}

// NewJava returns the Java backend. The function is resolved on class
// Solution; the file's only public class is the generated Main.
func NewJava() Backend {
	return &templateBackend{
		lang:       domain.LangJava,
		template:   "java.tmpl",
		identifier: dollarIdentifier,
		prepare:    DemotePublicTypes,
	}
}

// DemotePublicTypes strips the public modifier from type declarations.
func DemotePublicTypes(code string) string {
	return publicTopLevelType.ReplaceAllString(code, "$1")
}
