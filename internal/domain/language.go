package domain

import (
	"sort"
	"strings"
)

// Language represents a supported programming language.
type Language string

const (
	LangPython     Language = "python"
	LangCpp        Language = "cpp"
	LangJavaScript Language = "javascript"
	LangJava       Language = "java"
	LangC          Language = "c"
	LangCSharp     Language = "csharp"
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangTypeScript Language = "typescript"
	LangKotlin     Language = "kotlin"
	LangSwift      Language = "swift"
)

var languageAliases = map[string]Language{
	"python":     LangPython,
	"python3":    LangPython,
	"py":         LangPython,
	"cpp":        LangCpp,
	"c++":        LangCpp,
	"javascript": LangJavaScript,
	"js":         LangJavaScript,
	"node":       LangJavaScript,
	"java":       LangJava,
	"c":          LangC,
	"csharp":     LangCSharp,
	"c#":         LangCSharp,
	"cs":         LangCSharp,
	"go":         LangGo,
	"golang":     LangGo,
	"rust":       LangRust,
	"ruby":       LangRuby,
	"rb":         LangRuby,
	"php":        LangPHP,
	"typescript": LangTypeScript,
	"ts":         LangTypeScript,
	"kotlin":     LangKotlin,
	"kt":         LangKotlin,
	"swift":      LangSwift,
}

// ParseLanguage resolves a user-supplied language name or alias, ignoring case
// and surrounding whitespace.
func ParseLanguage(name string) (Language, error) {
	lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", &UnsupportedLanguageError{Language: name}
	}
	return lang, nil
}

// IsValid checks if the language is part of the closed enumeration.
func (l Language) IsValid() bool {
	lang, ok := languageAliases[string(l)]
	return ok && lang == l
}

// Synthesizable reports whether a harness driver can be generated for the language.
func (l Language) Synthesizable() bool {
	switch l {
	case LangPython, LangCpp, LangJavaScript, LangJava:
		return true
	}
	return false
}

// Languages returns every canonical language, sorted by name.
func Languages() []Language {
	seen := make(map[Language]struct{}, len(languageAliases))
	out := make([]Language, 0, len(languageAliases))
	for _, lang := range languageAliases {
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LanguageInfo describes a supported language.
type LanguageInfo struct {
	Name          Language `json:"name"`
	JudgeID       int      `json:"judge_id"`
	Synthesizable bool     `json:"synthesizable"`
}
