package judge

import "github.com/codeforge/judge-harness/internal/domain"

// Judge0 language identifiers.
var languageIDs = map[domain.Language]int{
	domain.LangPython:     71, // Python 3.8.1
	domain.LangCpp:        54, // GCC 9.2.0
	domain.LangJavaScript: 63, // Node.js 12.14.0
	domain.LangJava:       62, // OpenJDK 13.0.1
	domain.LangC:          50, // GCC 9.2.0
	domain.LangCSharp:     51, // Mono 6.6.0.161
	domain.LangGo:         60, // Go 1.13.5
	domain.LangRust:       73, // Rust 1.40.0
	domain.LangRuby:       72, // Ruby 2.7.0
	domain.LangPHP:        68, // PHP 7.4.1
	domain.LangTypeScript: 74, // TypeScript 3.7.4
	domain.LangKotlin:     78, // Kotlin 1.3.70
	domain.LangSwift:      83, // Swift 5.2.3
}

// LanguageID returns the judge's identifier for lang.
func LanguageID(lang domain.Language) (int, bool) {
	id, ok := languageIDs[lang]
	return id, ok
}

// Languages describes every language the judge accepts.
func Languages() []domain.LanguageInfo {
	langs := domain.Languages()
	out := make([]domain.LanguageInfo, 0, len(langs))
	for _, lang := range langs {
		id, ok := languageIDs[lang]
		if !ok {
			continue
		}
		out = append(out, domain.LanguageInfo{
			Name:          lang,
			JudgeID:       id,
			Synthesizable: lang.Synthesizable(),
		})
	}
	return out
}
