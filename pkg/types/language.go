package types

import (
	"path"
	"strings"
)

// Language is a short tag identifying a language family
type Language string

const (
	LanguageRust       Language = "rust"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
	LanguageKotlin     Language = "kotlin"
	LanguageCSharp     Language = "csharp"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"

	// LanguageText is the fallback for anything unrecognized
	LanguageText Language = "text"
)

var extensionLanguages = map[string]Language{
	"rs":   LanguageRust,
	"py":   LanguagePython,
	"pyi":  LanguagePython,
	"js":   LanguageJavaScript,
	"jsx":  LanguageJavaScript,
	"mjs":  LanguageJavaScript,
	"cjs":  LanguageJavaScript,
	"ts":   LanguageTypeScript,
	"tsx":  LanguageTypeScript,
	"go":   LanguageGo,
	"java": LanguageJava,
	"kt":   LanguageKotlin,
	"kts":  LanguageKotlin,
	"cs":   LanguageCSharp,
	"c":    LanguageC,
	"h":    LanguageC,
	"cc":   LanguageCPP,
	"cpp":  LanguageCPP,
	"cxx":  LanguageCPP,
	"hpp":  LanguageCPP,
	"hh":   LanguageCPP,
}

// DetectLanguage maps a file path to a language tag by extension
func DetectLanguage(p string) Language {
	ext := strings.TrimPrefix(path.Ext(strings.ReplaceAll(p, "\\", "/")), ".")
	if lang, ok := extensionLanguages[strings.ToLower(ext)]; ok {
		return lang
	}
	return LanguageText
}

// SourceExtensions returns the extensions DetectLanguage recognizes, without dots
func SourceExtensions() []string {
	exts := make([]string, 0, len(extensionLanguages))
	for ext := range extensionLanguages {
		exts = append(exts, ext)
	}
	return exts
}

// ParseLanguage normalizes a user-supplied tag, falling back to LanguageText
func ParseLanguage(s string) Language {
	lang := Language(strings.ToLower(strings.TrimSpace(s)))
	if lang.Known() {
		return lang
	}
	return LanguageText
}

// Known reports whether the tag is one of the supported language families
func (l Language) Known() bool {
	switch l {
	case LanguageRust, LanguagePython, LanguageJavaScript, LanguageTypeScript, LanguageGo,
		LanguageJava, LanguageKotlin, LanguageCSharp, LanguageC, LanguageCPP:
		return true
	default:
		return false
	}
}

func (l Language) String() string {
	if l == "" {
		return string(LanguageText)
	}
	return string(l)
}
