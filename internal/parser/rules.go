package parser

import (
	"strings"

	"github.com/dshills/codememory-mcp/pkg/types"
)

// match is a declaration recognized on a single line
type match struct {
	name       string
	kind       types.SymbolKind
	confidence types.Confidence
}

// keywordRule maps a declaration keyword to the kind it introduces
type keywordRule struct {
	keyword string
	kind    types.SymbolKind
}

// strategy is the per-language extraction behavior. Strategies are pure and
// share no state.
type strategy struct {
	commentMarker string
	isImport      func(line string) bool
	symbol        func(line string) (match, bool)
}

var strategies = map[types.Language]strategy{
	types.LanguageRust:       {commentMarker: "//", isImport: hasPrefix("use "), symbol: rustSymbol},
	types.LanguagePython:     {commentMarker: "#", isImport: hasPrefix("import ", "from "), symbol: pythonSymbol},
	types.LanguageJavaScript: {commentMarker: "//", isImport: jsImport, symbol: jsSymbol},
	types.LanguageTypeScript: {commentMarker: "//", isImport: jsImport, symbol: jsSymbol},
	types.LanguageGo:         {commentMarker: "//", isImport: hasPrefix("import "), symbol: goSymbol},
	types.LanguageJava:       {commentMarker: "//", isImport: hasPrefix("import ", "using "), symbol: jvmSymbol},
	types.LanguageKotlin:     {commentMarker: "//", isImport: hasPrefix("import ", "using "), symbol: jvmSymbol},
	types.LanguageCSharp:     {commentMarker: "//", isImport: hasPrefix("import ", "using "), symbol: jvmSymbol},
	types.LanguageC:          {commentMarker: "//", isImport: hasPrefix("#include "), symbol: cFamilySymbol},
	types.LanguageCPP:        {commentMarker: "//", isImport: hasPrefix("#include "), symbol: cFamilySymbol},
}

var fallbackStrategy = strategy{
	commentMarker: "//",
	isImport:      hasPrefix("import ", "use ", "#include "),
	symbol:        fallbackSymbol,
}

func strategyFor(lang types.Language) strategy {
	if s, ok := strategies[lang]; ok {
		return s
	}
	return fallbackStrategy
}

func hasPrefix(prefixes ...string) func(string) bool {
	return func(line string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(line, p) {
				return true
			}
		}
		return false
	}
}

func jsImport(line string) bool {
	return strings.HasPrefix(line, "import ") || strings.Contains(line, "= require(")
}

func firstKeyword(line string, rules []keywordRule, confidence types.Confidence) (match, bool) {
	for _, r := range rules {
		if name, ok := identAfterKeyword(line, r.keyword); ok {
			return match{name: name, kind: r.kind, confidence: confidence}, true
		}
	}
	return match{}, false
}

// callShape recognizes `name(...) {` style declarations
func callShape(line string) (match, bool) {
	name, ok := identBeforeByte(line, '(')
	if !ok || IsControlKeyword(name) {
		return match{}, false
	}
	return match{name: name, kind: types.KindFunction, confidence: types.ConfidenceMedium}, true
}

var rustRules = []keywordRule{
	{"fn", types.KindFunction},
	{"struct", types.KindStruct},
	{"enum", types.KindEnum},
	{"trait", types.KindTrait},
	{"mod", types.KindModule},
	{"const", types.KindConst},
	{"static", types.KindStatic},
	{"type", types.KindTypeAlias},
}

func rustSymbol(line string) (match, bool) {
	return firstKeyword(line, rustRules, types.ConfidenceHigh)
}

var pythonRules = []keywordRule{
	{"class", types.KindClass},
	{"def", types.KindFunction},
}

func pythonSymbol(line string) (match, bool) {
	return firstKeyword(line, pythonRules, types.ConfidenceHigh)
}

var jsRules = []keywordRule{
	{"function", types.KindFunction},
	{"class", types.KindClass},
	{"interface", types.KindInterface},
	{"type", types.KindTypeAlias},
	{"enum", types.KindEnum},
}

func jsSymbol(line string) (match, bool) {
	if m, ok := firstKeyword(line, jsRules, types.ConfidenceHigh); ok {
		return m, true
	}
	if strings.Contains(line, "=>") || (strings.Contains(line, "(") && strings.Contains(line, ")") && strings.Contains(line, "{")) {
		return callShape(line)
	}
	return match{}, false
}

var goRules = []keywordRule{
	{"type", types.KindType},
	{"const", types.KindConst},
	{"var", types.KindVar},
}

func goSymbol(line string) (match, bool) {
	if strings.HasPrefix(line, "func ") {
		var (
			name string
			ok   bool
		)
		if strings.HasPrefix(line, "func (") {
			name, ok = identAfterByte(line, ')')
		} else {
			name, ok = identAfterKeyword(line, "func")
		}
		if ok {
			return match{name: name, kind: types.KindFunction, confidence: types.ConfidenceHigh}, true
		}
	}
	return firstKeyword(line, goRules, types.ConfidenceHigh)
}

var jvmRules = []keywordRule{
	{"class", types.KindClass},
	{"interface", types.KindInterface},
	{"enum", types.KindEnum},
	{"record", types.KindRecord},
}

func jvmSymbol(line string) (match, bool) {
	if m, ok := firstKeyword(line, jvmRules, types.ConfidenceHigh); ok {
		return m, true
	}
	if strings.Contains(line, "(") && strings.Contains(line, ")") && strings.HasSuffix(line, "{") {
		return callShape(line)
	}
	return match{}, false
}

var cFamilyRules = []keywordRule{
	{"#define", types.KindMacro},
	{"struct", types.KindStruct},
	{"enum", types.KindEnum},
	{"typedef", types.KindTypeAlias},
}

func cFamilySymbol(line string) (match, bool) {
	if m, ok := firstKeyword(line, cFamilyRules, types.ConfidenceHigh); ok {
		return m, true
	}
	if strings.Contains(line, "(") && strings.Contains(line, ")") && strings.HasSuffix(line, "{") {
		return callShape(line)
	}
	return match{}, false
}

var fallbackRules = []keywordRule{
	{"function", types.KindFunction},
	{"class", types.KindClass},
	{"def", types.KindFunction},
}

func fallbackSymbol(line string) (match, bool) {
	return firstKeyword(line, fallbackRules, types.ConfidenceLow)
}
