package memory

import (
	"strings"

	"github.com/dshills/codememory-mcp/internal/parser"
	"github.com/dshills/codememory-mcp/pkg/types"
)

// minCandidateLen drops short tokens that match too much
const minCandidateLen = 3

var candidateStopwords = map[string]bool{
	"use":          true,
	"import":       true,
	"from":         true,
	"require":      true,
	"as":           true,
	"self":         true,
	"super":        true,
	"crate":        true,
	"mod":          true,
	"pub":          true,
	"const":        true,
	"static":       true,
	"class":        true,
	"interface":    true,
	"enum":         true,
	"type":         true,
	"struct":       true,
	"trait":        true,
	"include":      true,
	"include_next": true,
}

// ImportCandidates returns the identifiers an import statement may refer to.
// The extraction is string surgery per language family: it over-matches
// unrelated names and misses re-export chains.
func ImportCandidates(imp string, lang types.Language) []string {
	switch lang {
	case types.LanguageRust:
		return rustCandidates(imp)
	case types.LanguagePython:
		return pythonCandidates(imp)
	case types.LanguageJavaScript, types.LanguageTypeScript:
		return jsCandidates(imp)
	case types.LanguageJava, types.LanguageKotlin, types.LanguageCSharp:
		return dottedCandidates(imp)
	case types.LanguageGo:
		return goCandidates(imp)
	default:
		return genericCandidates(imp)
	}
}

// CandidateSet returns the union of candidates over every import of a file
func CandidateSet(file *types.FileMemory) map[string]struct{} {
	set := make(map[string]struct{})
	for _, imp := range file.Imports {
		for _, c := range ImportCandidates(imp, file.Language) {
			set[c] = struct{}{}
		}
	}
	return set
}

type candidates []string

func (c *candidates) push(token string) {
	if len(token) < minCandidateLen || !parser.IsValidIdentifier(token) {
		return
	}
	if candidateStopwords[strings.ToLower(token)] {
		return
	}
	*c = append(*c, token)
}

func genericCandidates(imp string) []string {
	var out candidates
	start := -1
	for i := 0; i < len(imp); i++ {
		if parser.IsIdentByte(imp[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out.push(imp[start:i])
			start = -1
		}
	}
	if start >= 0 {
		out.push(imp[start:])
	}
	return out
}

const braceCutset = "{},"

func rustCandidates(imp string) []string {
	var out candidates
	for _, segment := range strings.Split(imp, "::") {
		cleaned := strings.TrimRight(strings.TrimSpace(segment), ";")
		if cleaned == "*" {
			continue
		}
		if rest, ok := strings.CutPrefix(cleaned, "{"); ok {
			if fields := strings.Fields(rest); len(fields) > 0 {
				out.push(strings.Trim(fields[0], braceCutset))
			}
		}
		if _, alias, ok := strings.Cut(cleaned, " as "); ok {
			out.push(strings.Trim(strings.TrimSpace(alias), braceCutset))
			continue
		}
		parts := strings.Split(strings.Trim(cleaned, braceCutset+" "), ",")
		out.push(strings.TrimSpace(parts[len(parts)-1]))
	}
	return out
}

func lastDotted(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func pythonCandidates(imp string) []string {
	var out candidates
	line := strings.TrimSpace(imp)

	var names string
	switch {
	case strings.HasPrefix(line, "from ") && strings.Contains(line, " import "):
		_, names, _ = strings.Cut(line, " import ")
	case strings.HasPrefix(line, "import "):
		names = strings.TrimPrefix(line, "import ")
	default:
		return out
	}

	for _, piece := range strings.Split(names, ",") {
		p := strings.TrimSpace(piece)
		if left, alias, ok := strings.Cut(p, " as "); ok {
			out.push(strings.TrimSpace(alias))
			p = left
		}
		out.push(strings.TrimSpace(lastDotted(p)))
	}
	return out
}

func jsCandidates(imp string) []string {
	var out candidates
	line := strings.TrimSpace(imp)

	if strings.HasPrefix(line, "import ") {
		lhs, _, ok := strings.Cut(line, " from ")
		if !ok {
			return out
		}
		left := strings.TrimSpace(strings.TrimPrefix(lhs, "import "))
		if strings.HasPrefix(left, "{") && strings.HasSuffix(left, "}") {
			inner := strings.TrimSuffix(strings.TrimPrefix(left, "{"), "}")
			for _, piece := range strings.Split(inner, ",") {
				p := strings.TrimSpace(piece)
				if orig, alias, ok := strings.Cut(p, " as "); ok {
					out.push(strings.TrimSpace(alias))
					out.push(strings.TrimSpace(orig))
				} else {
					out.push(p)
				}
			}
			return out
		}
		for _, piece := range strings.Split(left, ",") {
			out.push(strings.TrimSpace(piece))
		}
		return out
	}

	if lhs, _, ok := strings.Cut(line, "= require("); ok {
		left := strings.TrimSpace(lhs)
		for _, kw := range []string{"const ", "let ", "var "} {
			left = strings.TrimPrefix(left, kw)
		}
		out.push(strings.TrimSpace(left))
	}
	return out
}

func dottedCandidates(imp string) []string {
	var out candidates
	line := strings.TrimSpace(imp)
	line = strings.TrimPrefix(line, "import ")
	line = strings.TrimPrefix(line, "using ")
	line = strings.TrimSpace(strings.TrimRight(line, ";"))
	out.push(strings.TrimSpace(lastDotted(line)))
	return out
}

func goCandidates(imp string) []string {
	var out candidates
	rest, ok := strings.CutPrefix(strings.TrimSpace(imp), "import ")
	if !ok {
		return out
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return out
	}
	alias := fields[0]
	if !strings.HasPrefix(alias, `"`) && alias != "." && alias != "_" {
		out.push(alias)
	}
	return out
}
