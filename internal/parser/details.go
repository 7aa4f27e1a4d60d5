package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/codememory-mcp/pkg/types"
)

// MaxSignatureLen bounds the stored declaration line
const MaxSignatureLen = 180

var visibilityKeywords = map[string]bool{
	"pub":        true,
	"pub(crate)": true,
	"pub(super)": true,
	"export":     true,
	"public":     true,
	"private":    true,
	"protected":  true,
	"internal":   true,
}

var modifierKeywords = map[string]bool{
	"static":   true,
	"async":    true,
	"abstract": true,
	"final":    true,
	"default":  true,
	"override": true,
	"unsafe":   true,
	"extern":   true,
	"inline":   true,
	"virtual":  true,
	"sealed":   true,
	"open":     true,
	"data":     true,
	"readonly": true,
	"declare":  true,
}

// buildDetails derives best-effort metadata from the declaration line
func buildDetails(line string, m match, lang types.Language) *types.SymbolDetails {
	d := &types.SymbolDetails{Signature: truncate(signatureOf(line), MaxSignatureLen)}

scan:
	for _, f := range strings.Fields(line) {
		switch {
		case visibilityKeywords[f]:
			if d.Visibility == "" {
				d.Visibility = f
			}
		case modifierKeywords[f]:
			d.Modifiers = append(d.Modifiers, f)
		default:
			break scan
		}
	}

	if d.Visibility == "" {
		d.Visibility = implicitVisibility(m.name, lang)
	}

	nameAt := findWord(line, m.name)
	if nameAt < 0 {
		return d
	}
	after := line[nameAt+len(m.name):]

	if strings.HasPrefix(after, "<") {
		if inner, rest, ok := enclosed(after, '<', '>'); ok {
			d.Generics = splitTopLevel(inner)
			after = rest
		}
	}

	if m.kind != types.KindFunction {
		return d
	}

	open := strings.IndexByte(after, '(')
	if open < 0 {
		return d
	}
	inner, rest, ok := enclosed(after[open:], '(', ')')
	if !ok {
		return d
	}
	for _, p := range splitTopLevel(inner) {
		if param, ok := parseParameter(p, lang); ok {
			d.Parameters = append(d.Parameters, param)
		}
	}
	d.ReturnType = returnType(line[:nameAt], rest, lang)

	return d
}

func signatureOf(line string) string {
	sig := strings.TrimSpace(line)
	sig = strings.TrimSuffix(sig, "{")
	return strings.TrimSpace(sig)
}

func implicitVisibility(name string, lang types.Language) string {
	switch lang {
	case types.LanguageGo:
		r, _ := utf8.DecodeRuneInString(name)
		if unicode.IsUpper(r) {
			return "exported"
		}
		return "unexported"
	case types.LanguagePython:
		if strings.HasPrefix(name, "_") {
			return "private"
		}
		return "public"
	default:
		return ""
	}
}

// findWord returns the index of name in line at identifier boundaries
func findWord(line, name string) int {
	offset := 0
	for {
		i := strings.Index(line[offset:], name)
		if i < 0 {
			return -1
		}
		pos := offset + i
		end := pos + len(name)
		before := pos == 0 || !IsIdentByte(line[pos-1])
		after := end >= len(line) || !IsIdentByte(line[end])
		if before && after {
			return pos
		}
		offset = pos + 1
	}
}

// enclosed returns the text between s[0] (which must be open) and its
// matching close, plus whatever follows the close
func enclosed(s string, open, close byte) (string, string, bool) {
	if s == "" || s[0] != open {
		return "", "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[1:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// splitTopLevel splits on commas that are not nested in brackets
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				if p := strings.TrimSpace(s[start:i]); p != "" {
					parts = append(parts, p)
				}
				start = i + 1
			}
		}
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

var receiverParams = map[string]bool{
	"self":      true,
	"&self":     true,
	"&mut self": true,
	"mut self":  true,
	"this":      true,
	"void":      true,
}

func parseParameter(p string, lang types.Language) (types.ParameterInfo, bool) {
	if eq := strings.IndexByte(p, '='); eq >= 0 {
		p = strings.TrimSpace(p[:eq])
	}
	if p == "" || receiverParams[p] {
		return types.ParameterInfo{}, false
	}

	if colon := singleColon(p); colon >= 0 {
		name := strings.TrimSpace(p[:colon])
		name = strings.TrimPrefix(name, "mut ")
		name = strings.TrimSuffix(strings.TrimLeft(name, "&*."), "?")
		return types.ParameterInfo{Name: name, TypeName: strings.TrimSpace(p[colon+1:])}, name != ""
	}

	fields := strings.Fields(p)
	switch {
	case lang == types.LanguageGo:
		return types.ParameterInfo{Name: fields[0], TypeName: strings.Join(fields[1:], " ")}, true
	case len(fields) == 1:
		return types.ParameterInfo{Name: strings.TrimLeft(fields[0], "*&."), TypeName: ""}, true
	default:
		name := fields[len(fields)-1]
		typ := strings.Join(fields[:len(fields)-1], " ")
		trimmed := strings.TrimLeft(name, "*&")
		typ += name[:len(name)-len(trimmed)]
		return types.ParameterInfo{Name: trimmed, TypeName: typ}, trimmed != ""
	}
}

// singleColon returns the index of the first ':' that is not part of "::"
func singleColon(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != ':' {
			continue
		}
		if i+1 < len(s) && s[i+1] == ':' {
			i++
			continue
		}
		return i
	}
	return -1
}

func returnType(beforeName, afterParams string, lang types.Language) string {
	rest := strings.TrimSpace(afterParams)
	rest = strings.TrimSuffix(rest, "{")
	rest = strings.TrimSpace(rest)

	if arrow := strings.Index(rest, "->"); arrow >= 0 {
		rt := strings.TrimSpace(rest[arrow+2:])
		if where := strings.Index(rt, " where "); where >= 0 {
			rt = rt[:where]
		}
		return strings.TrimSpace(strings.TrimSuffix(rt, ":"))
	}

	switch lang {
	case types.LanguageGo:
		return rest
	case types.LanguageTypeScript, types.LanguageKotlin:
		if strings.HasPrefix(rest, ":") {
			rt := strings.TrimSpace(strings.TrimPrefix(rest, ":"))
			rt = strings.TrimSuffix(rt, "=>")
			return strings.TrimSpace(rt)
		}
		return ""
	case types.LanguageJava, types.LanguageCSharp, types.LanguageC, types.LanguageCPP:
		var parts []string
		for _, f := range strings.Fields(beforeName) {
			if visibilityKeywords[f] || modifierKeywords[f] {
				continue
			}
			parts = append(parts, f)
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

// truncate cuts s to at most n bytes on a rune boundary and appends "..."
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
