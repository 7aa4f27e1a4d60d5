package parser

import "strings"

// IsIdentStart reports whether b may begin an identifier
func IsIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// IsIdentByte reports whether b may continue an identifier
func IsIdentByte(b byte) bool {
	return IsIdentStart(b) || (b >= '0' && b <= '9')
}

// IsValidIdentifier reports whether s is an ASCII identifier: a letter or
// underscore followed by letters, digits or underscores
func IsValidIdentifier(s string) bool {
	if s == "" || !IsIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !IsIdentByte(s[i]) {
			return false
		}
	}
	return true
}

// leadingIdent returns the identifier-character run at the start of s
func leadingIdent(s string) string {
	i := 0
	for i < len(s) && IsIdentByte(s[i]) {
		i++
	}
	return s[:i]
}

// identAfterKeyword finds "keyword " at a word boundary and returns the
// identifier that follows it
func identAfterKeyword(line, keyword string) (string, bool) {
	marker := keyword + " "
	offset := 0
	for {
		i := strings.Index(line[offset:], marker)
		if i < 0 {
			return "", false
		}
		pos := offset + i
		offset = pos + len(marker)
		if pos > 0 && IsIdentByte(line[pos-1]) {
			continue
		}

		name := leadingIdent(strings.TrimLeft(line[offset:], " \t"))
		if name == "" || !IsIdentStart(name[0]) {
			return "", false
		}
		return name, true
	}
}

// identAfterByte returns the identifier following the first occurrence of ch
func identAfterByte(line string, ch byte) (string, bool) {
	i := strings.IndexByte(line, ch)
	if i < 0 {
		return "", false
	}
	name := leadingIdent(strings.TrimLeft(line[i+1:], " \t"))
	return name, IsValidIdentifier(name)
}

// identBeforeByte returns the last whitespace-separated token before the
// first occurrence of ch
func identBeforeByte(line string, ch byte) (string, bool) {
	i := strings.IndexByte(line, ch)
	if i < 0 {
		return "", false
	}
	fields := strings.Fields(line[:i])
	if len(fields) == 0 {
		return "", false
	}
	name := fields[len(fields)-1]
	return name, IsValidIdentifier(name)
}

var controlKeywords = map[string]bool{
	"if":      true,
	"for":     true,
	"while":   true,
	"switch":  true,
	"match":   true,
	"catch":   true,
	"foreach": true,
	"loop":    true,
	"do":      true,
	"else":    true,
	"return":  true,
}

// IsControlKeyword reports whether token is a control-flow keyword that can
// precede a parenthesis without being a declaration
func IsControlKeyword(token string) bool {
	return controlKeywords[token]
}
