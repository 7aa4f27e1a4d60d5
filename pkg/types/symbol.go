package types

import (
	"encoding/json"
	"strings"
)

// SymbolKind is a coarse declaration tag shared across languages
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindClass     SymbolKind = "class"
	KindStruct    SymbolKind = "struct"
	KindEnum      SymbolKind = "enum"
	KindTrait     SymbolKind = "trait"
	KindInterface SymbolKind = "interface"
	KindRecord    SymbolKind = "record"
	KindModule    SymbolKind = "module"
	KindConst     SymbolKind = "const"
	KindStatic    SymbolKind = "static"
	KindVar       SymbolKind = "var"
	KindType      SymbolKind = "type"
	KindTypeAlias SymbolKind = "type_alias"
	KindMacro     SymbolKind = "macro"
)

// Confidence grades how trustworthy a heuristic match is
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceHigh:
		return "high"
	default:
		return "medium"
	}
}

// ParseConfidence decodes a confidence name. Unknown values map to ConfidenceMedium.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(s) {
	case "low":
		return ConfidenceLow
	case "high":
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

// MarshalJSON implements json.Marshaler
func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseConfidence(s)
	return nil
}

// FieldInfo describes a struct or class field
type FieldInfo struct {
	Name       string `json:"name"`
	TypeName   string `json:"type_name,omitempty"`
	Visibility string `json:"visibility,omitempty"`
}

// VariantInfo describes an enum variant
type VariantInfo struct {
	Name string `json:"name"`
	Data string `json:"data,omitempty"`
}

// ParameterInfo describes a function parameter
type ParameterInfo struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name,omitempty"`
}

// SymbolDetails carries optional, best-effort declaration metadata
type SymbolDetails struct {
	Visibility string          `json:"visibility,omitempty"`
	Modifiers  []string        `json:"modifiers,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Fields     []FieldInfo     `json:"fields,omitempty"`
	Variants   []VariantInfo   `json:"variants,omitempty"`
	Parameters []ParameterInfo `json:"parameters,omitempty"`
	ReturnType string          `json:"return_type,omitempty"`
	Generics   []string        `json:"generics,omitempty"`
}

// SymbolFact is one extracted declaration
type SymbolFact struct {
	Name       string         `json:"name"`
	Kind       SymbolKind     `json:"kind"`
	Line       int            `json:"line"`
	Confidence Confidence     `json:"confidence"`
	Details    *SymbolDetails `json:"details,omitempty"`
}

// SymbolKey identifies a fact for deduplication
type SymbolKey struct {
	Name       string
	Kind       SymbolKind
	Line       int
	Confidence Confidence
}

// Key returns the deduplication key of the fact
func (s *SymbolFact) Key() SymbolKey {
	return SymbolKey{Name: s.Name, Kind: s.Kind, Line: s.Line, Confidence: s.Confidence}
}

// Validate checks the fact has a name, kind and position
func (s *SymbolFact) Validate() error {
	if s.Name == "" || s.Kind == "" {
		return ErrEmptyName
	}
	if s.Line <= 0 {
		return ErrInvalidLine
	}
	return nil
}
