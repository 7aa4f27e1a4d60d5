// Package parser extracts symbol declarations and import statements from
// source files using per-language line heuristics.
//
// This is lexical recognition, not parsing. Each non-blank line, after its
// end-of-line comment is removed, is tested against the import pattern and
// the declaration pattern of its language family. A line may yield both.
//
// # Usage
//
//	p := parser.New()
//	mem := p.BuildFileMemory("src/lib.rs", types.LanguageRust, source)
//	for _, sym := range mem.Symbols {
//	    fmt.Printf("%s %s (line %d, %s)\n", sym.Kind, sym.Name, sym.Line, sym.Confidence)
//	}
//
// # Confidence
//
//   - High: keyword-anchored matches such as `struct Name` or `def name`
//   - Medium: shape matches such as `name(...) {`, excluding control-flow keywords
//   - Low: the generic fallback for unrecognized languages
//
// # Limits
//
// Imports are deduplicated in first-seen order and symbols on
// (name, kind, line, confidence). Both lists are capped at 200 entries.
// Import lines longer than 180 bytes are truncated with "...".
package parser
