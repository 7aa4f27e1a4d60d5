// Package memory aggregates per-file facts into a project-wide memory.
//
// Build produces a ProjectMemory from the current set of FileMemory records:
//
//   - a global symbol table keyed by (name, kind) listing every defining file
//   - open items for names declared with two or more kinds
//   - cross-file links from an importing file to every other file that
//     defines a name extracted from one of its import statements
//
// The result is rebuilt from scratch each time and never patched.
//
// # Import Candidates
//
// Links rely on ImportCandidates, which pulls identifiers out of import
// syntax per language family: path leaves and brace lists for Rust, aliases
// and leaves for Python, brace lists and require bindings for JavaScript and
// TypeScript, the last dotted segment for Java, Kotlin and C#, and aliases for
// Go. Tokens shorter than three characters and language keywords are
// dropped.
//
// Matching is name-only. A link is weak evidence of a dependency, not a
// resolved binding.
package memory
