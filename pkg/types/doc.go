// Package types provides shared type definitions for the CodeMemory MCP server.
//
// This package defines the domain records that flow through the context
// assembly pipeline: source chunks, symbol facts, per-file memory, the
// project-wide memory snapshot and the bounded relevance result handed to the
// generation boundary.
//
// # Core Types
//
// SourceChunk is a bounded, overlapping slice of one file's lines:
//
//	chunk := types.SourceChunk{
//	    ChunkID:   0,
//	    StartLine: 1,
//	    EndLine:   120,
//	    Content:   text,
//	}
//
// SymbolFact is a single heuristically extracted declaration:
//
//	fact := types.SymbolFact{
//	    Name:       "Config",
//	    Kind:       types.KindStruct,
//	    Line:       12,
//	    Confidence: types.ConfidenceHigh,
//	}
//
// FileMemory groups the facts of one file, and ProjectMemory aggregates every
// FileMemory into a global symbol table, open items (naming conflicts) and
// cross-file links inferred from import statements.
//
// # Languages
//
// Language is a closed vocabulary of short tags derived from file extensions.
// Unrecognized extensions map to LanguageText, which selects the fallback
// chunking profile and the low-confidence extraction rules:
//
//	lang := types.DetectLanguage("src/main.rs") // types.LanguageRust
//
// # Serialization
//
// All records carry snake_case JSON tags. The persisted cache and memory
// snapshots are plain JSON documents of these types, so field names are part
// of the on-disk format.
//
// # Validation
//
// Records with structural invariants implement Validate:
//
//	if err := memory.Validate(); err != nil {
//	    return err
//	}
package types
