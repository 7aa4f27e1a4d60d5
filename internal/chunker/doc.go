// Package chunker divides source text into overlapping, size-bounded chunks.
//
// Chunks are line windows, not syntax-aware segments, so the same algorithm
// serves every supported language. Each language has a Profile with a line
// budget, an overlap and character and token ceilings.
//
// # Basic Usage
//
//	c := chunker.New()
//	idx := c.Chunk(source, types.LanguagePython)
//	for _, chunk := range idx.Chunks {
//	    fmt.Printf("chunk %d: lines %d-%d\n", chunk.ChunkID, chunk.StartLine, chunk.EndLine)
//	}
//
// # Profiles
//
//	python                  100 lines, 14 overlap, 5200 chars, 1100 tokens
//	javascript, typescript  110 lines, 18 overlap, 5600 chars, 1200 tokens
//	java, kotlin, csharp     95 lines, 16 overlap, 5400 chars, 1150 tokens
//	c, cpp                  105 lines, 18 overlap, 5600 chars, 1200 tokens
//	everything else         120 lines, 20 overlap, 6000 chars, 1300 tokens
//
// Profiles can be replaced per language with NewWithProfiles.
//
// # Token Estimation
//
// Token counts are a cheap, deterministic heuristic summed per line:
// max(ceil(chars/4), words/2+1). It is not a tokenizer; it only has to be
// monotonic enough to compare against the budget.
//
// # Guarantees
//
//   - Chunks cover lines 1..line_count with no gaps
//   - Consecutive chunks overlap (next start <= previous end)
//   - Every chunk has at least one line
//   - Empty input yields no chunks and line_count 0
package chunker
