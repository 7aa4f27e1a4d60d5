package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dshills/codememory-mcp/pkg/types"
)

// TokensPerChar is the heuristic divisor for estimating tokens (chars/4)
const TokensPerChar = 4

// Profile bounds the size of the chunks produced for one language
type Profile struct {
	MaxLines  int `toml:"max_lines" json:"max_lines"`
	Overlap   int `toml:"overlap" json:"overlap"`
	MaxChars  int `toml:"max_chars" json:"max_chars"`
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
}

// Validate checks that every budget allows at least one line
func (p Profile) Validate() error {
	if p.MaxLines < 1 {
		return errors.New("max_lines must be >= 1")
	}
	if p.Overlap < 0 {
		return errors.New("overlap must be >= 0")
	}
	if p.MaxChars < 1 || p.MaxTokens < 1 {
		return errors.New("max_chars and max_tokens must be >= 1")
	}
	return nil
}

// DefaultProfile is used for languages without a dedicated profile
var DefaultProfile = Profile{MaxLines: 120, Overlap: 20, MaxChars: 6000, MaxTokens: 1300}

var defaultProfiles = map[types.Language]Profile{
	types.LanguagePython:     {MaxLines: 100, Overlap: 14, MaxChars: 5200, MaxTokens: 1100},
	types.LanguageJavaScript: {MaxLines: 110, Overlap: 18, MaxChars: 5600, MaxTokens: 1200},
	types.LanguageTypeScript: {MaxLines: 110, Overlap: 18, MaxChars: 5600, MaxTokens: 1200},
	types.LanguageJava:       {MaxLines: 95, Overlap: 16, MaxChars: 5400, MaxTokens: 1150},
	types.LanguageKotlin:     {MaxLines: 95, Overlap: 16, MaxChars: 5400, MaxTokens: 1150},
	types.LanguageCSharp:     {MaxLines: 95, Overlap: 16, MaxChars: 5400, MaxTokens: 1150},
	types.LanguageC:          {MaxLines: 105, Overlap: 18, MaxChars: 5600, MaxTokens: 1200},
	types.LanguageCPP:        {MaxLines: 105, Overlap: 18, MaxChars: 5600, MaxTokens: 1200},
}

// Chunker splits source text into overlapping, size-bounded line windows
type Chunker struct {
	profiles map[types.Language]Profile
	fallback Profile
}

// New creates a new Chunker instance with the built-in profiles
func New() *Chunker {
	return NewWithProfiles(nil)
}

// NewWithProfiles creates a Chunker whose built-in profiles are replaced by
// the given overrides. The key types.LanguageText overrides the fallback.
func NewWithProfiles(overrides map[types.Language]Profile) *Chunker {
	c := &Chunker{
		profiles: make(map[types.Language]Profile, len(defaultProfiles)+len(overrides)),
		fallback: DefaultProfile,
	}
	for lang, p := range defaultProfiles {
		c.profiles[lang] = p
	}
	for lang, p := range overrides {
		if p.Validate() != nil {
			continue
		}
		if lang == types.LanguageText {
			c.fallback = p
			continue
		}
		c.profiles[lang] = p
	}
	return c
}

// ProfileFor returns the budget used for lang
func (c *Chunker) ProfileFor(lang types.Language) Profile {
	if p, ok := c.profiles[lang]; ok {
		return p
	}
	return c.fallback
}

// Chunk splits source into chunks that cover every line in order.
//
// A window grows to MaxLines and then drops trailing lines until both the
// character and token budgets hold. A single line is always emitted, even
// when it alone exceeds the budget. The next window starts Overlap lines
// before the previous end, but always after the previous start.
func (c *Chunker) Chunk(source string, lang types.Language) types.SourceIndex {
	lines := SplitLines(source)
	idx := types.SourceIndex{
		Language:  lang,
		LineCount: len(lines),
		Chunks:    []types.SourceChunk{},
	}
	if len(lines) == 0 {
		return idx
	}

	profile := c.ProfileFor(lang)
	n := len(lines)
	start := 0
	for start < n {
		end := min(start+profile.MaxLines, n)
		for end-start > 1 && !fits(lines[start:end], profile) {
			end--
		}

		idx.Chunks = append(idx.Chunks, types.SourceChunk{
			ChunkID:   len(idx.Chunks),
			StartLine: start + 1,
			EndLine:   end,
			Content:   strings.Join(lines[start:end], "\n"),
		})

		if end >= n {
			break
		}
		next := end - profile.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	idx.ChunkCount = len(idx.Chunks)
	return idx
}

func fits(window []string, p Profile) bool {
	return CharCount(window) <= p.MaxChars && EstimateTokens(window) <= p.MaxTokens
}

// SplitLines splits text on newlines, dropping a trailing carriage return on
// each line. A final newline does not produce an extra empty line.
func SplitLines(source string) []string {
	if source == "" {
		return nil
	}
	source = strings.TrimSuffix(source, "\n")
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// CharCount returns the byte length of the lines including one newline each
func CharCount(lines []string) int {
	total := 0
	for _, line := range lines {
		total += len(line) + 1
	}
	return total
}

// EstimateTokens sums the per-line token estimate over lines
func EstimateTokens(lines []string) int {
	total := 0
	for _, line := range lines {
		total += EstimateLineTokens(line)
	}
	return total
}

// EstimateLineTokens is max(ceil(chars/4), words/2+1)
func EstimateLineTokens(line string) int {
	chars := utf8.RuneCountInString(line)
	byChars := (chars + TokensPerChar - 1) / TokensPerChar
	byWords := len(strings.Fields(line))/2 + 1
	return max(byChars, byWords)
}

// EstimateTokenCount estimates the number of tokens in a block of text
func EstimateTokenCount(text string) int {
	return EstimateTokens(SplitLines(text))
}

// ComputeChunkHash computes the hex SHA-256 hash for a chunk's content
func ComputeChunkHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
