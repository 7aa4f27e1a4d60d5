package parser

import (
	"strings"

	"github.com/dshills/codememory-mcp/internal/chunker"
	"github.com/dshills/codememory-mcp/pkg/types"
)

const (
	// MaxFileSymbols caps the symbols kept per file
	MaxFileSymbols = 200

	// MaxFileImports caps the imports kept per file
	MaxFileImports = 200

	// MaxImportLen is the length past which an import line is truncated
	MaxImportLen = 180
)

// Parser heuristically extracts declarations and imports from source lines.
// It never fails: unrecognized syntax yields no fact for that line.
type Parser struct {
	withDetails bool
}

// Option configures a Parser
type Option func(*Parser)

// WithoutDetails disables signature, visibility and parameter extraction
func WithoutDetails() Option {
	return func(p *Parser) {
		p.withDetails = false
	}
}

// New creates a new Parser instance
func New(opts ...Option) *Parser {
	p := &Parser{withDetails: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract returns the deduplicated symbols and imports of source, in
// first-seen order and capped at MaxFileSymbols and MaxFileImports
func (p *Parser) Extract(source string, lang types.Language) ([]types.SymbolFact, []string) {
	strat := strategyFor(lang)

	symbols := make([]types.SymbolFact, 0)
	imports := make([]string, 0)
	seenSymbols := make(map[types.SymbolKey]bool)
	seenImports := make(map[string]bool)
	inGoImportBlock := false

	for i, raw := range chunker.SplitLines(source) {
		line := strings.TrimSpace(stripComment(raw, strat.commentMarker))
		if line == "" {
			continue
		}

		if lang == types.LanguageGo {
			if imp, handled := p.goImportBlock(line, &inGoImportBlock); handled {
				if imp != "" && !seenImports[imp] {
					seenImports[imp] = true
					imports = append(imports, imp)
				}
				continue
			}
		}

		if strat.isImport(line) {
			imp := NormalizeImport(line)
			if !seenImports[imp] {
				seenImports[imp] = true
				imports = append(imports, imp)
			}
		}

		m, ok := strat.symbol(line)
		if !ok {
			continue
		}
		fact := types.SymbolFact{
			Name:       m.name,
			Kind:       m.kind,
			Line:       i + 1,
			Confidence: m.confidence,
		}
		if p.withDetails {
			fact.Details = buildDetails(line, m, lang)
		}
		key := fact.Key()
		if seenSymbols[key] {
			continue
		}
		seenSymbols[key] = true
		symbols = append(symbols, fact)
	}

	if len(symbols) > MaxFileSymbols {
		symbols = symbols[:MaxFileSymbols]
	}
	if len(imports) > MaxFileImports {
		imports = imports[:MaxFileImports]
	}
	return symbols, imports
}

// BuildFileMemory extracts the facts of one file into a FileMemory
func (p *Parser) BuildFileMemory(path string, lang types.Language, source string) types.FileMemory {
	symbols, imports := p.Extract(source, lang)
	return types.FileMemory{
		Path:        path,
		Language:    lang,
		Symbols:     symbols,
		Imports:     imports,
		SymbolCount: len(symbols),
		ImportCount: len(imports),
	}
}

// goImportBlock tracks a grouped `import ( ... )` block. Each member line is
// reported as a single-line import so candidate extraction treats it the
// same way.
func (p *Parser) goImportBlock(line string, inBlock *bool) (string, bool) {
	if *inBlock {
		if strings.HasPrefix(line, ")") {
			*inBlock = false
			return "", true
		}
		return NormalizeImport("import " + line), true
	}
	if line == "import (" || line == "import(" {
		*inBlock = true
		return "", true
	}
	return "", false
}

// NormalizeImport strips trailing semicolons and truncates long lines
func NormalizeImport(line string) string {
	return truncate(strings.TrimRight(line, ";"), MaxImportLen)
}

func stripComment(line, marker string) string {
	if i := strings.Index(line, marker); i >= 0 {
		return line[:i]
	}
	return line
}
