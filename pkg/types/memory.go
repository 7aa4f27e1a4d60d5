package types

import "fmt"

const (
	// OpenItemKindConflict marks a name declared with more than one kind
	OpenItemKindConflict = "kind_conflict"

	// LinkReasonImport marks a link inferred from an import statement
	LinkReasonImport = "import"
)

// FileMemory holds the facts extracted from one file
type FileMemory struct {
	Path        string       `json:"path"`
	Language    Language     `json:"language"`
	Symbols     []SymbolFact `json:"symbols"`
	Imports     []string     `json:"imports"`
	SymbolCount int          `json:"symbol_count"`
	ImportCount int          `json:"import_count"`
}

// Truncate keeps a stable prefix of symbols and imports and resyncs the counts
func (m *FileMemory) Truncate(maxSymbols, maxImports int) {
	if maxSymbols >= 0 && len(m.Symbols) > maxSymbols {
		m.Symbols = m.Symbols[:maxSymbols]
	}
	if maxImports >= 0 && len(m.Imports) > maxImports {
		m.Imports = m.Imports[:maxImports]
	}
	m.SymbolCount = len(m.Symbols)
	m.ImportCount = len(m.Imports)
}

// Clone returns a deep copy so callers can truncate without touching the original
func (m *FileMemory) Clone() FileMemory {
	out := *m
	out.Symbols = append([]SymbolFact(nil), m.Symbols...)
	out.Imports = append([]string(nil), m.Imports...)
	return out
}

// Validate checks counts agree with list lengths
func (m *FileMemory) Validate() error {
	if m.Path == "" {
		return ErrEmptyPath
	}
	if m.SymbolCount != len(m.Symbols) {
		return fmt.Errorf("symbol_count %d for %d symbols: %w", m.SymbolCount, len(m.Symbols), ErrCountMismatch)
	}
	if m.ImportCount != len(m.Imports) {
		return fmt.Errorf("import_count %d for %d imports: %w", m.ImportCount, len(m.Imports), ErrCountMismatch)
	}
	for i := range m.Symbols {
		if err := m.Symbols[i].Validate(); err != nil {
			return fmt.Errorf("symbol %d: %w", i, err)
		}
	}
	return nil
}

// GlobalSymbol is a (name, kind) pair and every file that declares it
type GlobalSymbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	DefinedIn []string   `json:"defined_in"`
}

// OpenItem is a naming ambiguity found across the project
type OpenItem struct {
	Kind    string   `json:"kind"`
	Symbol  string   `json:"symbol"`
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

// CrossFileLink is an inferred dependency edge between two files
type CrossFileLink struct {
	FromFile string `json:"from_file"`
	ToFile   string `json:"to_file"`
	Symbol   string `json:"symbol"`
	Reason   string `json:"reason"`
}

// ProjectMemory is the project-wide aggregation of all FileMemory records
type ProjectMemory struct {
	FileCount         int             `json:"file_count"`
	UniqueSymbolCount int             `json:"unique_symbol_count"`
	Files             []FileMemory    `json:"files"`
	GlobalSymbols     []GlobalSymbol  `json:"global_symbols"`
	OpenItems         []OpenItem      `json:"open_items"`
	Links             []CrossFileLink `json:"links"`
}

// File returns the FileMemory for path, if present
func (p *ProjectMemory) File(path string) (*FileMemory, bool) {
	for i := range p.Files {
		if p.Files[i].Path == path {
			return &p.Files[i], true
		}
	}
	return nil, false
}

// CacheEntry is the persisted per-file cache record
type CacheEntry struct {
	Hash     string      `json:"hash"`
	Language Language    `json:"language,omitempty"`
	Memory   *FileMemory `json:"memory,omitempty"`
}

// Validate checks the entry carries a hash and a consistent memory
func (e *CacheEntry) Validate() error {
	if e.Hash == "" {
		return ErrEmptyHash
	}
	if e.Memory != nil {
		return e.Memory.Validate()
	}
	return nil
}
