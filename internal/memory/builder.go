package memory

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/dshills/codememory-mcp/pkg/types"
)

// Limits caps the size of each ProjectMemory section
type Limits struct {
	GlobalSymbols int `toml:"global_symbols" json:"global_symbols"`
	OpenItems     int `toml:"open_items" json:"open_items"`
	Links         int `toml:"links" json:"links"`
	OpenItemFiles int `toml:"open_item_files" json:"open_item_files"`
}

// DefaultLimits returns the standard section caps
func DefaultLimits() Limits {
	return Limits{
		GlobalSymbols: 300,
		OpenItems:     120,
		Links:         400,
		OpenItemFiles: 12,
	}
}

type symbolKey struct {
	name string
	kind types.SymbolKind
}

// pathSet is an insertion-agnostic set of file paths
type pathSet map[string]struct{}

func (s pathSet) sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Builder aggregates FileMemory records into a ProjectMemory
type Builder struct {
	limits Limits
}

// NewBuilder creates a Builder. Zero or negative limits fall back to the defaults.
func NewBuilder(limits Limits) *Builder {
	def := DefaultLimits()
	if limits.GlobalSymbols <= 0 {
		limits.GlobalSymbols = def.GlobalSymbols
	}
	if limits.OpenItems <= 0 {
		limits.OpenItems = def.OpenItems
	}
	if limits.Links <= 0 {
		limits.Links = def.Links
	}
	if limits.OpenItemFiles <= 0 {
		limits.OpenItemFiles = def.OpenItemFiles
	}
	return &Builder{limits: limits}
}

// Build is shorthand for NewBuilder(DefaultLimits()).Build(files)
func Build(files []types.FileMemory) types.ProjectMemory {
	return NewBuilder(DefaultLimits()).Build(files)
}

// Build aggregates files into a fresh ProjectMemory. It is a pure function of
// its input: files is passed through in caller order and every derived
// section is sorted before it is capped.
func (b *Builder) Build(files []types.FileMemory) types.ProjectMemory {
	bySymbol := make(map[symbolKey]pathSet)
	byName := make(map[string]map[types.SymbolKind]pathSet)

	for i := range files {
		f := &files[i]
		for _, sym := range f.Symbols {
			key := symbolKey{name: sym.Name, kind: sym.Kind}
			if bySymbol[key] == nil {
				bySymbol[key] = make(pathSet)
			}
			bySymbol[key][f.Path] = struct{}{}

			kinds := byName[sym.Name]
			if kinds == nil {
				kinds = make(map[types.SymbolKind]pathSet)
				byName[sym.Name] = kinds
			}
			if kinds[sym.Kind] == nil {
				kinds[sym.Kind] = make(pathSet)
			}
			kinds[sym.Kind][f.Path] = struct{}{}
		}
	}

	return types.ProjectMemory{
		FileCount:         len(files),
		UniqueSymbolCount: len(bySymbol),
		Files:             slices.Clone(files),
		GlobalSymbols:     b.globalSymbols(bySymbol),
		OpenItems:         b.openItems(byName),
		Links:             b.links(files, bySymbol),
	}
}

func (b *Builder) globalSymbols(bySymbol map[symbolKey]pathSet) []types.GlobalSymbol {
	out := make([]types.GlobalSymbol, 0, len(bySymbol))
	for key, paths := range bySymbol {
		out = append(out, types.GlobalSymbol{
			Name:      key.name,
			Kind:      key.kind,
			DefinedIn: paths.sorted(),
		})
	}

	slices.SortFunc(out, func(a, b types.GlobalSymbol) int {
		return cmp.Or(
			cmp.Compare(len(b.DefinedIn), len(a.DefinedIn)),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Kind, b.Kind),
		)
	})
	return capSlice(out, b.limits.GlobalSymbols)
}

func (b *Builder) openItems(byName map[string]map[types.SymbolKind]pathSet) []types.OpenItem {
	out := make([]types.OpenItem, 0)
	for name, kinds := range byName {
		if len(kinds) < 2 {
			continue
		}

		kindNames := make([]string, 0, len(kinds))
		files := make(pathSet)
		for kind, paths := range kinds {
			kindNames = append(kindNames, string(kind))
			for p := range paths {
				files[p] = struct{}{}
			}
		}
		slices.Sort(kindNames)

		out = append(out, types.OpenItem{
			Kind:    types.OpenItemKindConflict,
			Symbol:  name,
			Message: fmt.Sprintf("symbol '%s' appears with multiple kinds: %s", name, strings.Join(kindNames, ", ")),
			Files:   capSlice(files.sorted(), b.limits.OpenItemFiles),
		})
	}

	slices.SortFunc(out, func(a, b types.OpenItem) int {
		return cmp.Compare(a.Symbol, b.Symbol)
	})
	return capSlice(out, b.limits.OpenItems)
}

type linkKey struct {
	from, to, symbol, reason string
}

func (b *Builder) links(files []types.FileMemory, bySymbol map[symbolKey]pathSet) []types.CrossFileLink {
	definers := make(map[string]pathSet)
	for key, paths := range bySymbol {
		if definers[key.name] == nil {
			definers[key.name] = make(pathSet)
		}
		for p := range paths {
			definers[key.name][p] = struct{}{}
		}
	}

	out := make([]types.CrossFileLink, 0)
	seen := make(map[linkKey]bool)
	for i := range files {
		f := &files[i]
		for _, imp := range f.Imports {
			for _, candidate := range ImportCandidates(imp, f.Language) {
				dests, ok := definers[candidate]
				if !ok {
					continue
				}
				for _, to := range dests.sorted() {
					if to == f.Path {
						continue
					}
					key := linkKey{from: f.Path, to: to, symbol: candidate, reason: types.LinkReasonImport}
					if seen[key] {
						continue
					}
					seen[key] = true
					out = append(out, types.CrossFileLink{
						FromFile: f.Path,
						ToFile:   to,
						Symbol:   candidate,
						Reason:   types.LinkReasonImport,
					})
				}
			}
		}
	}

	slices.SortFunc(out, func(a, b types.CrossFileLink) int {
		return cmp.Or(
			cmp.Compare(a.FromFile, b.FromFile),
			cmp.Compare(a.Symbol, b.Symbol),
			cmp.Compare(a.ToFile, b.ToFile),
		)
	})
	return capSlice(out, b.limits.Links)
}

func capSlice[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}
