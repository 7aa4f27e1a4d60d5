package memory

import (
	"fmt"
	"testing"

	"github.com/dshills/codememory-mcp/internal/parser"
	"github.com/dshills/codememory-mcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileMemory(path string, lang types.Language, imports []string, symbols ...types.SymbolFact) types.FileMemory {
	if imports == nil {
		imports = []string{}
	}
	return types.FileMemory{
		Path:        path,
		Language:    lang,
		Symbols:     symbols,
		Imports:     imports,
		SymbolCount: len(symbols),
		ImportCount: len(imports),
	}
}

func sym(name string, kind types.SymbolKind, line int) types.SymbolFact {
	return types.SymbolFact{Name: name, Kind: kind, Line: line, Confidence: types.ConfidenceHigh}
}

func TestBuild_Empty(t *testing.T) {
	pm := Build(nil)
	assert.Equal(t, 0, pm.FileCount)
	assert.Equal(t, 0, pm.UniqueSymbolCount)
	assert.Empty(t, pm.GlobalSymbols)
	assert.Empty(t, pm.OpenItems)
	assert.Empty(t, pm.Links)
}

func TestBuild_RustScenario(t *testing.T) {
	p := parser.New()
	files := []types.FileMemory{
		p.BuildFileMemory("a/foo.rs", types.LanguageRust, "pub struct Config {\n    name: String,\n}\n"),
		p.BuildFileMemory("a/bar.rs", types.LanguageRust, "use foo::Config;\n\nfn run() {}\n"),
	}

	pm := Build(files)

	assert.Equal(t, 2, pm.FileCount)
	assert.Equal(t, 2, pm.UniqueSymbolCount)
	assert.Equal(t, files, pm.Files)
	assert.Contains(t, pm.GlobalSymbols, types.GlobalSymbol{Name: "Config", Kind: types.KindStruct, DefinedIn: []string{"a/foo.rs"}})
	assert.Empty(t, pm.OpenItems)
	assert.Equal(t, []types.CrossFileLink{
		{FromFile: "a/bar.rs", ToFile: "a/foo.rs", Symbol: "Config", Reason: types.LinkReasonImport},
	}, pm.Links)
}

func TestBuild_GlobalSymbolsTotalAndSorted(t *testing.T) {
	files := []types.FileMemory{
		fileMemory("x.go", types.LanguageGo, nil, sym("New", types.KindFunction, 1), sym("Zeta", types.KindType, 2)),
		fileMemory("y.go", types.LanguageGo, nil, sym("New", types.KindFunction, 3), sym("Alpha", types.KindType, 1)),
		fileMemory("z.go", types.LanguageGo, nil, sym("New", types.KindFunction, 9), sym("Alpha", types.KindType, 4)),
	}

	pm := Build(files)

	require.Len(t, pm.GlobalSymbols, 3)
	assert.Equal(t, 3, pm.UniqueSymbolCount)
	assert.Equal(t, types.GlobalSymbol{Name: "New", Kind: types.KindFunction, DefinedIn: []string{"x.go", "y.go", "z.go"}}, pm.GlobalSymbols[0])
	assert.Equal(t, types.GlobalSymbol{Name: "Alpha", Kind: types.KindType, DefinedIn: []string{"y.go", "z.go"}}, pm.GlobalSymbols[1])
	assert.Equal(t, "Zeta", pm.GlobalSymbols[2].Name)
}

func TestBuild_KindConflict(t *testing.T) {
	files := []types.FileMemory{
		fileMemory("a.py", types.LanguagePython, nil, sym("Foo", types.KindClass, 1)),
		fileMemory("b.js", types.LanguageJavaScript, nil, sym("Foo", types.KindFunction, 1)),
	}

	pm := Build(files)

	require.Len(t, pm.OpenItems, 1)
	item := pm.OpenItems[0]
	assert.Equal(t, types.OpenItemKindConflict, item.Kind)
	assert.Equal(t, "Foo", item.Symbol)
	assert.Equal(t, "symbol 'Foo' appears with multiple kinds: class, function", item.Message)
	assert.Equal(t, []string{"a.py", "b.js"}, item.Files)
}

func TestBuild_LinksExcludeSelfAndDedupe(t *testing.T) {
	files := []types.FileMemory{
		fileMemory("src/a.py", types.LanguagePython,
			[]string{"from models import User", "from other.models import User as User"},
			sym("User", types.KindClass, 3)),
		fileMemory("src/models.py", types.LanguagePython, nil, sym("User", types.KindClass, 1)),
		fileMemory("lib/user.py", types.LanguagePython, nil, sym("User", types.KindFunction, 1)),
	}

	pm := Build(files)

	assert.Equal(t, []types.CrossFileLink{
		{FromFile: "src/a.py", ToFile: "lib/user.py", Symbol: "User", Reason: types.LinkReasonImport},
		{FromFile: "src/a.py", ToFile: "src/models.py", Symbol: "User", Reason: types.LinkReasonImport},
	}, pm.Links)
}

func TestBuilder_Limits(t *testing.T) {
	var files []types.FileMemory
	for i := 0; i < 20; i++ {
		path := fmt.Sprintf("f%02d.rs", i)
		files = append(files, fileMemory(path, types.LanguageRust, nil,
			sym("Shared", types.KindStruct, 1),
			sym("Shared", types.KindFunction, 2),
			sym(fmt.Sprintf("Only%02d", i), types.KindConst, 3),
		))
	}

	pm := NewBuilder(Limits{GlobalSymbols: 5, OpenItems: 1, Links: 1}).Build(files)

	assert.Equal(t, 22, pm.UniqueSymbolCount)
	assert.Len(t, pm.GlobalSymbols, 5)
	require.Len(t, pm.OpenItems, 1)
	assert.Len(t, pm.OpenItems[0].Files, DefaultLimits().OpenItemFiles)
	assert.Equal(t, "f00.rs", pm.OpenItems[0].Files[0])
}

func TestBuild_OrderIndependentSections(t *testing.T) {
	a := fileMemory("a.rs", types.LanguageRust, []string{"use crate::b::Thing"}, sym("Alpha", types.KindStruct, 1))
	b := fileMemory("b.rs", types.LanguageRust, nil, sym("Thing", types.KindStruct, 1), sym("Alpha", types.KindEnum, 2))

	pm1 := Build([]types.FileMemory{a, b})
	pm2 := Build([]types.FileMemory{b, a})

	assert.Equal(t, pm1.GlobalSymbols, pm2.GlobalSymbols)
	assert.Equal(t, pm1.OpenItems, pm2.OpenItems)
	assert.Equal(t, pm1.Links, pm2.Links)
	assert.Equal(t, "a.rs", pm1.Files[0].Path)
	assert.Equal(t, "b.rs", pm2.Files[0].Path)
}
