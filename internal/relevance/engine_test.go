package relevance

import (
	"fmt"
	"testing"

	"github.com/dshills/codememory-mcp/internal/memory"
	"github.com/dshills/codememory-mcp/internal/parser"
	"github.com/dshills/codememory-mcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rustProject(t *testing.T) types.ProjectMemory {
	t.Helper()
	p := parser.New()
	return memory.Build([]types.FileMemory{
		p.BuildFileMemory("a/foo.rs", types.LanguageRust, "pub struct Config {\n    name: String,\n}\n"),
		p.BuildFileMemory("a/bar.rs", types.LanguageRust, "use foo::Config;\n"),
	})
}

func TestEngine_EndToEnd(t *testing.T) {
	pm := rustProject(t)
	engine := NewEngine(pm, DefaultPolicy())

	scored := engine.Score("a/bar.rs")

	require.Len(t, scored.GlobalSymbols, 1)
	assert.Equal(t, "Config", scored.GlobalSymbols[0].Name)
	assert.InDelta(t, 1.1, scored.GlobalSymbols[0].Score, 1e-9)

	require.Len(t, scored.Links, 1)
	assert.InDelta(t, 2.0, scored.Links[0].Score, 1e-9)
	assert.GreaterOrEqual(t, scored.Links[0].Score, 1.0)

	rel := engine.RelevantFor("a/bar.rs")
	assert.Equal(t, 2, rel.FileCount)
	assert.Equal(t, 1, rel.UniqueSymbolCount)
	assert.Equal(t, []types.GlobalSymbol{{Name: "Config", Kind: types.KindStruct, DefinedIn: []string{"a/foo.rs"}}}, rel.GlobalSymbols)
	assert.Equal(t, []types.CrossFileLink{{FromFile: "a/bar.rs", ToFile: "a/foo.rs", Symbol: "Config", Reason: types.LinkReasonImport}}, rel.Links)
	assert.Empty(t, rel.OpenItems)
}

func TestEngine_Deterministic(t *testing.T) {
	engine := NewEngine(rustProject(t), DefaultPolicy())
	assert.Equal(t, engine.RelevantFor("a/bar.rs"), engine.RelevantFor("a/bar.rs"))
	assert.Equal(t, engine.RelevantFor("a/bar.rs"), RelevantMemoryFor(rustProject(t), "a/bar.rs"))
}

func TestEngine_DefiningImporterOutranksProximity(t *testing.T) {
	pm := types.ProjectMemory{
		Files: []types.FileMemory{
			{Path: "x/f.py", Language: types.LanguagePython, Imports: []string{"from other import Shape"}},
			{Path: "x/g.py", Language: types.LanguagePython},
		},
		GlobalSymbols: []types.GlobalSymbol{
			{Name: "Shape", Kind: types.KindFunction, DefinedIn: []string{"x/g.py"}},
			{Name: "Shape", Kind: types.KindClass, DefinedIn: []string{"x/f.py"}},
		},
	}

	scored := NewEngine(pm, DefaultPolicy()).Score("x/f.py")

	require.Len(t, scored.GlobalSymbols, 2)
	assert.Equal(t, types.KindClass, scored.GlobalSymbols[0].Kind)
	assert.InDelta(t, 2.1, scored.GlobalSymbols[0].Score, 1e-9)
	assert.InDelta(t, 1.1, scored.GlobalSymbols[1].Score, 1e-9)
}

func TestEngine_DirectoryProximity(t *testing.T) {
	pm := types.ProjectMemory{
		GlobalSymbols: []types.GlobalSymbol{
			{Name: "Far", Kind: types.KindStruct, DefinedIn: []string{"b/far.rs"}},
			{Name: "Below", Kind: types.KindStruct, DefinedIn: []string{"a/sub/one.rs"}},
			{Name: "BelowTwice", Kind: types.KindStruct, DefinedIn: []string{"a/sub/one.rs", "a/sub/two.rs"}},
			{Name: "Prefixish", Kind: types.KindStruct, DefinedIn: []string{"ab/x.rs", "ab/y.rs"}},
			{Name: "Beside", Kind: types.KindStruct, DefinedIn: []string{"a/other.rs"}},
		},
	}

	scored := NewEngine(pm, DefaultPolicy()).Score("a/target.rs")

	names := make([]string, 0, len(scored.GlobalSymbols))
	for _, s := range scored.GlobalSymbols {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"BelowTwice", "Beside"}, names)
	assert.InDelta(t, 0.4/1.3010299956639813, scored.GlobalSymbols[0].Score, 1e-9)
}

func TestEngine_RootTargetMatchesEverything(t *testing.T) {
	pm := types.ProjectMemory{
		OpenItems: []types.OpenItem{
			{Kind: types.OpenItemKindConflict, Symbol: "Foo", Files: []string{"deep/nested/a.c", "deep/b.c"}},
		},
	}

	scored := NewEngine(pm, DefaultPolicy()).Score("main.c")

	require.Len(t, scored.OpenItems, 1)
	assert.InDelta(t, 0.4, scored.OpenItems[0].Score, 1e-9)
}

func TestEngine_CapsAndStableTies(t *testing.T) {
	var links []types.CrossFileLink
	for i := 0; i < 30; i++ {
		links = append(links, types.CrossFileLink{
			FromFile: fmt.Sprintf("src/f%02d.ts", i),
			ToFile:   "src/target.ts",
			Symbol:   "Widget",
			Reason:   types.LinkReasonImport,
		})
	}
	pm := types.ProjectMemory{Links: links}

	policy := DefaultPolicy()
	policy.Links = 5
	rel := NewEngine(pm, policy).RelevantFor("src/target.ts")

	require.Len(t, rel.Links, 5)
	for i, l := range rel.Links {
		assert.Equal(t, fmt.Sprintf("src/f%02d.ts", i), l.FromFile)
	}

	rel = NewEngine(pm, DefaultPolicy()).RelevantFor("src/target.ts")
	assert.Len(t, rel.Links, 20)
}

func TestEngine_ThresholdPolicy(t *testing.T) {
	pm := rustProject(t)
	policy := DefaultPolicy()
	policy.Threshold = 1.5

	rel := NewEngine(pm, policy).RelevantFor("a/bar.rs")
	assert.Empty(t, rel.GlobalSymbols)
	assert.Len(t, rel.Links, 1)
}

func TestEngine_NormalizesTarget(t *testing.T) {
	engine := NewEngine(rustProject(t), DefaultPolicy())
	assert.Equal(t, engine.RelevantFor("a/bar.rs"), engine.RelevantFor("./a/bar.rs"))
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{Threshold: -1}.Validate())
	assert.Error(t, Policy{GlobalSymbols: -1}.Validate())
}

func TestHasDirPrefix(t *testing.T) {
	assert.True(t, hasDirPrefix("a/b", ""))
	assert.True(t, hasDirPrefix("a/b", "a"))
	assert.True(t, hasDirPrefix("a", "a"))
	assert.False(t, hasDirPrefix("ab", "a"))
	assert.False(t, hasDirPrefix("a", "a/b"))
}
