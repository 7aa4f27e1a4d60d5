package relevance

import (
	"errors"
	"math"
	"path"
	"slices"
	"strings"

	"github.com/dshills/codememory-mcp/internal/memory"
	"github.com/dshills/codememory-mcp/pkg/types"
)

// Signal weights. Scores are relative and only used for ranking and the
// threshold cut.
const (
	symbolDefinedWeight  = 1.0
	symbolImportedWeight = 0.8
	symbolSameDirWeight  = 0.3
	symbolSubdirWeight   = 0.2

	itemInvolvedWeight = 1.0
	itemImportedWeight = 0.6
	itemSameDirWeight  = 0.4
	itemSubdirWeight   = 0.2

	linkInvolvedWeight = 1.0
	linkImportedWeight = 0.7
	linkSameDirWeight  = 0.3
	linkSubdirWeight   = 0.15
)

// Policy holds the threshold and per-category caps applied to scored entries
type Policy struct {
	Threshold     float64 `toml:"threshold" json:"threshold"`
	GlobalSymbols int     `toml:"global_symbols" json:"global_symbols"`
	OpenItems     int     `toml:"open_items" json:"open_items"`
	Links         int     `toml:"links" json:"links"`
}

// DefaultPolicy returns the standard threshold and caps
func DefaultPolicy() Policy {
	return Policy{
		Threshold:     0.3,
		GlobalSymbols: 40,
		OpenItems:     10,
		Links:         20,
	}
}

// Validate checks the policy is usable
func (p Policy) Validate() error {
	if p.Threshold < 0 || math.IsNaN(p.Threshold) {
		return errors.New("relevance threshold must be >= 0")
	}
	if p.GlobalSymbols < 0 || p.OpenItems < 0 || p.Links < 0 {
		return errors.New("relevance caps must be >= 0")
	}
	return nil
}

// ScoredSymbol is a global symbol with its relevance score
type ScoredSymbol struct {
	types.GlobalSymbol
	Score float64 `json:"score"`
}

// ScoredOpenItem is an open item with its relevance score
type ScoredOpenItem struct {
	types.OpenItem
	Score float64 `json:"score"`
}

// ScoredLink is a cross-file link with its relevance score
type ScoredLink struct {
	types.CrossFileLink
	Score float64 `json:"score"`
}

// Scored is the ranked, capped selection for one target together with scores
type Scored struct {
	Target        string           `json:"target"`
	GlobalSymbols []ScoredSymbol   `json:"global_symbols"`
	OpenItems     []ScoredOpenItem `json:"open_items"`
	Links         []ScoredLink     `json:"links"`
}

// Engine ranks one ProjectMemory snapshot against target files. It is
// read-only after construction and safe for concurrent queries.
type Engine struct {
	pm       types.ProjectMemory
	policy   Policy
	imported map[string]map[string]struct{}
}

// NewEngine precomputes each file's imported-symbol set for pm
func NewEngine(pm types.ProjectMemory, policy Policy) *Engine {
	imported := make(map[string]map[string]struct{}, len(pm.Files))
	for i := range pm.Files {
		imported[pm.Files[i].Path] = memory.CandidateSet(&pm.Files[i])
	}
	return &Engine{pm: pm, policy: policy, imported: imported}
}

// Policy returns the engine's policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// RelevantFor returns the bounded subset of the snapshot relevant to target
func (e *Engine) RelevantFor(target string) types.RelevantMemory {
	s := e.Score(target)

	out := types.RelevantMemory{
		FileCount:         e.pm.FileCount,
		UniqueSymbolCount: e.pm.UniqueSymbolCount,
		GlobalSymbols:     make([]types.GlobalSymbol, 0, len(s.GlobalSymbols)),
		OpenItems:         make([]types.OpenItem, 0, len(s.OpenItems)),
		Links:             make([]types.CrossFileLink, 0, len(s.Links)),
	}
	for _, v := range s.GlobalSymbols {
		out.GlobalSymbols = append(out.GlobalSymbols, v.GlobalSymbol)
	}
	for _, v := range s.OpenItems {
		out.OpenItems = append(out.OpenItems, v.OpenItem)
	}
	for _, v := range s.Links {
		out.Links = append(out.Links, v.CrossFileLink)
	}
	return out
}

// Score ranks every entry of the snapshot for target, dropping entries below
// the threshold and keeping the top entries per category. Ties keep the
// snapshot order.
func (e *Engine) Score(target string) Scored {
	q := e.newQuery(target)

	var s Scored
	s.Target = q.target

	for _, sym := range e.pm.GlobalSymbols {
		if score := q.symbol(&sym); score >= e.policy.Threshold {
			s.GlobalSymbols = append(s.GlobalSymbols, ScoredSymbol{GlobalSymbol: sym, Score: score})
		}
	}
	for _, item := range e.pm.OpenItems {
		if score := q.openItem(&item); score >= e.policy.Threshold {
			s.OpenItems = append(s.OpenItems, ScoredOpenItem{OpenItem: item, Score: score})
		}
	}
	for _, link := range e.pm.Links {
		if score := q.link(&link); score >= e.policy.Threshold {
			s.Links = append(s.Links, ScoredLink{CrossFileLink: link, Score: score})
		}
	}

	slices.SortStableFunc(s.GlobalSymbols, func(a, b ScoredSymbol) int { return byScoreDesc(a.Score, b.Score) })
	slices.SortStableFunc(s.OpenItems, func(a, b ScoredOpenItem) int { return byScoreDesc(a.Score, b.Score) })
	slices.SortStableFunc(s.Links, func(a, b ScoredLink) int { return byScoreDesc(a.Score, b.Score) })

	s.GlobalSymbols = topK(s.GlobalSymbols, e.policy.GlobalSymbols)
	s.OpenItems = topK(s.OpenItems, e.policy.OpenItems)
	s.Links = topK(s.Links, e.policy.Links)
	return s
}

// RelevantMemoryFor builds a one-off engine with the default policy
func RelevantMemoryFor(pm types.ProjectMemory, target string) types.RelevantMemory {
	return NewEngine(pm, DefaultPolicy()).RelevantFor(target)
}

func byScoreDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

func topK[T any](s []T, k int) []T {
	if len(s) > k {
		return s[:k]
	}
	return s
}

// query holds the per-target state of one scoring pass
type query struct {
	target    string
	targetDir string
	imported  map[string]struct{}
}

func (e *Engine) newQuery(target string) *query {
	target = normalizePath(target)
	return &query{
		target:    target,
		targetDir: parentDir(target),
		imported:  e.imported[target],
	}
}

func (q *query) isImported(name string) bool {
	_, ok := q.imported[name]
	return ok
}

func (q *query) symbol(sym *types.GlobalSymbol) float64 {
	score := 0.0
	if slices.Contains(sym.DefinedIn, q.target) {
		score += symbolDefinedWeight
	}
	if q.isImported(sym.Name) {
		score += symbolImportedWeight
	}
	for _, p := range sym.DefinedIn {
		score += q.proximity(p, symbolSameDirWeight, symbolSubdirWeight)
	}

	// dampen ubiquitous names such as main or new
	if n := len(sym.DefinedIn); n > 0 {
		score *= 1 / (1 + math.Log10(float64(n)))
	}
	return score
}

func (q *query) openItem(item *types.OpenItem) float64 {
	score := 0.0
	if slices.Contains(item.Files, q.target) {
		score += itemInvolvedWeight
	}
	if q.isImported(item.Symbol) {
		score += itemImportedWeight
	}
	for _, p := range item.Files {
		score += q.proximity(p, itemSameDirWeight, itemSubdirWeight)
	}
	return score
}

func (q *query) link(link *types.CrossFileLink) float64 {
	score := 0.0
	if link.FromFile == q.target || link.ToFile == q.target {
		score += linkInvolvedWeight
	}
	if q.isImported(link.Symbol) {
		score += linkImportedWeight
	}

	fromDir, toDir := parentDir(link.FromFile), parentDir(link.ToFile)
	switch {
	case fromDir == q.targetDir || toDir == q.targetDir:
		score += linkSameDirWeight
	case hasDirPrefix(fromDir, q.targetDir) || hasDirPrefix(toDir, q.targetDir):
		score += linkSubdirWeight
	}
	return score
}

func (q *query) proximity(p string, same, sub float64) float64 {
	dir := parentDir(p)
	switch {
	case dir == q.targetDir:
		return same
	case hasDirPrefix(dir, q.targetDir):
		return sub
	default:
		return 0
	}
}

// normalizePath converts p to a cleaned, slash-separated relative path
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	return strings.TrimPrefix(p, "./")
}

// parentDir returns the directory part of p, or "" for a bare file name
func parentDir(p string) string {
	dir := path.Dir(strings.ReplaceAll(p, "\\", "/"))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// hasDirPrefix reports whether dir equals prefix or lies beneath it, comparing
// whole path components. The empty prefix matches every directory.
func hasDirPrefix(dir, prefix string) bool {
	if prefix == "" {
		return true
	}
	return dir == prefix || strings.HasPrefix(dir, prefix+"/")
}
