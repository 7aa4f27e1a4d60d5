package types

// RelevantMemory is the bounded subset of a ProjectMemory selected for one
// target file
type RelevantMemory struct {
	FileCount         int             `json:"file_count"`
	UniqueSymbolCount int             `json:"unique_symbol_count"`
	GlobalSymbols     []GlobalSymbol  `json:"global_symbols"`
	OpenItems         []OpenItem      `json:"open_items"`
	Links             []CrossFileLink `json:"links"`
}

// IsEmpty reports whether nothing survived the relevance threshold
func (r *RelevantMemory) IsEmpty() bool {
	return len(r.GlobalSymbols) == 0 && len(r.OpenItems) == 0 && len(r.Links) == 0
}

// Pressure is a rough size signal used to decide prompt compaction
func (r *RelevantMemory) Pressure() int {
	return len(r.GlobalSymbols) + 2*len(r.OpenItems) + len(r.Links)
}
