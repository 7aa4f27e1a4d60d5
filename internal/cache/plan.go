package cache

import "sort"

// Decision is the recompute verdict for one file in a run
type Decision struct {
	Path   string
	Reason Reason
}

// Recompute reports whether the file must be re-extracted
func (d Decision) Recompute() bool {
	return d.Reason != ReasonUnchanged
}

// Plan aggregates the per-file decisions of a single run
type Plan struct {
	decisions []Decision
	pruned    []string
	failed    []string
}

// Add records a decision
func (p *Plan) Add(path string, reason Reason) {
	p.decisions = append(p.decisions, Decision{Path: path, Reason: reason})
}

// AddPruned records files that disappeared since the previous run
func (p *Plan) AddPruned(paths ...string) {
	p.pruned = append(p.pruned, paths...)
}

// AddFailed records previously cached files that could not be read this
// run. Their facts leave the project memory, so project outputs are stale.
func (p *Plan) AddFailed(paths ...string) {
	p.failed = append(p.failed, paths...)
}

// Decisions returns the recorded decisions ordered by path
func (p *Plan) Decisions() []Decision {
	out := make([]Decision, len(p.decisions))
	copy(out, p.decisions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Regenerate returns the sorted paths that need recomputation
func (p *Plan) Regenerate() []string {
	var paths []string
	for _, d := range p.decisions {
		if d.Recompute() {
			paths = append(paths, d.Path)
		}
	}
	sort.Strings(paths)
	return paths
}

// Reused returns the number of files served from the cache
func (p *Plan) Reused() int {
	n := 0
	for _, d := range p.decisions {
		if !d.Recompute() {
			n++
		}
	}
	return n
}

// Pruned returns the sorted paths dropped from the cache
func (p *Plan) Pruned() []string {
	out := append([]string(nil), p.pruned...)
	sort.Strings(out)
	return out
}

// Failed returns the sorted paths recorded with AddFailed
func (p *Plan) Failed() []string {
	out := append([]string(nil), p.failed...)
	sort.Strings(out)
	return out
}

// NeedsRegeneration is the OR over all per-file decisions. A file that
// disappeared or dropped out after a read failure also invalidates
// project-wide outputs.
func (p *Plan) NeedsRegeneration() bool {
	if len(p.pruned) > 0 || len(p.failed) > 0 {
		return true
	}
	for _, d := range p.decisions {
		if d.Recompute() {
			return true
		}
	}
	return false
}
