// Package docs generates Markdown documentation for an indexed project.
//
// A run writes one summary per source file and, when project memory
// changed, a project summary built from those file summaries and an
// architecture document built from a project digest:
//
//	<output>/docs/summary.md
//	<output>/docs/architecture.md
//	<output>/docs/files/<path>/summary.md
//	<output>/docs/files/<path>/docs.md    (with Options.Documentation)
//
// Files outside the run's regeneration set keep their existing documents.
package docs
