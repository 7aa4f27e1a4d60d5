package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codememory-mcp/internal/docs"
	"github.com/dshills/codememory-mcp/internal/generator"
	"github.com/dshills/codememory-mcp/internal/indexer"
	"github.com/dshills/codememory-mcp/internal/relevance"
	"github.com/dshills/codememory-mcp/internal/storage"
	"github.com/dshills/codememory-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Specified path does not contain source files
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Project not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeUnavailable        = -32005 // Feature disabled by configuration
	ErrorCodeGenerationFailed   = -32006 // Generation backend failed or refused
)

// handleIndexProject handles the index_project tool invocation
func (s *Server) handleIndexProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.projectArgs(request)
	if err != nil {
		return nil, err
	}

	force := getBoolDefault(args, "force", false)
	stats, err := s.indexer.IndexProject(ctx, path, &indexer.Options{Force: force})
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": path,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":             true,
		"run_id":              stats.RunID,
		"unchanged":           stats.Unchanged,
		"files_discovered":    stats.FilesDiscovered,
		"files_extracted":     stats.FilesExtracted,
		"files_reused":        stats.FilesReused,
		"files_failed":        stats.FilesFailed,
		"files_pruned":        stats.FilesPruned,
		"files_to_regenerate": stats.FilesToRegenerate,
		"symbols_extracted":   stats.SymbolsExtracted,
		"chunks_created":      stats.ChunksCreated,
		"unique_symbols":      stats.UniqueSymbols,
		"open_items":          stats.OpenItems,
		"links":               stats.Links,
		"duration_ms":         stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		response["errors"] = stats.ErrorMessages
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetRelevantMemory handles the get_relevant_memory tool invocation
func (s *Server) handleGetRelevantMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.projectArgs(request)
	if err != nil {
		return nil, err
	}
	target, err := fileArg(args, path)
	if err != nil {
		return nil, err
	}

	policy := s.policy
	policy.Threshold = getFloatDefault(args, "threshold", policy.Threshold)
	if err := policy.Validate(); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid threshold", map[string]interface{}{
			"param":  "threshold",
			"reason": err.Error(),
		})
	}

	pm, err := s.projectMemory(ctx, path)
	if err != nil {
		return nil, err
	}

	scored := relevance.NewEngine(*pm, policy).Score(target)
	indexer.RelevanceQueries.Inc()

	response := map[string]interface{}{
		"file":                target,
		"threshold":           policy.Threshold,
		"file_count":          pm.FileCount,
		"unique_symbol_count": pm.UniqueSymbolCount,
		"global_symbols":      scored.GlobalSymbols,
		"open_items":          scored.OpenItems,
		"links":               scored.Links,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetProjectMemory handles the get_project_memory tool invocation
func (s *Server) handleGetProjectMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.projectArgs(request)
	if err != nil {
		return nil, err
	}

	pm, err := s.projectMemory(ctx, path)
	if err != nil {
		return nil, err
	}
	if !getBoolDefault(args, "include_files", false) {
		pm.Files = nil
	}
	return mcp.NewToolResultText(formatJSON(pm)), nil
}

// handleSearchSymbols handles the search_symbols tool invocation
func (s *Server) handleSearchSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.projectArgs(request)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	if s.storage == nil {
		return nil, newMCPError(ErrorCodeUnavailable, "symbol search requires the sqlite storage backend", nil)
	}

	project, err := s.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notIndexedError(path)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	symbols, err := s.storage.SearchSymbols(ctx, project.ID, query, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	files, err := s.storage.ListFiles(ctx, project.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list files", map[string]interface{}{
			"error": err.Error(),
		})
	}
	paths := make(map[int64]string, len(files))
	for _, f := range files {
		paths[f.ID] = f.FilePath
	}

	results := make([]map[string]interface{}, 0, len(symbols))
	for _, sym := range symbols {
		results = append(results, map[string]interface{}{
			"name":       sym.Name,
			"kind":       sym.Kind,
			"file":       paths[sym.FileID],
			"line":       sym.Line,
			"confidence": sym.Confidence,
			"signature":  sym.Signature,
		})
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSummarizeFile handles the summarize_file tool invocation
func (s *Server) handleSummarizeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.projectArgs(request)
	if err != nil {
		return nil, err
	}
	target, err := fileArg(args, path)
	if err != nil {
		return nil, err
	}

	task, err := generator.ParseTask(getStringDefault(args, "task", string(generator.TaskSummarize)))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid task", map[string]interface{}{
			"param":  "task",
			"reason": err.Error(),
		})
	}
	if task.ProjectScoped() {
		return nil, newMCPError(ErrorCodeInvalidParams, "task needs the whole project; use generate_docs", map[string]interface{}{
			"param": "task",
			"value": string(task),
		})
	}

	if s.summarizer == nil {
		return nil, newMCPError(ErrorCodeUnavailable, "generator is not configured", nil)
	}

	fc, err := s.indexer.FileContext(ctx, path, target, s.policy)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newMCPError(ErrorCodeInvalidParams, "file not found", map[string]interface{}{
				"param": "file",
				"value": target,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to build file context", map[string]interface{}{
			"error": err.Error(),
		})
	}

	summary, err := s.summarizer.SummarizeFile(ctx, task, fc.Memory, fc.Relevant, fc.Index)
	if errors.Is(err, generator.ErrTaskScope) {
		return nil, newMCPError(ErrorCodeInvalidParams, "task does not apply to a single file", map[string]interface{}{
			"param": "task",
			"value": string(task),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeGenerationFailed, "generation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"file":            summary.Path,
		"task":            summary.Task,
		"profile":         summary.Profile,
		"memory_pressure": summary.Pressure,
		"duration_ms":     summary.Duration.Milliseconds(),
		"output":          summary.Output,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGenerateDocs handles the generate_docs tool invocation
func (s *Server) handleGenerateDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := s.projectArgs(request)
	if err != nil {
		return nil, err
	}
	if s.docs == nil {
		return nil, newMCPError(ErrorCodeUnavailable, "generator is not configured", nil)
	}

	force := getBoolDefault(args, "force", false)
	stats, err := s.indexer.IndexProject(ctx, path, &indexer.Options{Force: force})
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": path,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	report, err := s.docs.Generate(ctx, path, stats, docs.Options{
		Documentation: getBoolDefault(args, "documentation", false),
		Force:         force,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeGenerationFailed, "documentation generation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"run_id":              stats.RunID,
		"files_to_regenerate": stats.FilesToRegenerate,
		"needs_regeneration":  stats.NeedsRegeneration,
		"summaries_generated": report.SummariesGenerated,
		"summaries_reused":    report.SummariesReused,
		"docs_generated":      report.DocsGenerated,
		"project_unchanged":   report.ProjectUnchanged,
		"docs_dir":            s.docs.Dir(path),
		"duration_ms":         report.Duration.Milliseconds(),
	}
	if len(report.Skipped) > 0 {
		response["skipped"] = report.Skipped
	}
	if report.SummaryPath != "" {
		response["summary_path"] = report.SummaryPath
	}
	if report.ArchitecturePath != "" {
		response["architecture_path"] = report.ArchitecturePath
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, path, err := s.projectArgs(request)
	if err != nil {
		return nil, err
	}

	if s.storage == nil {
		return s.jsonStatus(ctx, path)
	}

	project, err := s.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultText(formatJSON(notIndexedStatus(path))), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get project status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed": true,
		"backend": "sqlite",
		"project": map[string]interface{}{
			"path":            project.RootPath,
			"index_version":   project.IndexVersion,
			"last_run_id":     project.LastRunID,
			"last_indexed_at": project.LastIndexedAt.Format(time.RFC3339),
		},
		"statistics": map[string]interface{}{
			"files_count":     status.FilesCount,
			"symbols_count":   status.SymbolsCount,
			"imports_count":   status.ImportsCount,
			"chunks_count":    status.ChunksCount,
			"snapshots_count": status.SnapshotsCount,
			"languages":       status.Languages,
			"index_size_mb":   fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"snapshot_available":  status.Health.SnapshotAvailable,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// jsonStatus summarizes a project indexed with the JSON cache backend
func (s *Server) jsonStatus(ctx context.Context, path string) (*mcp.CallToolResult, error) {
	pm, err := s.indexer.LoadProjectMemory(ctx, path)
	if errors.Is(err, os.ErrNotExist) {
		return mcp.NewToolResultText(formatJSON(notIndexedStatus(path))), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read project memory", map[string]interface{}{
			"error": err.Error(),
		})
	}

	memoryPath := filepath.Join(s.indexer.OutputDir(path), indexer.MemoryFileName)
	response := map[string]interface{}{
		"indexed": true,
		"backend": "json",
		"project": map[string]interface{}{
			"path":        path,
			"memory_file": memoryPath,
		},
		"statistics": map[string]interface{}{
			"files_count":         pm.FileCount,
			"unique_symbol_count": pm.UniqueSymbolCount,
			"open_items":          len(pm.OpenItems),
			"links":               len(pm.Links),
		},
	}
	if info, err := os.Stat(memoryPath); err == nil {
		response["project"].(map[string]interface{})["last_indexed_at"] = info.ModTime().Format(time.RFC3339)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// projectArgs extracts the arguments map and the validated project path
func (s *Server) projectArgs(request mcp.CallToolRequest) (map[string]interface{}, string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := s.validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrNoSourceFiles) {
			code = ErrorCodeProjectNotFound
		}
		return nil, "", newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return args, filepath.Clean(path), nil
}

// fileArg extracts the file parameter as a path relative to root
func fileArg(args map[string]interface{}, root string) (string, error) {
	file, ok := args["file"].(string)
	if !ok || file == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "file parameter is required", map[string]interface{}{
			"param":  "file",
			"reason": "missing or empty",
		})
	}
	rel, err := indexer.RelPath(root, file)
	if err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid file", map[string]interface{}{
			"param":  "file",
			"reason": err.Error(),
		})
	}
	return rel, nil
}

// projectMemory loads the latest project memory, mapping a missing snapshot
// to ErrorCodeNotIndexed
func (s *Server) projectMemory(ctx context.Context, path string) (*types.ProjectMemory, error) {
	pm, err := s.indexer.LoadProjectMemory(ctx, path)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrNotFound) {
		return nil, notIndexedError(path)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load project memory", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return pm, nil
}

func notIndexedError(path string) error {
	return newMCPError(ErrorCodeNotIndexed, "project not indexed", map[string]interface{}{
		"path": path,
		"hint": "run the index_project tool first",
	})
}

func notIndexedStatus(path string) map[string]interface{} {
	return map[string]interface{}{
		"indexed": false,
		"path":    path,
		"message": "Project not indexed. Use index_project tool to index this project.",
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is an absolute, readable directory holding
// at least one file the walker would index
func (s *Server) validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	w := s.indexer.Walker()
	found := false
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != path && w.ExcludeDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return nil
		}
		if w.MatchFile(filepath.ToSlash(rel)) {
			found = true
			return fs.SkipAll
		}
		return nil
	})

	if !found {
		return ErrNoSourceFiles
	}
	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a numeric parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNoSourceFiles   = errors.New("directory does not contain supported source files")
)
