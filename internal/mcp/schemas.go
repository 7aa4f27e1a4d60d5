package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the project root",
	}
}

func fileProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Source file, relative to the project root or absolute inside it",
	}
}

// indexProjectTool returns the tool definition for index_project
func indexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_project",
		Description: "Extract per-file facts and rebuild the project memory, reusing cached facts for unchanged files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-extract every file and rewrite the snapshots",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// getRelevantMemoryTool returns the tool definition for get_relevant_memory
func getRelevantMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_relevant_memory",
		Description: "Rank the project's global symbols, open items and cross-file links by relevance to one file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"file": fileProperty(),
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum relevance score (default from configuration)",
					"minimum":     0,
				},
			},
			Required: []string{"path", "file"},
		},
	}
}

// getProjectMemoryTool returns the tool definition for get_project_memory
func getProjectMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_project_memory",
		Description: "Return the latest project memory snapshot",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"include_files": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include every per-file memory",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchSymbolsTool returns the tool definition for search_symbols
func searchSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_symbols",
		Description: "Search extracted symbol names and signatures (sqlite backend only)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Text matched against symbol names and signatures",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// summarizeFileTool returns the tool definition for summarize_file
func summarizeFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "summarize_file",
		Description: "Generate Markdown for one file from its facts, chunks and relevant project memory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"file": fileProperty(),
				"task": map[string]interface{}{
					"type":        "string",
					"description": "Generation task",
					"enum":        []string{"summarize", "documentation"},
					"default":     "summarize",
				},
			},
			Required: []string{"path", "file"},
		},
	}
}

// generateDocsTool returns the tool definition for generate_docs
func generateDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_docs",
		Description: "Index the project, then write file summaries for changed files and rebuild the project summary and architecture when project memory changed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"documentation": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, also write reference documentation for each regenerated file",
					"default":     false,
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-extract every file and regenerate every document",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics and health for a project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
			},
			Required: []string{"path"},
		},
	}
}
