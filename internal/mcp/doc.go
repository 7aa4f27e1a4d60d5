// Package mcp implements the Model Context Protocol (MCP) server for codememory.
//
// The server exposes the project memory to AI coding assistants over stdio:
//   - index_project: extract facts and rebuild the project memory
//   - get_relevant_memory: score project memory against one file
//   - get_project_memory: return the latest project memory snapshot
//   - search_symbols: search stored symbols (sqlite backend only)
//   - summarize_file: generate Markdown for one file through the generator
//   - generate_docs: index, then write file and project documents
//   - get_status: report index statistics and health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Every tool takes an absolute project "path". Results are JSON text content.
//
// # Basic Usage
//
//	codememory serve
//
// # Error Handling
//
// Failures are returned as *MCPError values carrying a JSON-RPC code:
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32001  Path holds no supported source files
//	-32002  Indexing already in progress
//	-32003  Project not indexed
//	-32004  Empty query
//	-32005  Feature disabled by configuration
//	-32006  Generation failed
package mcp
