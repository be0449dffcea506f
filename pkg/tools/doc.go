// Package tools provides the tool layer agents call into.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/postcraft/pkg/tools/toolbox]: Tool type and ToolBox for registering, listing, and calling tools
//   - [github.com/germanamz/postcraft/pkg/tools/schema]: JSON Schema reflection for typed tool inputs
//   - [github.com/germanamz/postcraft/pkg/tools/mcpserver]: exposes a ToolBox over the Model Context Protocol
//
// toolbox is the foundation; mcpserver is a thin wrapper around the official
// MCP Go SDK (github.com/modelcontextprotocol/go-sdk).
package tools
