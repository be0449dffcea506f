// Package mcpserver exposes a ToolBox over the Model Context Protocol so
// external MCP clients can call the networking tools directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/germanamz/postcraft/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server serves tools over MCP using the official Go SDK.
type Server struct {
	server *mcp.Server
	logger *slog.Logger
	names  []string
}

// New creates a Server advertising the given implementation name and version.
func New(name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		logger: logger,
	}
}

// FromToolBox creates a Server with every tool of tb registered.
func FromToolBox(name, version string, tb *toolbox.ToolBox, logger *slog.Logger) *Server {
	s := New(name, version, logger)
	s.Register(tb.Tools()...)
	return s
}

// Register adds tools to the server.
func (s *Server) Register(tools ...toolbox.Tool) {
	for _, t := range tools {
		s.server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, s.handler(t))
		s.names = append(s.names, t.Name)
	}
}

// Names lists registered tool names in registration order.
func (s *Server) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Serve reads requests from in and writes responses to out until ctx is
// cancelled or the transport closes. The CLI passes stdin and stdout.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server listening", "tools", len(s.names))

	return s.run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	})
}

func (s *Server) run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// handler adapts a toolbox handler. Handler errors become IsError results so
// the client sees them as tool output rather than protocol failures.
func (s *Server) handler(t toolbox.Tool) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.Params.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}

		result, err := t.Handler(ctx, args)
		if err != nil {
			s.logger.Warn("mcp tool failed", "tool", t.Name, "error", err)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		s.logger.Debug("mcp tool called", "tool", t.Name)

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result}},
		}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
