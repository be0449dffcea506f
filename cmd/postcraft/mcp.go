package main

import (
	"context"

	"github.com/germanamz/postcraft/pkg/tools/mcpserver"
)

// runMCP exposes the networking toolbox to MCP clients over stdio.
func (a *app) runMCP(ctx context.Context) error {
	eng, err := a.openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	srv := mcpserver.FromToolBox("postcraft", version, eng.Toolbox(), a.logger)

	return srv.Serve(ctx, a.in, a.out)
}
