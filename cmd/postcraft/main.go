package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/postcraft/cmd/postcraft/internal/format"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `Usage: postcraft [flags]
       postcraft <command> [flags]

Without a command postcraft asks whether to run the examples or to collect
your details interactively, then generates a LinkedIn networking post.

Commands:
  examples                Generate the example posts
  init                    Write the default configuration to --config
  agents                  List the configured agents
  history [flags] list    List saved runs
  history show <id>       Print a saved post
  history diff <a> <b>    Diff two saved posts
  mcp                     Serve the networking tools over MCP (stdio)

Flags:
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	format.IsDarkBG = lipgloss.HasDarkBackground()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
