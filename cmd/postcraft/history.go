package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/germanamz/postcraft/cmd/postcraft/internal/format"
	"github.com/germanamz/postcraft/pkg/history"
)

// openHistory opens the run store named by the configuration without
// building the engine.
func (a *app) openHistory() (*history.Store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	if !cfg.History.Enabled {
		return nil, errors.New("history is disabled in the configuration")
	}

	return history.Open(cfg.History.Path)
}

func (a *app) runHistory(ctx context.Context, args []string, limit int) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	store, err := a.openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	switch args[0] {
	case "list":
		return a.historyList(ctx, store, limit)
	case "show":
		if len(args) != 2 {
			return errors.New("usage: postcraft history show <id>")
		}
		return a.historyShow(ctx, store, args[1])
	case "diff":
		if len(args) != 3 {
			return errors.New("usage: postcraft history diff <a> <b>")
		}
		diff, err := store.Diff(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		if diff == "" {
			fmt.Fprintln(a.out, "The posts are identical.")
			return nil
		}
		fmt.Fprint(a.out, diff)
		return nil
	default:
		return fmt.Errorf("unknown history command %q", args[0])
	}
}

func (a *app) historyList(ctx context.Context, store *history.Store, limit int) error {
	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No saved runs.")
		return nil
	}

	for _, r := range runs {
		fmt.Fprintf(a.out, "%s  %s  %s  %s  %s\n",
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			format.PadRight(format.Truncate(r.Name, 20), 20),
			format.PadRight(r.ContentType, 12),
			format.Truncate(strings.Join(r.TargetCompanies, ", "), 40),
		)
	}

	return nil
}

func (a *app) historyShow(ctx context.Context, store *history.Store, id string) error {
	r, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s · %s · %s\n", r.Name, r.ContentType, r.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintln(a.out, format.Rule("-", 40))

	if a.fancy() {
		fmt.Fprintln(a.out, format.RenderMarkdown(r.Output, a.width()))
	} else {
		fmt.Fprintln(a.out, r.Output)
	}

	for _, img := range r.Images {
		fmt.Fprintf(a.out, "  %s\n", img)
	}

	return nil
}
