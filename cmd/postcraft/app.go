package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/germanamz/postcraft/cmd/postcraft/internal/format"
	"github.com/germanamz/postcraft/cmd/postcraft/internal/progress"
	"github.com/germanamz/postcraft/cmd/postcraft/internal/styles"
	"github.com/germanamz/postcraft/pkg/brief"
	"github.com/germanamz/postcraft/pkg/engine"
	"github.com/joho/godotenv"
	"golang.org/x/term"
)

// options are the flags shared by every command.
type options struct {
	configPath string
	envFile    string
	verbose    bool
	plain      bool
	mode       string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "path to configuration file (default: .postcraft/config.yaml, postcraft.yaml, or the built-in config)")
	fs.StringVar(&o.envFile, "env", ".env", "path to .env file (ignored if missing)")
	fs.BoolVar(&o.verbose, "verbose", false, "log debug output to stderr")
	fs.BoolVar(&o.plain, "plain", false, "print plain text without colours, markdown rendering or the progress view")
	fs.StringVar(&o.mode, "mode", "", "skip the prompt: e runs the examples, i runs interactive mode")
}

// app carries the streams and settings of one invocation.
type app struct {
	opts   options
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	tty    bool
	logger *slog.Logger

	// newEngine builds the engine; tests replace it.
	newEngine func(ctx context.Context, cfg engine.Config, opts ...engine.Option) (*engine.Engine, error)
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{in: in, out: out, errOut: errOut, newEngine: engine.New}

	cmd := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("postcraft", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		fmt.Fprint(errOut, usage)
		fs.PrintDefaults()
	}
	a.opts.register(fs)

	var force bool
	var limit int
	switch cmd {
	case "init":
		fs.BoolVar(&force, "force", false, "overwrite an existing config file")
	case "history":
		fs.IntVar(&limit, "limit", 20, "number of runs to list")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	a.setup()

	if err := loadDotEnv(a.opts.envFile); err != nil {
		return err
	}

	switch cmd {
	case "":
		return a.runDefault(ctx)
	case "examples":
		return a.runExamples(ctx)
	case "init":
		return a.runInit(force)
	case "agents":
		return a.runAgents(ctx)
	case "history":
		return a.runHistory(ctx, fs.Args(), limit)
	case "mcp":
		return a.runMCP(ctx)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) setup() {
	if f, ok := a.out.(*os.File); ok {
		a.tty = term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
	}

	level := slog.LevelWarn
	if a.opts.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
}

// fancy reports whether output may use colours, markdown and the live view.
func (a *app) fancy() bool {
	return a.tty && !a.opts.plain
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfigPath picks the config file: explicit flag, then
// .postcraft/config.yaml, then postcraft.yaml. An empty result means the
// built-in configuration.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	for _, p := range []string{filepath.Join(".postcraft", "config.yaml"), "postcraft.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

func (a *app) loadConfig() (engine.Config, error) {
	path := resolveConfigPath(a.opts.configPath)
	if path == "" {
		a.logger.Debug("using built-in configuration")
		return engine.DefaultConfig()
	}

	a.logger.Debug("loading configuration", "path", path)
	return engine.LoadConfig(path)
}

// openEngine loads the configuration and builds the engine. requireKeys
// rejects providers without an API key up front.
func (a *app) openEngine(ctx context.Context, requireKeys bool) (*engine.Engine, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	if missing := cfg.MissingKeys(); requireKeys && len(missing) > 0 {
		return nil, fmt.Errorf("provider %q has no api_key; set GOOGLE_API_KEY (or the variable your config references) in the environment or .env", missing[0])
	}

	return a.newEngine(ctx, cfg, engine.WithLogger(a.logger))
}

func (a *app) runDefault(ctx context.Context) error {
	mode, err := a.askMode(ctx)
	if err != nil {
		return err
	}

	if mode == modeExamples {
		return a.runExamples(ctx)
	}
	return a.runInteractive(ctx)
}

func (a *app) runExamples(ctx context.Context) error {
	eng, err := a.openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	a.title("🎯 LinkedIn Networking Content Creator - Examples", "=", 60)

	for i, ex := range brief.Examples() {
		fmt.Fprintln(a.out)
		a.title(fmt.Sprintf("📚 EXAMPLE %d: %s", i+1, ex.Title), "-", 40)

		res, err := a.generate(ctx, eng, ex.Request)
		if err != nil {
			return err
		}
		a.printResult(res, false)
	}

	return nil
}

func (a *app) runInteractive(ctx context.Context) error {
	eng, err := a.openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	a.title("🚀 LinkedIn Networking Content Creator", "=", 50)

	req, err := a.askRequest(ctx)
	if err != nil {
		return err
	}

	res, err := a.generate(ctx, eng, req)
	if err != nil {
		return err
	}

	a.printResult(res, true)

	return nil
}

func (a *app) runAgents(ctx context.Context) error {
	eng, err := a.openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	width := 0
	for _, e := range eng.Agents() {
		width = max(width, len(e.Name))
	}
	for _, e := range eng.Agents() {
		fmt.Fprintf(a.out, "%s  %s\n", format.PadRight(e.Name, width), format.Truncate(e.Description, 80))
	}

	return nil
}

func (a *app) runInit(force bool) error {
	path := a.opts.configPath
	if path == "" {
		path = "postcraft.yaml"
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, engine.DefaultConfigYAML(), 0o600); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Wrote %s\n", path)

	return nil
}

// generate runs the engine with the progress view, or plain log lines when
// the output is not a terminal.
func (a *app) generate(ctx context.Context, eng *engine.Engine, req brief.Request) (engine.Result, error) {
	if a.fancy() {
		return progress.Run(ctx, eng.Events(), "Creating your LinkedIn post", eng.Members(), a.errOut, func(ctx context.Context) (engine.Result, error) {
			return eng.Generate(ctx, req)
		})
	}

	stop := progress.Log(eng.Events(), a.errOut)
	defer stop()

	return eng.Generate(ctx, req)
}

func (a *app) title(text, rule string, width int) {
	if a.fancy() {
		fmt.Fprintln(a.out, styles.TitleStyle.Render(text))
	} else {
		fmt.Fprintln(a.out, text)
	}
	fmt.Fprintln(a.out, format.Rule(rule, width))
}

func (a *app) printResult(res engine.Result, banner bool) {
	if banner {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, format.Rule("=", 60))
		fmt.Fprintln(a.out, "🎯 GENERATED LINKEDIN CONTENT")
		fmt.Fprintln(a.out, format.Rule("=", 60))
	}

	if a.fancy() {
		fmt.Fprintln(a.out, format.RenderMarkdown(res.Output, a.width()))
	} else {
		fmt.Fprintln(a.out, res.Output)
	}

	if paths := res.ImagePaths(); len(paths) > 0 {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Visuals:")
		for _, p := range paths {
			fmt.Fprintf(a.out, "  %s\n", p)
		}
	}

	footer := fmt.Sprintf("%s tokens · %s", format.FmtTokens(res.Usage.Total()), format.FmtDuration(res.Duration))
	if res.Saved {
		footer += " · saved as " + res.RunID
	}

	fmt.Fprintln(a.out)
	if a.fancy() {
		fmt.Fprintln(a.out, styles.DimStyle.Render(footer))
	} else {
		fmt.Fprintln(a.out, footer)
	}
}

func (a *app) width() int {
	if f, ok := a.out.(*os.File); ok && a.tty {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 { //nolint:gosec // fd fits in int
			return min(w, 100)
		}
	}
	return 100
}
