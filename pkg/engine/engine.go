package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/germanamz/postcraft/pkg/agent"
	"github.com/germanamz/postcraft/pkg/brief"
	"github.com/germanamz/postcraft/pkg/chats/content"
	"github.com/germanamz/postcraft/pkg/history"
	"github.com/germanamz/postcraft/pkg/modeladapter"
	"github.com/germanamz/postcraft/pkg/modeladapter/usage"
	"github.com/germanamz/postcraft/pkg/networking"
	"github.com/germanamz/postcraft/pkg/research"
	"github.com/germanamz/postcraft/pkg/team"
	"github.com/germanamz/postcraft/pkg/tools/toolbox"
	"github.com/germanamz/postcraft/pkg/visuals"
	"github.com/google/uuid"
)

// Built-in toolbox names agents can reference.
const (
	ToolboxProfile  = networking.ProfileToolbox
	ToolboxCopy     = networking.CopyToolbox
	ToolboxResearch = "research"
	ToolboxVisuals  = "visuals"
)

// searchCachePrefix namespaces research results in Redis.
const searchCachePrefix = "postcraft:search"

var builtinToolboxNames = map[string]struct{}{
	ToolboxProfile:  {},
	ToolboxCopy:     {},
	ToolboxResearch: {},
	ToolboxVisuals:  {},
}

// Engine is the composition root that assembles providers, tools, agents and
// the team from configuration and exposes them through a frontend-agnostic
// API. Frontends observe activity through the EventBus.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	events     *EventBus
	registry   *agent.Registry
	completers map[string]modeladapter.Completer
	httpClient *http.Client
	now        func() time.Time

	research *research.Client
	cache    research.Cache
	images   visuals.Generator
	history  *history.Store
	browser  *networking.Browser

	mu sync.Mutex // Serialises Generate.
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithHTTPClient sets the client used for web research and profile fetches.
func WithHTTPClient(c *http.Client) Option { return func(e *Engine) { e.httpClient = c } }

// WithImageGenerator replaces the Gemini image model used by generate_image.
func WithImageGenerator(g visuals.Generator) Option { return func(e *Engine) { e.images = g } }

// WithClock sets the time source used in prompts.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New creates an Engine from the given configuration. It validates the config,
// creates provider adapters, opens the research cache and history database,
// and registers agent factories.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		logger:     slog.New(slog.DiscardHandler),
		events:     NewEventBus(),
		registry:   agent.NewRegistry(),
		completers: make(map[string]modeladapter.Completer, len(cfg.Providers)),
	}
	for _, o := range opts {
		o(e)
	}

	for _, pc := range cfg.Providers {
		c, err := buildCompleter(pc)
		if err != nil {
			return nil, fmt.Errorf("engine: provider %q: %w", pc.Name, err)
		}
		e.completers[pc.Name] = c
	}

	if cfg.Research.Enabled {
		if err := e.openResearch(ctx); err != nil {
			_ = e.Close()
			return nil, err
		}
	}

	if cfg.Visuals.Enabled && e.images == nil {
		pc := e.providerConfig(cfg.Visuals.Provider)
		if pc.Kind != "gemini" {
			_ = e.Close()
			return nil, fmt.Errorf("engine: visuals: provider %q must be of kind gemini, got %q", pc.Name, pc.Kind)
		}
		e.images = newGeminiAdapter(pc, cfg.Visuals.Model)
	}

	if cfg.Networking.FetchProfiles && cfg.Networking.Renderer == RendererChrome {
		e.browser = networking.NewBrowser(context.WithoutCancel(ctx), 0)
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.history = store
	}

	for _, ac := range cfg.Agents {
		if err := e.registerAgent(ac); err != nil {
			_ = e.Close()
			return nil, err
		}
	}

	return e, nil
}

func (e *Engine) openResearch(ctx context.Context) error {
	rc := e.cfg.Research

	ttl := time.Hour
	if rc.CacheTTL != "" {
		ttl, _ = time.ParseDuration(rc.CacheTTL) // Checked by Validate.
	}

	if rc.RedisURL != "" {
		cache, err := research.NewRedisCache(ctx, rc.RedisURL, searchCachePrefix)
		if err != nil {
			return fmt.Errorf("engine: research cache: %w", err)
		}
		e.cache = cache
	} else {
		e.cache = research.NewMemoryCache()
	}

	opts := []research.Option{
		research.WithCache(e.cache, ttl),
		research.WithLogger(e.logger),
	}
	if rc.MaxResults > 0 {
		opts = append(opts, research.WithMaxResults(rc.MaxResults))
	}
	if rc.Endpoint != "" {
		opts = append(opts, research.WithEndpoint(rc.Endpoint))
	}
	if e.httpClient != nil {
		opts = append(opts, research.WithHTTPClient(e.httpClient))
	}

	e.research = research.New(opts...)

	return nil
}

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// History returns the run history, or nil if history is disabled.
func (e *Engine) History() *history.Store { return e.history }

// Agents lists the registered agents.
func (e *Engine) Agents() []agent.Entry { return e.registry.List() }

// Members returns the team member names in run order.
func (e *Engine) Members() []string {
	return append([]string(nil), e.cfg.memberNames()...)
}

// Close releases the research cache, the history database and Chrome.
func (e *Engine) Close() error {
	if e.browser != nil {
		e.browser.Close()
	}

	var errs []error
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	if e.history != nil {
		errs = append(errs, e.history.Close())
	}
	return errors.Join(errs...)
}

// providerConfig returns the named provider, or the first one when name is
// empty.
func (e *Engine) providerConfig(name string) ProviderConfig {
	if name == "" {
		return e.cfg.Providers[0]
	}
	for _, p := range e.cfg.Providers {
		if p.Name == name {
			return p
		}
	}
	return ProviderConfig{}
}

func (e *Engine) completer(name string) (modeladapter.Completer, bool) {
	c, ok := e.completers[e.providerConfig(name).Name]
	return c, ok
}

// registerAgent creates a factory for the given agent config and registers it.
// Toolboxes are attached per run because some of them carry run state.
func (e *Engine) registerAgent(ac AgentConfig) error {
	completer, ok := e.completer(ac.Provider)
	if !ok {
		return fmt.Errorf("engine: agent %q: provider %q not found", ac.Name, ac.Provider)
	}

	var mw []agent.Middleware
	mw = append(mw, agent.Recovery())
	if ac.Timeout != "" {
		d, _ := time.ParseDuration(ac.Timeout) // Checked by Validate.
		mw = append(mw, agent.Timeout(d))
	}
	mw = append(mw, agent.Logger(e.logger, ac.Name), agent.OutputGuardrail(agent.NonEmpty))

	id := agent.Identity{
		Name:         ac.Name,
		Role:         ac.Role,
		Description:  ac.Description,
		Instructions: ac.Instructions,
	}
	opts := agent.Options{
		MaxIterations: ac.MaxIterations,
		Middleware:    mw,
		AddDatetime:   ac.AddDatetime,
		OnToolCall:    e.onToolCall,
		Now:           e.now,
	}

	e.registry.Register(ac.Name, ac.Description, func() *agent.Agent {
		return agent.New(id, completer, opts)
	})

	return nil
}

// Toolbox returns the tools that need no run state: profile analysis,
// company targeting, copywriting and web research. It backs "postcraft mcp".
func (e *Engine) Toolbox() *toolbox.ToolBox {
	tb := networking.ProfileTools(e.analyzer(networking.Seed{}))
	tb.Merge(networking.CopyTools(e.cfg.Networking.MaxHashtags))
	if e.research != nil {
		tb.Merge(e.research.Tools())
	}
	return tb
}

func (e *Engine) analyzer(seed networking.Seed) *networking.Analyzer {
	opts := []networking.AnalyzerOption{networking.WithLogger(e.logger)}
	switch {
	case e.browser != nil:
		opts = append(opts, networking.WithLoader(e.browser))
	case e.cfg.Networking.FetchProfiles:
		opts = append(opts, networking.WithFetch(e.httpClient))
	}
	return networking.NewAnalyzer(seed, opts...)
}

// Step is one member's contribution to a run.
type Step struct {
	Agent  string
	Output string
}

// Result is the outcome of Generate.
type Result struct {
	RunID    string
	Prompt   string
	Output   string
	Steps    []Step
	Images   []visuals.Asset
	Usage    usage.TokenCount
	Duration time.Duration
	Saved    bool // Persisted to history under RunID.
}

// ImagePaths returns the paths of the generated images.
func (r Result) ImagePaths() []string {
	paths := make([]string, len(r.Images))
	for i, a := range r.Images {
		paths[i] = a.Path
	}
	return paths
}

// Generate runs the content team for req and returns the final post. Only
// one Generate runs at a time per Engine.
func (e *Engine) Generate(ctx context.Context, req brief.Request) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req.ContentType = brief.NormalizeContentType(req.ContentType)
	req.TargetCompanies = brief.ParseCompanies(strings.Join(req.TargetCompanies, ","))
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	runID := uuid.NewString()
	ctx = withRunID(ctx, runID)
	start := time.Now()
	prompt := req.Prompt()

	e.publish(Event{Kind: EventRunStart, RunID: runID})
	e.logger.InfoContext(ctx, "run started", "run", runID, "mode", e.mode(), "content_type", req.ContentType)

	res, err := e.generate(ctx, runID, prompt, req)
	res.Duration = time.Since(start)
	if err != nil {
		e.publish(Event{Kind: EventError, RunID: runID, Data: err})
		e.publish(Event{Kind: EventRunEnd, RunID: runID, Duration: res.Duration})
		e.logger.ErrorContext(ctx, "run failed", "run", runID, "error", err)
		return Result{}, err
	}

	if e.history != nil {
		_, err := e.history.Save(ctx, history.Run{
			ID:              runID,
			Name:            req.Profile.Name,
			ContentType:     req.ContentType,
			TargetCompanies: req.TargetCompanies,
			Prompt:          prompt,
			Output:          res.Output,
			Images:          res.ImagePaths(),
			Usage:           res.Usage,
		})
		if err != nil {
			e.logger.WarnContext(ctx, "history save failed", "run", runID, "error", err)
		} else {
			res.Saved = true
			e.logger.InfoContext(ctx, "run saved", "run", runID)
		}
	}

	e.publish(Event{Kind: EventRunEnd, RunID: runID, Duration: res.Duration})

	return res, nil
}

func (e *Engine) generate(ctx context.Context, runID, prompt string, req brief.Request) (Result, error) {
	toolboxes, studio, err := e.runToolboxes(runID, req)
	if err != nil {
		return Result{}, err
	}

	members := make([]team.Member, 0, len(e.cfg.memberNames()))
	for _, name := range e.cfg.memberNames() {
		a, ok := e.registry.Spawn(name)
		if !ok {
			return Result{}, fmt.Errorf("engine: agent %q not found", name)
		}

		for _, tbName := range e.agentConfig(name).Toolboxes {
			if tb, ok := toolboxes[tbName]; ok {
				a.AddToolBoxes(tb)
			} else {
				e.logger.DebugContext(ctx, "toolbox disabled", "agent", name, "toolbox", tbName)
			}
		}

		a.Init()
		members = append(members, a)
	}

	tm, err := team.New(e.cfg.Team.Name, members, e.teamOptions(runID))
	if err != nil {
		return Result{}, fmt.Errorf("engine: %w", err)
	}

	before := e.usage()

	reply, err := tm.Run(ctx, prompt)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		RunID:  runID,
		Prompt: prompt,
		Output: strings.TrimSpace(reply.TextContent()),
		Usage:  minus(e.usage(), before),
	}

	for _, m := range tm.Shared().Since(1) {
		if m.Sender == tm.Name() {
			continue
		}
		res.Steps = append(res.Steps, Step{Agent: m.Sender, Output: m.TextContent()})
	}

	if studio != nil {
		res.Images = studio.Assets()
	}

	return res, nil
}

// runToolboxes builds the toolboxes for one run. The profile analyzer is
// seeded with the requester's own details and visuals are written under the
// run id.
func (e *Engine) runToolboxes(runID string, req brief.Request) (map[string]*toolbox.ToolBox, *visuals.Studio, error) {
	tbs := map[string]*toolbox.ToolBox{
		ToolboxProfile: networking.ProfileTools(e.analyzer(seedFrom(req.Profile))),
		ToolboxCopy:    networking.CopyTools(e.cfg.Networking.MaxHashtags),
	}

	if e.research != nil {
		tbs[ToolboxResearch] = e.research.Tools()
	}

	var studio *visuals.Studio
	if e.cfg.Visuals.Enabled && e.images != nil {
		dir := e.cfg.Visuals.OutputDir
		if dir == "" {
			dir = ".postcraft/visuals"
		}

		var err error
		studio, err = visuals.NewStudio(e.images, dir, runID[:8], e.cfg.Visuals.Formats, e.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("engine: %w", err)
		}
		tbs[ToolboxVisuals] = studio.Tools()
	}

	return tbs, studio, nil
}

func (e *Engine) teamOptions(runID string) team.Options {
	tc := e.cfg.Team
	opts := team.Options{
		Observer: func(ev team.Event) { e.publishTeamEvent(runID, ev) },
	}

	completer, _ := e.completer(tc.Provider)

	if tc.Mode == ModeCoordinate {
		opts.Coordinator = team.NewLLMCoordinator(completer, tc.MaxRounds, tc.Instructions)
	}

	if tc.Synthesize {
		opts.Leader = &team.Leader{
			Completer:       completer,
			Name:            tc.Name,
			Description:     tc.Description,
			Instructions:    tc.Instructions,
			SuccessCriteria: tc.SuccessCriteria,
			Markdown:        tc.Markdown,
			AddDatetime:     tc.AddDatetime,
			Now:             e.now,
		}
	}

	return opts
}

func (e *Engine) publishTeamEvent(runID string, ev team.Event) {
	out := Event{RunID: runID, Agent: ev.Member, Duration: ev.Duration}

	switch ev.Kind {
	case team.MemberStart:
		out.Kind = EventAgentStart
	case team.MemberEnd:
		out.Kind = EventAgentEnd
	case team.SynthesisStart:
		out.Kind = EventSynthesisStart
	case team.SynthesisEnd:
		out.Kind = EventSynthesisEnd
	}

	if ev.Err != nil {
		out.Data = ev.Err
	}

	e.publish(out)
}

func (e *Engine) publish(ev Event) {
	ev.Timestamp = time.Now()
	e.events.Publish(ev)
}

func (e *Engine) mode() string {
	if e.cfg.Team.Mode == "" {
		return ModeSequence
	}
	return e.cfg.Team.Mode
}

func (e *Engine) agentConfig(name string) AgentConfig {
	for _, ac := range e.cfg.Agents {
		if ac.Name == name {
			return ac
		}
	}
	return AgentConfig{}
}

// usage sums the trackers of every distinct provider completer.
func (e *Engine) usage() usage.TokenCount {
	var trackers []*usage.Tracker
	for _, c := range e.completers {
		if r, ok := c.(modeladapter.UsageReporter); ok {
			trackers = append(trackers, r.UsageTracker())
		}
	}
	return usage.Sum(trackers...)
}

func minus(a, b usage.TokenCount) usage.TokenCount {
	return usage.TokenCount{
		InputTokens:  a.InputTokens - b.InputTokens,
		OutputTokens: a.OutputTokens - b.OutputTokens,
	}
}

func seedFrom(p brief.UserProfile) networking.Seed {
	years, _ := strconv.Atoi(strings.TrimSpace(p.ExperienceYears))

	return networking.Seed{
		Name:            strings.TrimSpace(p.Name),
		CurrentRole:     strings.TrimSpace(p.CurrentRole),
		Company:         strings.TrimSpace(p.Company),
		Industry:        strings.TrimSpace(p.Industry),
		ExperienceYears: years,
	}
}

type runIDKey struct{}

func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func (e *Engine) onToolCall(ctx context.Context, agentName string, call content.ToolCall, result content.ToolResult) {
	e.logger.DebugContext(ctx, "tool called", "agent", agentName, "tool", call.Name, "error", result.IsError)
	e.publish(Event{
		Kind:  EventToolCall,
		RunID: runIDFromContext(ctx),
		Agent: agentName,
		Data:  ToolCallData{Tool: call.Name, IsError: result.IsError},
	})
}
