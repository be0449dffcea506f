package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/germanamz/postcraft/pkg/brief"
	"github.com/germanamz/postcraft/pkg/chats/chat"
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/chats/role"
	"github.com/germanamz/postcraft/pkg/engine"
	"github.com/germanamz/postcraft/pkg/modeladapter"
	mausage "github.com/germanamz/postcraft/pkg/modeladapter/usage"
	"github.com/germanamz/postcraft/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedCompleter answers every agent with a short line and the leader with
// the final post.
type cannedCompleter struct {
	tracker mausage.Tracker
}

func (c *cannedCompleter) UsageTracker() *mausage.Tracker { return &c.tracker }

func (c *cannedCompleter) Complete(_ context.Context, ch *chat.Chat, _ []toolbox.Tool) (message.Message, error) {
	c.tracker.Add(mausage.TokenCount{InputTokens: 100, OutputTokens: 20})

	if strings.HasPrefix(ch.SystemPrompt(), "You are the leader of") {
		return message.NewText("", role.Assistant, "Scaling Kubernetes taught me patience. #Google"), nil
	}
	return message.NewText("", role.Assistant, "noted"), nil
}

func init() {
	engine.RegisterProvider("canned", func(engine.ProviderConfig) (modeladapter.Completer, error) {
		return &cannedCompleter{}, nil
	})
}

func writeConfig(t *testing.T) (path, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "history.db")

	cfg := `
providers:
  - name: p
    kind: canned
    api_key: test
agents:
  - name: Insight Generator
    description: Mines trends
    provider: p
    toolboxes: [profile]
  - name: Content Architect
    description: Writes the post
    provider: p
    toolboxes: [copy]
team:
  name: Test Team
  synthesize: true
history:
  enabled: true
  path: ` + dbPath + `
`
	path = filepath.Join(dir, "postcraft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	return path, dbPath
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, modeExamples, parseMode("e"))
	assert.Equal(t, modeExamples, parseMode(" E \n"))
	assert.Equal(t, modeInteractive, parseMode("i"))
	assert.Equal(t, modeInteractive, parseMode(""))
	assert.Equal(t, modeInteractive, parseMode("examples"))
}

func TestRequestFromAnswers(t *testing.T) {
	req := requestFromAnswers(answers{
		Name:           " Alex Chen ",
		CurrentRole:    "Engineer",
		Experience:     "5",
		Companies:      "Google, , Stripe ,",
		ContentType:    " Achievement ",
		ContentDetails: " Shipped it ",
	})

	assert.Equal(t, "Alex Chen", req.Profile.Name)
	assert.Equal(t, "5", req.Profile.ExperienceYears)
	assert.Equal(t, []string{"Google", "Stripe"}, req.TargetCompanies)
	assert.Equal(t, brief.Achievement, req.ContentType)
	assert.Equal(t, "Shipped it", req.ContentDetails)
	assert.NoError(t, req.Validate())
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateYears(""))
	assert.NoError(t, validateYears(" 7 "))
	assert.Error(t, validateYears("-1"))
	assert.Error(t, validateYears("five"))

	assert.NoError(t, validateCompanies("Google"))
	assert.Error(t, validateCompanies(" , "))

	err := validateRequired("name")("  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestResolveConfigPath(t *testing.T) {
	t.Chdir(t.TempDir())

	assert.Equal(t, "custom.yaml", resolveConfigPath("custom.yaml"))
	assert.Empty(t, resolveConfigPath(""))

	require.NoError(t, os.WriteFile("postcraft.yaml", []byte("x"), 0o600))
	assert.Equal(t, "postcraft.yaml", resolveConfigPath(""))

	require.NoError(t, os.MkdirAll(".postcraft", 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(".postcraft", "config.yaml"), []byte("x"), 0o600))
	assert.Equal(t, filepath.Join(".postcraft", "config.yaml"), resolveConfigPath(""))
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, loadDotEnv(""))
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("POSTCRAFT_DOTENV_TEST=loaded\n"), 0o600))
	t.Setenv("POSTCRAFT_DOTENV_TEST", "")
	require.NoError(t, os.Unsetenv("POSTCRAFT_DOTENV_TEST"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("POSTCRAFT_DOTENV_TEST"))
}

func TestRun_Init(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "postcraft.yaml")

	out, _, err := runCLI(t, "", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultConfigYAML(), data)

	_, _, err = runCLI(t, "", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, _, err = runCLI(t, "", "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestRun_UnknownCommand(t *testing.T) {
	_, errOut, err := runCLI(t, "", "publish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "publish"`)
	assert.Contains(t, errOut, "Usage: postcraft")
}

func TestRun_MissingAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Chdir(t.TempDir())

	_, _, err := runCLI(t, "", "examples", "--env", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestRun_Agents(t *testing.T) {
	path, _ := writeConfig(t)

	out, _, err := runCLI(t, "", "agents", "--config", path, "--env", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Insight Generator  Mines trends")
	assert.Contains(t, out, "Content Architect  Writes the post")
}

func TestRun_ExamplesThenHistory(t *testing.T) {
	path, _ := writeConfig(t)

	out, errOut, err := runCLI(t, "e\n", "--config", path, "--env", "")
	require.NoError(t, err)

	assert.Contains(t, out, "🎯 LinkedIn Networking Content Creator - Examples")
	assert.Contains(t, out, "📚 EXAMPLE 1: Learning Achievement Post")
	assert.Contains(t, out, strings.Repeat("-", 40))
	assert.Contains(t, out, "Scaling Kubernetes taught me patience. #Google")
	assert.Contains(t, out, "saved as ")
	assert.Contains(t, errOut, "→ Insight Generator")
	assert.Contains(t, errOut, "✓ Final post")

	out, _, err = runCLI(t, "", "history", "--config", path, "--env", "", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Alex Chen")

	id := strings.Fields(lines[0])[0]
	out, _, err = runCLI(t, "", "history", "--config", path, "--env", "", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Scaling Kubernetes taught me patience.")

	out, _, err = runCLI(t, "", "history", "--config", path, "--env", "", "diff", id, id)
	require.NoError(t, err)
	assert.Contains(t, out, "identical")
}

func TestRun_HistoryErrors(t *testing.T) {
	path, _ := writeConfig(t)

	_, _, err := runCLI(t, "", "history", "--config", path, "--env", "", "show")
	require.Error(t, err)

	_, _, err = runCLI(t, "", "history", "--config", path, "--env", "", "show", "nope")
	require.Error(t, err)

	_, _, err = runCLI(t, "", "history", "--config", path, "--env", "", "prune")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune")
}

func TestPrintResult_Plain(t *testing.T) {
	var out bytes.Buffer
	a := &app{out: &out}

	a.printResult(engine.Result{
		RunID:    "run-1",
		Output:   "**Hello** network",
		Usage:    mausage.TokenCount{InputTokens: 1200, OutputTokens: 300},
		Duration: 1500 * time.Millisecond,
		Saved:    true,
	}, true)

	s := out.String()
	assert.Contains(t, s, "🎯 GENERATED LINKEDIN CONTENT")
	assert.Contains(t, s, strings.Repeat("=", 60))
	assert.Contains(t, s, "**Hello** network")
	assert.Contains(t, s, "saved as run-1")
}
