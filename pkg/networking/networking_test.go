package networking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/germanamz/postcraft/pkg/chats/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateHashtags(t *testing.T) {
	tags := GenerateHashtags([]string{"Google", "Microsoft", "Meta"}, "Technology", 0)

	assert.Equal(t, []string{
		"#Google", "#GoogleCareers", "#GoogleTech",
		"#Microsoft", "#MicrosoftCareers", "#MicrosoftTech",
		"#Meta", "#MetaCareers",
	}, tags)
}

func TestGenerateHashtags_CleansNames(t *testing.T) {
	tags := GenerateHashtags([]string{"Goldman Sachs, Inc"}, "finance", 0)

	assert.Equal(t, []string{
		"#GoldmanSachsInc", "#GoldmanSachsIncCareers", "#GoldmanSachsIncTech",
		"#FinTech", "#Finance", "#Banking", "#FinanceJobs",
	}, tags)
}

func TestGenerateHashtags_FallbackAndDedupe(t *testing.T) {
	tags := GenerateHashtags([]string{"Acme", "Acme", " ", ""}, "Gardening", 0)

	assert.Equal(t, []string{"#Acme", "#AcmeCareers", "#AcmeTech", "#Professional", "#Networking"}, tags)
}

func TestGenerateHashtags_Bounded(t *testing.T) {
	for _, limit := range []int{0, 1, 3, 8, 20} {
		tags := GenerateHashtags([]string{"A", "B", "C", "D", "E"}, "ai", limit)

		want := limit
		if want <= 0 {
			want = DefaultMaxHashtags
		}
		if want > 19 {
			want = 19
		}
		assert.Len(t, tags, want, "limit %d", limit)

		seen := map[string]bool{}
		for _, tag := range tags {
			assert.False(t, seen[tag], "duplicate %s", tag)
			seen[tag] = true
		}
	}
}

func TestCreateCTA(t *testing.T) {
	tests := []struct {
		name        string
		companies   []string
		contentType string
		want        string
	}{
		{
			name:        "learning addresses first two companies",
			companies:   []string{"Google", "Microsoft", "Meta"},
			contentType: "learning",
			want:        "🤝 Fellow engineers at Google, Microsoft, what's your experience with this? Would love to connect and learn from your insights!",
		},
		{
			name:        "achievement",
			companies:   []string{"Stripe"},
			contentType: "achievement",
			want:        "🎉 Excited to connect with amazing professionals at Stripe and similar companies. Let's build something great together!",
		},
		{
			name:        "insight is case insensitive",
			companies:   []string{"Google", "Meta"},
			contentType: " Insight ",
			want:        "💭 What do you think, Google, Meta team? Would love to hear your perspectives and connect with like-minded professionals!",
		},
		{
			name:        "question",
			companies:   []string{"Google"},
			contentType: "question",
			want:        "❓ Calling all experts at Google - your insights would be invaluable! Let's connect and discuss.",
		},
		{
			name:        "unknown type falls back to general",
			companies:   []string{"Google", "Microsoft"},
			contentType: "celebration",
			want:        "🌟 Always excited to connect with talented professionals at Google, Microsoft and beyond. Let's grow our network together!",
		},
		{
			name:        "no companies",
			contentType: "general",
			want:        "🌟 Always excited to connect with talented professionals at leading companies and beyond. Let's grow our network together!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CreateCTA(tt.companies, tt.contentType))
		})
	}
}

func TestIdentifyTargetCompanies(t *testing.T) {
	got := IdentifyTargetCompanies("Technology", "Software Engineer", "")
	require.NotEmpty(t, got)

	assert.Equal(t, "Google", got[0].Name)
	assert.Equal(t, "Microsoft", got[1].Name)

	last := got[len(got)-1]
	assert.Equal(t, "Startup Technology Companies", last.Name)
	assert.Equal(t, "Small-Medium", last.Size)

	for _, c := range got {
		assert.Equal(t, DefaultLocation, c.Location)
	}

	unknown := IdentifyTargetCompanies("Basket Weaving", "", "Europe")
	assert.Equal(t, "Google", unknown[0].Name)
	assert.Equal(t, "Europe", unknown[0].Location)

	fin := IdentifyTargetCompanies("FINANCE", "", "")
	assert.Equal(t, "Startup Finance Companies", fin[len(fin)-1].Name)
}

func TestTargetsFor(t *testing.T) {
	got := TargetsFor([]string{" Google ", "", "Acme Robotics", "Google", "acme robotics"})

	require.Len(t, got, 3)
	assert.Equal(t, "Google", got[0].Name)
	assert.Equal(t, "High", got[0].NetworkingPotential)
	assert.Equal(t, "Acme Robotics", got[1].Name)
	assert.Equal(t, "Unknown", got[1].Industry)
	assert.Equal(t, "acme robotics", got[2].Name)

	assert.Empty(t, TargetsFor(nil))
}

func TestParseHandle(t *testing.T) {
	valid := map[string]string{
		"https://www.linkedin.com/in/alex-chen":       "alex-chen",
		"linkedin.com/in/alex-chen-4b2a91/":           "alex-chen-4b2a91",
		"http://uk.linkedin.com/in/jane/details/exp/": "jane",
	}
	for raw, want := range valid {
		got, err := ParseHandle(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	for _, raw := range []string{"", "https://example.com/in/alex", "https://www.linkedin.com/company/google", "https://www.linkedin.com/in/", "://bad"} {
		_, err := ParseHandle(raw)
		assert.ErrorIs(t, err, ErrInvalidProfileURL, raw)
	}
}

func TestAnalyze_DefaultsAndSeed(t *testing.T) {
	a := NewAnalyzer(Seed{})
	p, err := a.Analyze(context.Background(), "https://www.linkedin.com/in/alex-chen-4b2a91")
	require.NoError(t, err)

	assert.Equal(t, "alex-chen-4b2a91", p.Handle)
	assert.Equal(t, "Alex Chen", p.Name)
	assert.Equal(t, "Software Engineer", p.CurrentRole)
	assert.Equal(t, 5, p.ExperienceYears)
	assert.Equal(t, []string{"Python", "Machine Learning", "Data Science"}, p.Skills)
	assert.Equal(t, 500, p.ConnectionCount)

	seeded := NewAnalyzer(Seed{Name: "Alex C.", CurrentRole: "Senior Software Engineer", Company: "TechStartup Inc", ExperienceYears: 6})
	p, err = seeded.Analyze(context.Background(), "linkedin.com/in/whoever")
	require.NoError(t, err)
	assert.Equal(t, "Alex C.", p.Name)
	assert.Equal(t, "Senior Software Engineer", p.CurrentRole)
	assert.Equal(t, "TechStartup Inc", p.Company)
	assert.Equal(t, "Technology", p.Industry)
	assert.Equal(t, 6, p.ExperienceYears)
}

func TestAnalyze_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/in/alex-chen", r.URL.Path)
		fmt.Fprint(w, `<html><head>
<meta property="og:title" content="Alex Chen - Staff Engineer - Orbit Labs | LinkedIn">
<meta property="og:description" content="Distributed systems and Kubernetes.">
</head></html>`)
	}))
	t.Cleanup(srv.Close)

	client := srv.Client()
	client.Transport = rewriteHost{target: srv.URL, next: http.DefaultTransport}

	a := NewAnalyzer(Seed{Industry: "AI"}, WithFetch(client))
	p, err := a.Analyze(context.Background(), "https://www.linkedin.com/in/alex-chen")
	require.NoError(t, err)

	assert.Equal(t, "Alex Chen", p.Name)
	assert.Equal(t, "Staff Engineer", p.CurrentRole)
	assert.Equal(t, "Orbit Labs", p.Company)
	assert.Equal(t, "AI", p.Industry)
	assert.Equal(t, "Alex Chen - Staff Engineer - Orbit Labs", p.Headline)
	assert.Equal(t, "Distributed systems and Kubernetes.", p.Summary)
}

func TestAnalyze_FetchFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	client := srv.Client()
	client.Transport = rewriteHost{target: srv.URL, next: http.DefaultTransport}

	p, err := NewAnalyzer(Seed{}, WithFetch(client)).Analyze(context.Background(), "https://www.linkedin.com/in/jane-doe")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Empty(t, p.Headline)
}

// rewriteHost sends every request to the test server.
type rewriteHost struct {
	target string
	next   http.RoundTripper
}

func (r rewriteHost) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(r.target, "http://")
	return r.next.RoundTrip(req)
}

func TestProfileTools(t *testing.T) {
	tb := ProfileTools(NewAnalyzer(Seed{Name: "Alex Chen"}))

	res := tb.Call(context.Background(), content.ToolCall{
		ID:        "1",
		Name:      "analyze_linkedin_profile",
		Arguments: `{"linkedin_url":"not a profile"}`,
	})
	require.False(t, res.IsError)

	var errDict map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.Content), &errDict))
	assert.Contains(t, errDict["error"], "invalid LinkedIn profile URL")

	res = tb.Call(context.Background(), content.ToolCall{
		ID:        "2",
		Name:      "analyze_linkedin_profile",
		Arguments: `{"linkedin_url":"https://www.linkedin.com/in/alex-chen"}`,
	})
	require.False(t, res.IsError)
	var p Profile
	require.NoError(t, json.Unmarshal([]byte(res.Content), &p))
	assert.Equal(t, "Alex Chen", p.Name)

	res = tb.Call(context.Background(), content.ToolCall{
		ID:        "3",
		Name:      "identify_target_companies",
		Arguments: `{"industry":"Technology","role":"Engineer","companies":["Google","Acme"]}`,
	})
	var companies []Company
	require.NoError(t, json.Unmarshal([]byte(res.Content), &companies))
	require.Len(t, companies, 2)
	assert.Equal(t, "Acme", companies[1].Name)
}

func TestCopyTools(t *testing.T) {
	tb := CopyTools(4)

	res := tb.Call(context.Background(), content.ToolCall{
		ID:        "1",
		Name:      "generate_networking_hashtags",
		Arguments: `{"target_companies":["Google","Meta"],"industry":"technology"}`,
	})
	var tags []string
	require.NoError(t, json.Unmarshal([]byte(res.Content), &tags))
	assert.Equal(t, []string{"#Google", "#GoogleCareers", "#GoogleTech", "#Meta"}, tags)

	res = tb.Call(context.Background(), content.ToolCall{
		ID:        "2",
		Name:      "create_networking_cta",
		Arguments: `{"target_companies":["Google"],"content_type":"question"}`,
	})
	assert.False(t, res.IsError)
	assert.True(t, strings.HasPrefix(res.Content, "❓ Calling all experts at Google"))
}

// propDescription returns the schema description the model sees for prop.
func propDescription(t *testing.T, raw json.RawMessage, prop string) string {
	t.Helper()

	var s struct {
		Properties map[string]struct {
			Description string `json:"description"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &s))
	require.Contains(t, s.Properties, prop)

	return s.Properties[prop].Description
}

func TestToolSchemas_FullDescriptions(t *testing.T) {
	profile := ProfileTools(NewAnalyzer(Seed{}))
	identify, ok := profile.Get("identify_target_companies")
	require.True(t, ok)
	assert.Equal(t, "Industry of the user such as Technology", propDescription(t, identify.InputSchema, "industry"))

	cta, ok := CopyTools(0).Get("create_networking_cta")
	require.True(t, ok)
	desc := propDescription(t, cta.InputSchema, "content_type")
	for _, ct := range []string{"learning", "achievement", "insight", "question"} {
		assert.Contains(t, desc, ct)
	}
}

type stubLoader struct {
	html string
	err  error
	urls []string
}

func (s *stubLoader) Load(_ context.Context, url string) (string, error) {
	s.urls = append(s.urls, url)
	return s.html, s.err
}

func TestAnalyze_WithLoader(t *testing.T) {
	l := &stubLoader{html: `<html><head><title>Priya Raman - Data Scientist | LinkedIn</title></head></html>`}

	p, err := NewAnalyzer(Seed{}, WithLoader(l)).Analyze(context.Background(), "linkedin.com/in/priya-raman/")
	require.NoError(t, err)

	require.Len(t, l.urls, 1)
	assert.True(t, strings.HasPrefix(l.urls[0], "https://"))
	assert.Equal(t, "Priya Raman", p.Name)
	assert.Equal(t, "Data Scientist", p.CurrentRole)
	assert.Equal(t, "Tech Company", p.Company)
}

func TestAnalyze_LoaderErrorIgnored(t *testing.T) {
	l := &stubLoader{err: fmt.Errorf("chrome not found")}

	p, err := NewAnalyzer(Seed{CurrentRole: "Engineer"}, WithLoader(l)).Analyze(context.Background(), "https://www.linkedin.com/in/jane-doe")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Equal(t, "Engineer", p.CurrentRole)
}

func TestIdentifyTargetCompanies_IgnoresRole(t *testing.T) {
	assert.Equal(t,
		IdentifyTargetCompanies("Finance", "Engineer", ""),
		IdentifyTargetCompanies("Finance", "Recruiter", ""))
}

func TestBrowser_CloseBeforeStart(t *testing.T) {
	b := NewBrowser(context.Background(), 0)
	assert.Equal(t, 30*time.Second, b.timeout)
	b.Close()
	assert.False(t, b.started)
}
