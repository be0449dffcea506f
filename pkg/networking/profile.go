package networking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// ErrInvalidProfileURL is returned for URLs that are not LinkedIn member
// profile links (https://www.linkedin.com/in/<handle>).
var ErrInvalidProfileURL = errors.New("networking: invalid LinkedIn profile URL")

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Profile is the analysed view of a LinkedIn member.
type Profile struct {
	Handle          string   `json:"handle"`
	Name            string   `json:"name"`
	CurrentRole     string   `json:"current_role"`
	Company         string   `json:"company"`
	Industry        string   `json:"industry"`
	ExperienceYears int      `json:"experience_years"`
	Skills          []string `json:"skills"`
	Education       string   `json:"education"`
	ConnectionCount int      `json:"connection_count"`
	RecentActivity  string   `json:"recent_activity"`
	Headline        string   `json:"headline,omitempty"`
	Summary         string   `json:"summary,omitempty"`
}

// Seed carries what the user told us about themselves. Non-zero fields
// override the defaults.
type Seed struct {
	Name            string
	CurrentRole     string
	Company         string
	Industry        string
	ExperienceYears int
}

func defaultProfile() Profile {
	return Profile{
		Name:            "User Name",
		CurrentRole:     "Software Engineer",
		Company:         "Tech Company",
		Industry:        "Technology",
		ExperienceYears: 5,
		Skills:          []string{"Python", "Machine Learning", "Data Science"},
		Education:       "Computer Science",
		ConnectionCount: 500,
		RecentActivity:  "Active in AI and tech discussions",
	}
}

// Analyzer builds profiles from a seed and, optionally, the public profile page.
type Analyzer struct {
	seed   Seed
	loader PageLoader
	logger *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithFetch enables fetching the profile page for its Open Graph metadata. A
// nil client uses one with a 15 second timeout.
func WithFetch(client *http.Client) AnalyzerOption {
	return func(a *Analyzer) {
		if client == nil {
			client = &http.Client{Timeout: 15 * time.Second}
		}
		a.loader = HTTPLoader{Client: client}
	}
}

// WithLoader fetches profile pages through l, e.g. a headless Browser for
// pages that need JavaScript.
func WithLoader(l PageLoader) AnalyzerOption {
	return func(a *Analyzer) { a.loader = l }
}

// WithLogger sets the analyzer's logger.
func WithLogger(l *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an Analyzer seeded with the user's own details.
func NewAnalyzer(seed Seed, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{seed: seed, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze returns the profile behind rawURL. Fetch failures are logged and
// ignored; only an unparseable URL is an error.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (Profile, error) {
	handle, err := ParseHandle(rawURL)
	if err != nil {
		return Profile{}, err
	}

	p := defaultProfile()
	p.Handle = handle

	if n := nameFromHandle(handle); n != "" {
		p.Name = n
	}

	if a.loader != nil {
		if err := a.fetch(ctx, rawURL, &p); err != nil {
			a.logger.Debug("profile fetch failed", "handle", handle, "error", err)
		}
	}

	a.applySeed(&p)

	return p, nil
}

func (a *Analyzer) applySeed(p *Profile) {
	s := a.seed
	if s.Name != "" {
		p.Name = s.Name
	}
	if s.CurrentRole != "" {
		p.CurrentRole = s.CurrentRole
	}
	if s.Company != "" {
		p.Company = s.Company
	}
	if s.Industry != "" {
		p.Industry = s.Industry
	}
	if s.ExperienceYears > 0 {
		p.ExperienceYears = s.ExperienceYears
	}
}

func (a *Analyzer) fetch(ctx context.Context, rawURL string, p *Profile) error {
	page, err := a.loader.Load(ctx, normalizeURL(rawURL))
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return err
	}

	var title, desc string
	doc.Find("meta[property^='og:']").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		val, _ := s.Attr("content")
		switch prop {
		case "og:title":
			title = strings.TrimSpace(val)
		case "og:description":
			desc = strings.TrimSpace(val)
		}
	})
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	title = strings.TrimSuffix(title, " | LinkedIn")
	if title == "" {
		return nil
	}

	p.Headline = title
	p.Summary = desc

	// "Alex Chen - Senior Engineer - TechStartup"
	parts := strings.Split(title, " - ")
	p.Name = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		p.CurrentRole = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		p.Company = strings.TrimSpace(parts[2])
	}

	return nil
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return raw
}

// ParseHandle extracts the member handle from a LinkedIn profile URL. The
// scheme may be omitted.
func ParseHandle(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidProfileURL)
	}

	u, err := url.Parse(normalizeURL(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidProfileURL, err)
	}

	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return "", fmt.Errorf("%w: %q is not a linkedin.com host", ErrInvalidProfileURL, u.Host)
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) < 2 || segs[0] != "in" || segs[1] == "" {
		return "", fmt.Errorf("%w: expected /in/<handle>, got %q", ErrInvalidProfileURL, u.Path)
	}

	return segs[1], nil
}

// nameFromHandle turns "alex-chen-4b2a91" into "Alex Chen". Segments with
// digits are LinkedIn's disambiguation suffixes and are dropped.
func nameFromHandle(handle string) string {
	var words []string
	for _, seg := range strings.Split(handle, "-") {
		if seg == "" || strings.ContainsFunc(seg, unicode.IsDigit) {
			continue
		}
		r := []rune(strings.ToLower(seg))
		r[0] = unicode.ToUpper(r[0])
		words = append(words, string(r))
	}
	return strings.Join(words, " ")
}
